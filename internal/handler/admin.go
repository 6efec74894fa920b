package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aryan0dhankhar/bloodlink/internal/service"
)

// AdminHandler serves the admin dashboard endpoints
type AdminHandler struct {
	hospitals *service.HospitalService
	donors    *service.DonorService
	requests  *service.BloodRequestService
	resp      *Responder
}

func NewAdminHandler(hospitals *service.HospitalService, donors *service.DonorService, requests *service.BloodRequestService, resp *Responder) *AdminHandler {
	return &AdminHandler{hospitals: hospitals, donors: donors, requests: requests, resp: resp}
}

// UnverifiedHospitals handles GET /admin/unverified-hospitals
func (h *AdminHandler) UnverifiedHospitals(w http.ResponseWriter, r *http.Request) {
	unverified := false
	hospitals, err := h.hospitals.List(r.Context(), identity(r), &unverified)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, hospitals)
}

// Hospitals handles GET /admin/hospitals
func (h *AdminHandler) Hospitals(w http.ResponseWriter, r *http.Request) {
	hospitals, err := h.hospitals.List(r.Context(), identity(r), nil)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, hospitals)
}

// VerifyHospital handles POST /admin/verify-hospital/{id}
func (h *AdminHandler) VerifyHospital(w http.ResponseWriter, r *http.Request) {
	h.setVerified(w, r, true, "Hospital verified successfully")
}

// UnverifyHospital handles POST /admin/unverify-hospital/{id}
func (h *AdminHandler) UnverifyHospital(w http.ResponseWriter, r *http.Request) {
	h.setVerified(w, r, false, "Hospital verification revoked")
}

func (h *AdminHandler) setVerified(w http.ResponseWriter, r *http.Request, verified bool, message string) {
	hospital, err := h.hospitals.SetVerified(r.Context(), identity(r), chi.URLParam(r, "id"), verified)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"message": message, "hospital": hospital})
}

// Donors handles GET /admin/donors
func (h *AdminHandler) Donors(w http.ResponseWriter, r *http.Request) {
	donors, err := h.donors.List(r.Context(), identity(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, donors)
}

// BloodRequests handles GET /admin/blood-requests
func (h *AdminHandler) BloodRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.requests.ListAll(r.Context(), identity(r))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, reqs)
}

// CancelBloodRequest handles POST /admin/blood-requests/{id}/cancel
func (h *AdminHandler) CancelBloodRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.Cancel(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"message": "Blood request cancelled", "request": req})
}
