package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aryan0dhankhar/bloodlink/internal/service"
)

// HospitalHandler serves the hospital-only endpoints
type HospitalHandler struct {
	hospitals *service.HospitalService
	requests  *service.BloodRequestService
	resp      *Responder
}

func NewHospitalHandler(hospitals *service.HospitalService, requests *service.BloodRequestService, resp *Responder) *HospitalHandler {
	return &HospitalHandler{hospitals: hospitals, requests: requests, resp: resp}
}

// Profile handles GET /hospital/profile
func (h *HospitalHandler) Profile(w http.ResponseWriter, r *http.Request) {
	hospital, err := h.hospitals.Get(r.Context(), identity(r).PrincipalID)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, hospital)
}

// UpdateProfile handles PATCH /hospital/profile
func (h *HospitalHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in service.HospitalProfileInput
	if err := h.resp.Decode(w, r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	hospital, err := h.hospitals.UpdateProfile(r.Context(), identity(r).PrincipalID, in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"message": "Profile updated", "hospital": hospital})
}

// UpdateInventory handles PATCH /hospital/inventory
func (h *HospitalHandler) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	var in service.InventoryInput
	if err := h.resp.Decode(w, r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	hospital, err := h.hospitals.UpdateInventory(r.Context(), identity(r).PrincipalID, in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"message": "Inventory updated", "hospital": hospital})
}

// SearchDonors handles GET /hospital/search-donors?bloodGroup=&city=
func (h *HospitalHandler) SearchDonors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// an unescaped "+" in "A+" arrives as a space
	bloodGroup := strings.TrimSpace(strings.ReplaceAll(q.Get("bloodGroup"), " ", "+"))

	donors, err := h.hospitals.SearchDonors(r.Context(), identity(r).PrincipalID, bloodGroup, q.Get("city"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, donors)
}

// ListBloodRequests handles GET /hospital/blood-requests
func (h *HospitalHandler) ListBloodRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.requests.ListForHospital(r.Context(), identity(r).PrincipalID)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, reqs)
}

// CreateBloodRequest handles POST /hospital/blood-requests
func (h *HospitalHandler) CreateBloodRequest(w http.ResponseWriter, r *http.Request) {
	var in service.CreateBloodRequestInput
	if err := h.resp.Decode(w, r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	req, err := h.requests.Create(r.Context(), identity(r).PrincipalID, in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusCreated, req)
}

// GetBloodRequest handles GET /hospital/blood-requests/{id}
func (h *HospitalHandler) GetBloodRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.requests.Get(r.Context(), identity(r).PrincipalID, chi.URLParam(r, "id"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, req)
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateBloodRequestStatus handles PATCH /hospital/blood-requests/{id}
func (h *HospitalHandler) UpdateBloodRequestStatus(w http.ResponseWriter, r *http.Request) {
	var in statusUpdateRequest
	if err := h.resp.Decode(w, r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	req, err := h.requests.UpdateStatus(r.Context(), identity(r).PrincipalID, chi.URLParam(r, "id"), in.Status)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, req)
}

// NotifyDonors handles POST /hospital/blood-requests/{id}/notify
func (h *HospitalHandler) NotifyDonors(w http.ResponseWriter, r *http.Request) {
	req, added, err := h.requests.Renotify(r.Context(), identity(r).PrincipalID, chi.URLParam(r, "id"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{
		"message":       "Matching donors notified",
		"newlyNotified": len(added),
		"request":       req,
	})
}
