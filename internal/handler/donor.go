package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aryan0dhankhar/bloodlink/internal/service"
)

// DonorHandler serves the donor-only endpoints; every call is scoped to the caller
type DonorHandler struct {
	donors   *service.DonorService
	requests *service.BloodRequestService
	resp     *Responder
}

func NewDonorHandler(donors *service.DonorService, requests *service.BloodRequestService, resp *Responder) *DonorHandler {
	return &DonorHandler{donors: donors, requests: requests, resp: resp}
}

// Profile handles GET /donor/profile
func (h *DonorHandler) Profile(w http.ResponseWriter, r *http.Request) {
	donor, err := h.donors.Get(r.Context(), identity(r).PrincipalID)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, donor)
}

// UpdateProfile handles PATCH /donor/profile
func (h *DonorHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in service.DonorProfileInput
	if err := h.resp.Decode(w, r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	donor, err := h.donors.UpdateProfile(r.Context(), identity(r).PrincipalID, in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, donor)
}

// UpdateAvailability handles PATCH /donor/availability
func (h *DonorHandler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	var in service.AvailabilityInput
	if err := h.resp.Decode(w, r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	donor, err := h.donors.SetAvailability(r.Context(), identity(r).PrincipalID, in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, donor)
}

// UpdateLastDonation handles PATCH /donor/last-donation
func (h *DonorHandler) UpdateLastDonation(w http.ResponseWriter, r *http.Request) {
	var in service.LastDonationInput
	if err := h.resp.Decode(w, r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	donor, err := h.donors.SetLastDonation(r.Context(), identity(r).PrincipalID, in)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, donor)
}

// BloodRequests handles GET /donor/blood-requests
func (h *DonorHandler) BloodRequests(w http.ResponseWriter, r *http.Request) {
	views, err := h.requests.ListForDonor(r.Context(), identity(r).PrincipalID)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, views)
}

type respondRequest struct {
	Response string `json:"response"`
}

// Respond handles POST /donor/blood-requests/{id}/respond
func (h *DonorHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var in respondRequest
	if err := h.resp.Decode(w, r, &in); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	req, err := h.requests.Respond(r.Context(), identity(r).PrincipalID, chi.URLParam(r, "id"), in.Response)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.resp.JSON(w, http.StatusOK, map[string]any{"message": "Response recorded", "request": req})
}
