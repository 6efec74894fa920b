package domain

import (
	"fmt"
	"slices"
	"time"
)

// RequestStatus is the lifecycle state of a blood request
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusAccepted  RequestStatus = "accepted"
	StatusCompleted RequestStatus = "completed"
	StatusCancelled RequestStatus = "cancelled"
)

// ParseRequestStatus accepts only the four lifecycle values
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch st := RequestStatus(s); st {
	case StatusPending, StatusAccepted, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// ResponseValue is a donor's answer to a request
type ResponseValue string

const (
	ResponseAccepted ResponseValue = "accepted"
	ResponseRejected ResponseValue = "rejected"
)

// DonorResponse records one donor's answer
type DonorResponse struct {
	DonorID     string        `json:"donorId"`
	Response    ResponseValue `json:"response"`
	RespondedAt time.Time     `json:"respondedAt"`
}

// BloodRequest is posted by a verified hospital and answered by notified donors
type BloodRequest struct {
	ID             string          `json:"id"`
	HospitalID     string          `json:"hospitalId"`
	BloodType      BloodType       `json:"bloodType"`
	ContactPerson  string          `json:"contactPerson"`
	ContactNumber  string          `json:"contactNumber"`
	Urgent         bool            `json:"urgent"`
	Status         RequestStatus   `json:"status"`
	NotifiedDonors []string        `json:"notifiedDonors"`
	Responses      []DonorResponse `json:"responses"`
	AcceptedBy     *string         `json:"acceptedBy"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// IsNotified reports whether donorID is in the notified set
func (r *BloodRequest) IsNotified(donorID string) bool {
	return slices.Contains(r.NotifiedDonors, donorID)
}

// ResponseFrom returns the response recorded for donorID, if any
func (r *BloodRequest) ResponseFrom(donorID string) (DonorResponse, bool) {
	for _, resp := range r.Responses {
		if resp.DonorID == donorID {
			return resp, true
		}
	}
	return DonorResponse{}, false
}

// HospitalSummary is the hospital identity attached to requests shown to donors
type HospitalSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	City  string `json:"city"`
	State string `json:"state"`
}

// Summary projects the public identity fields of a hospital
func (h *Hospital) Summary() *HospitalSummary {
	return &HospitalSummary{
		ID:    h.ID,
		Name:  h.Name,
		Email: h.Email,
		Phone: h.Phone,
		City:  h.City,
		State: h.State,
	}
}

// BloodRequestView is a request enriched with its hospital
type BloodRequestView struct {
	*BloodRequest
	Hospital *HospitalSummary `json:"hospital,omitempty"`
}
