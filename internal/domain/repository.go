package domain

import (
	"context"
	"time"
)

// DonorFilter narrows donor listings
type DonorFilter struct {
	BloodGroup    BloodType
	City          string
	AvailableOnly bool
}

// DonorRepository defines data access for donors
type DonorRepository interface {
	Create(ctx context.Context, donor *Donor) error
	GetByID(ctx context.Context, id string) (*Donor, error)
	GetByEmail(ctx context.Context, email string) (*Donor, error)
	// Update writes profile fields only; Donations and LastDonation are left as stored
	Update(ctx context.Context, donor *Donor) error
	SetLastDonation(ctx context.Context, id string, at time.Time) (*Donor, error)
	List(ctx context.Context, filter DonorFilter) ([]*Donor, error)
}

// HospitalFilter narrows hospital listings; a nil Verified matches both states
type HospitalFilter struct {
	Verified *bool
}

// HospitalRepository defines data access for hospitals
type HospitalRepository interface {
	Create(ctx context.Context, hospital *Hospital) error
	GetByID(ctx context.Context, id string) (*Hospital, error)
	GetByEmail(ctx context.Context, email string) (*Hospital, error)
	// Update persists profile fields and the password hash; it never touches
	// the verification flag or the request counters.
	Update(ctx context.Context, hospital *Hospital) error
	SetVerified(ctx context.Context, id string, verified bool) (*Hospital, error)
	UpsertInventory(ctx context.Context, id string, item InventoryItem) (*Hospital, error)
	List(ctx context.Context, filter HospitalFilter) ([]*Hospital, error)
}

// AdminRepository defines data access for the single admin account
type AdminRepository interface {
	// CreateSingleton inserts the admin only when none exists yet, atomically.
	// It returns ErrConflict when an admin is already present.
	CreateSingleton(ctx context.Context, admin *Admin) error
	GetByID(ctx context.Context, id string) (*Admin, error)
	GetByEmail(ctx context.Context, email string) (*Admin, error)
	Update(ctx context.Context, admin *Admin) error
}

// BloodRequestRepository defines data access for blood requests.
// Implementations apply every status change as a conditional write.
type BloodRequestRepository interface {
	// Create stores a pending request and bumps the owner's requestsMade
	Create(ctx context.Context, req *BloodRequest) error
	GetByID(ctx context.Context, id string) (*BloodRequest, error)
	ListByHospital(ctx context.Context, hospitalID string) ([]*BloodRequest, error)
	ListAll(ctx context.Context) ([]*BloodRequest, error)
	// ListPendingForDonor returns pending requests of bloodType whose notified set holds donorID, newest first
	ListPendingForDonor(ctx context.Context, donorID string, bloodType BloodType) ([]*BloodRequest, error)
	// NotifyMatchingDonors adds every donor of the request's blood type to its
	// notified set and returns the ids that were not already present
	NotifyMatchingDonors(ctx context.Context, requestID string) ([]string, error)
	// RecordResponse appends a response while the request is pending. An
	// accepted response also moves the request to accepted with acceptedBy set,
	// in the same atomic write. Returns ErrInvalidState when the request is no
	// longer pending and ErrConflict when the donor already answered.
	RecordResponse(ctx context.Context, requestID string, resp DonorResponse) (*BloodRequest, error)
	// UpdateStatus sets status unconditionally. Entering completed bumps the
	// hospital's requestsCompleted and the accepted donor's donation record.
	UpdateStatus(ctx context.Context, id string, status RequestStatus, at time.Time) (*BloodRequest, error)
	// Cancel moves a pending or accepted request to cancelled
	Cancel(ctx context.Context, id string) (*BloodRequest, error)
}
