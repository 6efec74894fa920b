package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
)

// MemoryStore keeps every entity in process memory behind one mutex.
// It backs STORE_BACKEND=memory and the service and handler tests; each
// method is a single critical section, which gives the same conditional-write
// guarantees as the Postgres transactions.
type MemoryStore struct {
	mu        sync.RWMutex
	donors    map[string]*domain.Donor
	hospitals map[string]*domain.Hospital
	admin     *domain.Admin
	requests  map[string]*domain.BloodRequest
	credited  map[string]bool
	now       func() time.Time
	last      time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		donors:    map[string]*domain.Donor{},
		hospitals: map[string]*domain.Hospital{},
		requests:  map[string]*domain.BloodRequest{},
		credited:  map[string]bool{},
		now:       time.Now,
	}
}

// tick returns a timestamp strictly after the previous one so newest-first
// ordering stays deterministic; callers hold the write lock
func (s *MemoryStore) tick() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// Donors returns the donor repository view
func (s *MemoryStore) Donors() *MemoryDonorRepository { return &MemoryDonorRepository{s: s} }

// Hospitals returns the hospital repository view
func (s *MemoryStore) Hospitals() *MemoryHospitalRepository { return &MemoryHospitalRepository{s: s} }

// Admins returns the admin repository view
func (s *MemoryStore) Admins() *MemoryAdminRepository { return &MemoryAdminRepository{s: s} }

// BloodRequests returns the blood request repository view
func (s *MemoryStore) BloodRequests() *MemoryBloodRequestRepository {
	return &MemoryBloodRequestRepository{s: s}
}

func cloneDonor(d *domain.Donor) *domain.Donor {
	c := *d
	if d.LastDonation != nil {
		t := *d.LastDonation
		c.LastDonation = &t
	}
	return &c
}

func cloneHospital(h *domain.Hospital) *domain.Hospital {
	c := *h
	c.Inventory = append([]domain.InventoryItem{}, h.Inventory...)
	return &c
}

func cloneRequest(r *domain.BloodRequest) *domain.BloodRequest {
	c := *r
	c.NotifiedDonors = append([]string{}, r.NotifiedDonors...)
	c.Responses = append([]domain.DonorResponse{}, r.Responses...)
	if r.AcceptedBy != nil {
		id := *r.AcceptedBy
		c.AcceptedBy = &id
	}
	return &c
}

// MemoryDonorRepository implements domain.DonorRepository over a MemoryStore
type MemoryDonorRepository struct{ s *MemoryStore }

func (r *MemoryDonorRepository) Create(_ context.Context, donor *domain.Donor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, d := range r.s.donors {
		if d.Email == donor.Email {
			return fmt.Errorf("donor already exists: %w", domain.ErrConflict)
		}
	}
	now := r.s.tick()
	donor.CreatedAt, donor.UpdatedAt = now, now
	r.s.donors[donor.ID] = cloneDonor(donor)
	return nil
}

func (r *MemoryDonorRepository) GetByID(_ context.Context, id string) (*domain.Donor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.donors[id]
	if !ok {
		return nil, fmt.Errorf("donor: %w", domain.ErrNotFound)
	}
	return cloneDonor(d), nil
}

func (r *MemoryDonorRepository) GetByEmail(_ context.Context, email string) (*domain.Donor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, d := range r.s.donors {
		if d.Email == email {
			return cloneDonor(d), nil
		}
	}
	return nil, fmt.Errorf("donor: %w", domain.ErrNotFound)
}

func (r *MemoryDonorRepository) Update(_ context.Context, donor *domain.Donor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.donors[donor.ID]
	if !ok {
		return fmt.Errorf("donor: %w", domain.ErrNotFound)
	}
	donor.Email = existing.Email
	donor.CreatedAt = existing.CreatedAt
	donor.Donations = existing.Donations
	donor.LastDonation = nil
	if existing.LastDonation != nil {
		t := *existing.LastDonation
		donor.LastDonation = &t
	}
	donor.UpdatedAt = r.s.tick()
	r.s.donors[donor.ID] = cloneDonor(donor)
	return nil
}

func (r *MemoryDonorRepository) SetLastDonation(_ context.Context, id string, at time.Time) (*domain.Donor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.donors[id]
	if !ok {
		return nil, fmt.Errorf("donor: %w", domain.ErrNotFound)
	}
	d.LastDonation = &at
	d.UpdatedAt = r.s.tick()
	return cloneDonor(d), nil
}

func (r *MemoryDonorRepository) List(_ context.Context, filter domain.DonorFilter) ([]*domain.Donor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*domain.Donor{}
	for _, d := range r.s.donors {
		if filter.AvailableOnly && !d.IsAvailable {
			continue
		}
		if filter.BloodGroup != "" && d.BloodGroup != filter.BloodGroup {
			continue
		}
		if filter.City != "" && !strings.EqualFold(d.City, filter.City) {
			continue
		}
		out = append(out, cloneDonor(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// MemoryHospitalRepository implements domain.HospitalRepository over a MemoryStore
type MemoryHospitalRepository struct{ s *MemoryStore }

func (r *MemoryHospitalRepository) Create(_ context.Context, hospital *domain.Hospital) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, h := range r.s.hospitals {
		if h.Email == hospital.Email {
			return fmt.Errorf("hospital already exists: %w", domain.ErrConflict)
		}
	}
	now := r.s.tick()
	hospital.IsVerified = false
	hospital.CreatedAt, hospital.UpdatedAt = now, now
	if hospital.Inventory == nil {
		hospital.Inventory = []domain.InventoryItem{}
	}
	r.s.hospitals[hospital.ID] = cloneHospital(hospital)
	return nil
}

func (r *MemoryHospitalRepository) GetByID(_ context.Context, id string) (*domain.Hospital, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	h, ok := r.s.hospitals[id]
	if !ok {
		return nil, fmt.Errorf("hospital: %w", domain.ErrNotFound)
	}
	return cloneHospital(h), nil
}

func (r *MemoryHospitalRepository) GetByEmail(_ context.Context, email string) (*domain.Hospital, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, h := range r.s.hospitals {
		if h.Email == email {
			return cloneHospital(h), nil
		}
	}
	return nil, fmt.Errorf("hospital: %w", domain.ErrNotFound)
}

func (r *MemoryHospitalRepository) Update(_ context.Context, hospital *domain.Hospital) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.hospitals[hospital.ID]
	if !ok {
		return fmt.Errorf("hospital: %w", domain.ErrNotFound)
	}
	updated := cloneHospital(existing)
	updated.Name = hospital.Name
	updated.Phone = hospital.Phone
	updated.City = hospital.City
	updated.State = hospital.State
	updated.ContactPerson = hospital.ContactPerson
	updated.LicenseNumber = hospital.LicenseNumber
	updated.PasswordHash = hospital.PasswordHash
	updated.UpdatedAt = r.s.tick()
	r.s.hospitals[hospital.ID] = updated

	hospital.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *MemoryHospitalRepository) SetVerified(_ context.Context, id string, verified bool) (*domain.Hospital, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	h, ok := r.s.hospitals[id]
	if !ok {
		return nil, fmt.Errorf("hospital: %w", domain.ErrNotFound)
	}
	if h.IsVerified != verified {
		h.IsVerified = verified
		h.UpdatedAt = r.s.tick()
	}
	return cloneHospital(h), nil
}

func (r *MemoryHospitalRepository) UpsertInventory(_ context.Context, id string, item domain.InventoryItem) (*domain.Hospital, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	h, ok := r.s.hospitals[id]
	if !ok {
		return nil, fmt.Errorf("hospital: %w", domain.ErrNotFound)
	}
	idx := slices.IndexFunc(h.Inventory, func(i domain.InventoryItem) bool { return i.BloodGroup == item.BloodGroup })
	if idx < 0 {
		h.Inventory = append(h.Inventory, item)
	} else {
		h.Inventory[idx].Units = item.Units
	}
	h.UpdatedAt = r.s.tick()
	return cloneHospital(h), nil
}

func (r *MemoryHospitalRepository) List(_ context.Context, filter domain.HospitalFilter) ([]*domain.Hospital, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*domain.Hospital{}
	for _, h := range r.s.hospitals {
		if filter.Verified != nil && h.IsVerified != *filter.Verified {
			continue
		}
		out = append(out, cloneHospital(h))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// MemoryAdminRepository implements domain.AdminRepository over a MemoryStore
type MemoryAdminRepository struct{ s *MemoryStore }

func (r *MemoryAdminRepository) CreateSingleton(_ context.Context, admin *domain.Admin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.admin != nil {
		return fmt.Errorf("admin already exists: %w", domain.ErrConflict)
	}
	now := r.s.tick()
	admin.CreatedAt, admin.UpdatedAt = now, now
	c := *admin
	r.s.admin = &c
	return nil
}

func (r *MemoryAdminRepository) GetByID(_ context.Context, id string) (*domain.Admin, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if r.s.admin == nil || r.s.admin.ID != id {
		return nil, fmt.Errorf("admin: %w", domain.ErrNotFound)
	}
	c := *r.s.admin
	return &c, nil
}

func (r *MemoryAdminRepository) GetByEmail(_ context.Context, email string) (*domain.Admin, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if r.s.admin == nil || r.s.admin.Email != email {
		return nil, fmt.Errorf("admin: %w", domain.ErrNotFound)
	}
	c := *r.s.admin
	return &c, nil
}

func (r *MemoryAdminRepository) Update(_ context.Context, admin *domain.Admin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.admin == nil || r.s.admin.ID != admin.ID {
		return fmt.Errorf("admin: %w", domain.ErrNotFound)
	}
	r.s.admin.Name = admin.Name
	r.s.admin.PasswordHash = admin.PasswordHash
	r.s.admin.UpdatedAt = r.s.tick()
	admin.UpdatedAt = r.s.admin.UpdatedAt
	return nil
}

// MemoryBloodRequestRepository implements domain.BloodRequestRepository over a MemoryStore
type MemoryBloodRequestRepository struct{ s *MemoryStore }

func (r *MemoryBloodRequestRepository) Create(_ context.Context, req *domain.BloodRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	h, ok := r.s.hospitals[req.HospitalID]
	if !ok {
		return fmt.Errorf("hospital: %w", domain.ErrNotFound)
	}
	if _, exists := r.s.requests[req.ID]; exists {
		return fmt.Errorf("blood request already exists: %w", domain.ErrConflict)
	}

	now := r.s.tick()
	req.Status = domain.StatusPending
	req.NotifiedDonors = []string{}
	req.Responses = []domain.DonorResponse{}
	req.AcceptedBy = nil
	req.CreatedAt, req.UpdatedAt = now, now
	r.s.requests[req.ID] = cloneRequest(req)
	h.RequestsMade++
	return nil
}

func (r *MemoryBloodRequestRepository) GetByID(_ context.Context, id string) (*domain.BloodRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	req, ok := r.s.requests[id]
	if !ok {
		return nil, fmt.Errorf("blood request: %w", domain.ErrNotFound)
	}
	return cloneRequest(req), nil
}

func (r *MemoryBloodRequestRepository) ListByHospital(_ context.Context, hospitalID string) ([]*domain.BloodRequest, error) {
	return r.filter(func(req *domain.BloodRequest) bool { return req.HospitalID == hospitalID }), nil
}

func (r *MemoryBloodRequestRepository) ListAll(_ context.Context) ([]*domain.BloodRequest, error) {
	return r.filter(func(*domain.BloodRequest) bool { return true }), nil
}

func (r *MemoryBloodRequestRepository) ListPendingForDonor(_ context.Context, donorID string, bloodType domain.BloodType) ([]*domain.BloodRequest, error) {
	return r.filter(func(req *domain.BloodRequest) bool {
		return req.Status == domain.StatusPending && req.BloodType == bloodType && req.IsNotified(donorID)
	}), nil
}

func (r *MemoryBloodRequestRepository) NotifyMatchingDonors(_ context.Context, requestID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("blood request: %w", domain.ErrNotFound)
	}

	matches := []*domain.Donor{}
	for _, d := range r.s.donors {
		if d.BloodGroup == req.BloodType && !req.IsNotified(d.ID) {
			matches = append(matches, d)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })

	added := make([]string, 0, len(matches))
	for _, d := range matches {
		req.NotifiedDonors = append(req.NotifiedDonors, d.ID)
		added = append(added, d.ID)
	}
	return added, nil
}

func (r *MemoryBloodRequestRepository) RecordResponse(_ context.Context, requestID string, resp domain.DonorResponse) (*domain.BloodRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("blood request: %w", domain.ErrNotFound)
	}
	if !req.IsNotified(resp.DonorID) {
		return nil, fmt.Errorf("donor was not notified of this request: %w", domain.ErrAuthorization)
	}
	if req.Status != domain.StatusPending {
		return nil, fmt.Errorf("request is %s: %w", req.Status, domain.ErrInvalidState)
	}
	if _, answered := req.ResponseFrom(resp.DonorID); answered {
		return nil, fmt.Errorf("donor already responded: %w", domain.ErrConflict)
	}

	req.Responses = append(req.Responses, resp)
	if resp.Response == domain.ResponseAccepted {
		req.Status = domain.StatusAccepted
		donorID := resp.DonorID
		req.AcceptedBy = &donorID
	}
	req.UpdatedAt = r.s.tick()
	return cloneRequest(req), nil
}

func (r *MemoryBloodRequestRepository) UpdateStatus(_ context.Context, id string, status domain.RequestStatus, at time.Time) (*domain.BloodRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok {
		return nil, fmt.Errorf("blood request: %w", domain.ErrNotFound)
	}
	req.Status = status
	req.UpdatedAt = r.s.tick()

	if status == domain.StatusCompleted && !r.s.credited[id] {
		r.s.credited[id] = true
		if h, ok := r.s.hospitals[req.HospitalID]; ok {
			h.RequestsCompleted++
		}
		if req.AcceptedBy != nil {
			if d, ok := r.s.donors[*req.AcceptedBy]; ok {
				d.Donations++
				donatedAt := at
				d.LastDonation = &donatedAt
				d.UpdatedAt = req.UpdatedAt
			}
		}
	}
	return cloneRequest(req), nil
}

func (r *MemoryBloodRequestRepository) Cancel(_ context.Context, id string) (*domain.BloodRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	req, ok := r.s.requests[id]
	if !ok {
		return nil, fmt.Errorf("blood request: %w", domain.ErrNotFound)
	}
	if req.Status != domain.StatusPending && req.Status != domain.StatusAccepted {
		return nil, fmt.Errorf("request is %s: %w", req.Status, domain.ErrInvalidState)
	}
	req.Status = domain.StatusCancelled
	req.UpdatedAt = r.s.tick()
	return cloneRequest(req), nil
}

func (r *MemoryBloodRequestRepository) filter(keep func(*domain.BloodRequest) bool) []*domain.BloodRequest {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*domain.BloodRequest{}
	for _, req := range r.s.requests {
		if keep(req) {
			out = append(out, cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
