package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies which kind of principal a token or record belongs to
type Role string

const (
	RoleDonor    Role = "donor"
	RoleHospital Role = "hospital"
	RoleAdmin    Role = "admin"
)

// ParseRole converts a path segment or claim value into a Role
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleDonor, RoleHospital, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Principal is implemented only by *Donor, *Hospital and *Admin.
// Consumers switch on the concrete type to reach variant data.
type Principal interface {
	PrincipalID() string
	PrincipalRole() Role
	PrincipalEmail() string
	PasswordDigest() string
	principal()
}

// BloodType is one of the eight ABO/Rh groups
type BloodType string

const (
	BloodAPos  BloodType = "A+"
	BloodANeg  BloodType = "A-"
	BloodBPos  BloodType = "B+"
	BloodBNeg  BloodType = "B-"
	BloodABPos BloodType = "AB+"
	BloodABNeg BloodType = "AB-"
	BloodOPos  BloodType = "O+"
	BloodONeg  BloodType = "O-"
)

// BloodTypes lists every accepted blood type in display order
var BloodTypes = []BloodType{
	BloodAPos, BloodANeg, BloodBPos, BloodBNeg, BloodABPos, BloodABNeg, BloodOPos, BloodONeg,
}

// Valid reports whether b is one of the enumerated blood types
func (b BloodType) Valid() bool {
	for _, t := range BloodTypes {
		if t == b {
			return true
		}
	}
	return false
}

// Gender of a donor
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

const (
	MinDonorAge = 18
	MaxDonorAge = 65
)

// Donor is a person who can respond to blood requests
type Donor struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	BloodGroup   BloodType  `json:"bloodGroup"`
	Age          int        `json:"age"`
	Gender       Gender     `json:"gender"`
	Phone        string     `json:"phone"`
	City         string     `json:"city"`
	State        string     `json:"state"`
	IsAvailable  bool       `json:"isAvailable"`
	LastDonation *time.Time `json:"lastDonation,omitempty"`
	Donations    int        `json:"donations"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (d *Donor) PrincipalID() string    { return d.ID }
func (d *Donor) PrincipalRole() Role    { return RoleDonor }
func (d *Donor) PrincipalEmail() string { return d.Email }
func (d *Donor) PasswordDigest() string { return d.PasswordHash }
func (*Donor) principal()               {}

// InventoryItem is a hospital's stock of one blood group
type InventoryItem struct {
	BloodGroup BloodType `json:"bloodGroup"`
	Units      int       `json:"units"`
}

// Hospital posts blood requests once an admin has verified it
type Hospital struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Email             string          `json:"email"`
	PasswordHash      string          `json:"-"`
	Phone             string          `json:"phone"`
	City              string          `json:"city"`
	State             string          `json:"state"`
	ContactPerson     string          `json:"contactPerson"`
	LicenseNumber     string          `json:"licenseNumber"`
	IsVerified        bool            `json:"isVerified"`
	RequestsMade      int             `json:"requestsMade"`
	RequestsCompleted int             `json:"requestsCompleted"`
	Inventory         []InventoryItem `json:"availableBloodGroups"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func (h *Hospital) PrincipalID() string    { return h.ID }
func (h *Hospital) PrincipalRole() Role    { return RoleHospital }
func (h *Hospital) PrincipalEmail() string { return h.Email }
func (h *Hospital) PasswordDigest() string { return h.PasswordHash }
func (*Hospital) principal()               {}

// VerificationStatus is the label shown to clients for a hospital's verification flag
func (h *Hospital) VerificationStatus() string {
	if h.IsVerified {
		return "verified"
	}
	return "pending"
}

// Admin is the single operator account
type Admin struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (a *Admin) PrincipalID() string    { return a.ID }
func (a *Admin) PrincipalRole() Role    { return RoleAdmin }
func (a *Admin) PrincipalEmail() string { return a.Email }
func (a *Admin) PasswordDigest() string { return a.PasswordHash }
func (*Admin) principal()               {}

// NormalizeEmail lower-cases and trims an address; emails are unique per role case-insensitively
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
