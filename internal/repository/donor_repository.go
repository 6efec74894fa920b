package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
)

const donorColumns = `id, name, email, password_hash, blood_group, age, gender, phone, city, state,
	is_available, last_donation, donations, created_at, updated_at`

// PostgresDonorRepository implements domain.DonorRepository using PostgreSQL
type PostgresDonorRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresDonorRepository creates a new donor repository
func NewPostgresDonorRepository(db *sql.DB, logger *slog.Logger) *PostgresDonorRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresDonorRepository{db: db, logger: logger}
}

func scanDonor(row rowScanner) (*domain.Donor, error) {
	d := &domain.Donor{}
	var lastDonation sql.NullTime
	err := row.Scan(
		&d.ID, &d.Name, &d.Email, &d.PasswordHash, &d.BloodGroup, &d.Age, &d.Gender,
		&d.Phone, &d.City, &d.State, &d.IsAvailable, &lastDonation, &d.Donations,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastDonation.Valid {
		t := lastDonation.Time
		d.LastDonation = &t
	}
	return d, nil
}

// Create inserts a donor
func (r *PostgresDonorRepository) Create(ctx context.Context, donor *domain.Donor) error {
	query := `
		INSERT INTO donors (id, name, email, password_hash, blood_group, age, gender, phone, city, state,
			is_available, last_donation, donations)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		donor.ID, donor.Name, donor.Email, donor.PasswordHash, donor.BloodGroup, donor.Age, donor.Gender,
		donor.Phone, donor.City, donor.State, donor.IsAvailable, donor.LastDonation, donor.Donations,
	).Scan(&donor.CreatedAt, &donor.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create donor",
			slog.String("email", donor.Email),
			slog.String("error", err.Error()),
		)
		return mapWriteError(err, "donor")
	}
	return nil
}

// GetByID retrieves a donor by ID
func (r *PostgresDonorRepository) GetByID(ctx context.Context, id string) (*domain.Donor, error) {
	query := `SELECT ` + donorColumns + ` FROM donors WHERE id = $1`
	d, err := scanDonor(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapReadError(err, "donor")
	}
	return d, nil
}

// GetByEmail retrieves a donor by normalized email
func (r *PostgresDonorRepository) GetByEmail(ctx context.Context, email string) (*domain.Donor, error) {
	query := `SELECT ` + donorColumns + ` FROM donors WHERE email = $1`
	d, err := scanDonor(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, mapReadError(err, "donor")
	}
	return d, nil
}

// Update writes the profile columns. The donation record belongs to
// UpdateStatus and SetLastDonation, so it is read back rather than written.
func (r *PostgresDonorRepository) Update(ctx context.Context, donor *domain.Donor) error {
	query := `
		UPDATE donors
		SET name = $1, blood_group = $2, age = $3, gender = $4, phone = $5, city = $6, state = $7,
			is_available = $8, password_hash = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING donations, last_donation, updated_at
	`
	var lastDonation sql.NullTime
	err := r.db.QueryRowContext(ctx, query,
		donor.Name, donor.BloodGroup, donor.Age, donor.Gender, donor.Phone, donor.City, donor.State,
		donor.IsAvailable, donor.PasswordHash, donor.ID,
	).Scan(&donor.Donations, &lastDonation, &donor.UpdatedAt)
	if err != nil {
		return mapReadError(err, "donor")
	}
	donor.LastDonation = nil
	if lastDonation.Valid {
		t := lastDonation.Time
		donor.LastDonation = &t
	}
	return nil
}

// SetLastDonation records a self-reported donation date
func (r *PostgresDonorRepository) SetLastDonation(ctx context.Context, id string, at time.Time) (*domain.Donor, error) {
	query := `UPDATE donors SET last_donation = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + donorColumns
	d, err := scanDonor(r.db.QueryRowContext(ctx, query, at, id))
	if err != nil {
		return nil, mapReadError(err, "donor")
	}
	return d, nil
}

// List returns donors matching filter, newest first
func (r *PostgresDonorRepository) List(ctx context.Context, filter domain.DonorFilter) ([]*domain.Donor, error) {
	var (
		conds []string
		args  []any
	)
	if filter.AvailableOnly {
		conds = append(conds, "is_available = TRUE")
	}
	if filter.BloodGroup != "" {
		args = append(args, filter.BloodGroup)
		conds = append(conds, fmt.Sprintf("blood_group = $%d", len(args)))
	}
	if filter.City != "" {
		args = append(args, filter.City)
		conds = append(conds, fmt.Sprintf("LOWER(city) = LOWER($%d)", len(args)))
	}

	query := `SELECT ` + donorColumns + ` FROM donors`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list donors", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}
	defer rows.Close()

	donors := []*domain.Donor{}
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donor: %w", err)
		}
		donors = append(donors, d)
	}
	return donors, rows.Err()
}
