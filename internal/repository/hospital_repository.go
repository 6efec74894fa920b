package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
)

const hospitalColumns = `id, name, email, password_hash, phone, city, state, contact_person, license_number,
	is_verified, requests_made, requests_completed, created_at, updated_at`

// PostgresHospitalRepository implements domain.HospitalRepository using PostgreSQL
type PostgresHospitalRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresHospitalRepository creates a new hospital repository
func NewPostgresHospitalRepository(db *sql.DB, logger *slog.Logger) *PostgresHospitalRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresHospitalRepository{db: db, logger: logger}
}

func scanHospital(row rowScanner) (*domain.Hospital, error) {
	h := &domain.Hospital{}
	err := row.Scan(
		&h.ID, &h.Name, &h.Email, &h.PasswordHash, &h.Phone, &h.City, &h.State,
		&h.ContactPerson, &h.LicenseNumber, &h.IsVerified, &h.RequestsMade, &h.RequestsCompleted,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	h.Inventory = []domain.InventoryItem{}
	return h, nil
}

// Create inserts a hospital; the verification flag always starts false
func (r *PostgresHospitalRepository) Create(ctx context.Context, hospital *domain.Hospital) error {
	query := `
		INSERT INTO hospitals (id, name, email, password_hash, phone, city, state, contact_person, license_number, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE)
		RETURNING is_verified, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		hospital.ID, hospital.Name, hospital.Email, hospital.PasswordHash, hospital.Phone,
		hospital.City, hospital.State, hospital.ContactPerson, hospital.LicenseNumber,
	).Scan(&hospital.IsVerified, &hospital.CreatedAt, &hospital.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create hospital",
			slog.String("email", hospital.Email),
			slog.String("error", err.Error()),
		)
		return mapWriteError(err, "hospital")
	}
	if hospital.Inventory == nil {
		hospital.Inventory = []domain.InventoryItem{}
	}
	return nil
}

// GetByID retrieves a hospital and its inventory
func (r *PostgresHospitalRepository) GetByID(ctx context.Context, id string) (*domain.Hospital, error) {
	query := `SELECT ` + hospitalColumns + ` FROM hospitals WHERE id = $1`
	h, err := scanHospital(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapReadError(err, "hospital")
	}
	if err := r.loadInventory(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// GetByEmail retrieves a hospital by normalized email
func (r *PostgresHospitalRepository) GetByEmail(ctx context.Context, email string) (*domain.Hospital, error) {
	query := `SELECT ` + hospitalColumns + ` FROM hospitals WHERE email = $1`
	h, err := scanHospital(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, mapReadError(err, "hospital")
	}
	if err := r.loadInventory(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// Update writes profile fields and the password hash
func (r *PostgresHospitalRepository) Update(ctx context.Context, hospital *domain.Hospital) error {
	query := `
		UPDATE hospitals
		SET name = $1, phone = $2, city = $3, state = $4, contact_person = $5, license_number = $6,
			password_hash = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		hospital.Name, hospital.Phone, hospital.City, hospital.State, hospital.ContactPerson,
		hospital.LicenseNumber, hospital.PasswordHash, hospital.ID,
	).Scan(&hospital.UpdatedAt)
	if err != nil {
		return mapReadError(err, "hospital")
	}
	return nil
}

// SetVerified writes the verification flag; setting the current value again is a no-op
func (r *PostgresHospitalRepository) SetVerified(ctx context.Context, id string, verified bool) (*domain.Hospital, error) {
	query := `
		UPDATE hospitals
		SET is_verified = $1,
			updated_at = CASE WHEN is_verified = $1 THEN updated_at ELSE NOW() END
		WHERE id = $2
	`
	res, err := r.db.ExecContext(ctx, query, verified, id)
	if err != nil {
		return nil, mapExecError(err, "hospital", "update verification")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("hospital: %w", domain.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

// UpsertInventory sets the unit count of one blood group
func (r *PostgresHospitalRepository) UpsertInventory(ctx context.Context, id string, item domain.InventoryItem) (*domain.Hospital, error) {
	query := `
		INSERT INTO hospital_inventory (hospital_id, blood_group, units)
		VALUES ($1, $2, $3)
		ON CONFLICT (hospital_id, blood_group) DO UPDATE SET units = EXCLUDED.units
	`
	if _, err := r.db.ExecContext(ctx, query, id, item.BloodGroup, item.Units); err != nil {
		return nil, fmt.Errorf("failed to update inventory: %w", err)
	}
	return r.GetByID(ctx, id)
}

// List returns hospitals, newest first
func (r *PostgresHospitalRepository) List(ctx context.Context, filter domain.HospitalFilter) ([]*domain.Hospital, error) {
	query := `SELECT ` + hospitalColumns + ` FROM hospitals`
	var args []any
	if filter.Verified != nil {
		query += ` WHERE is_verified = $1`
		args = append(args, *filter.Verified)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list hospitals", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list hospitals: %w", err)
	}
	defer rows.Close()

	hospitals := []*domain.Hospital{}
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hospital: %w", err)
		}
		hospitals = append(hospitals, h)
	}
	return hospitals, rows.Err()
}

func (r *PostgresHospitalRepository) loadInventory(ctx context.Context, h *domain.Hospital) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT blood_group, units FROM hospital_inventory WHERE hospital_id = $1 ORDER BY blood_group`, h.ID)
	if err != nil {
		return fmt.Errorf("failed to load inventory: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(&item.BloodGroup, &item.Units); err != nil {
			return fmt.Errorf("failed to scan inventory: %w", err)
		}
		h.Inventory = append(h.Inventory, item)
	}
	return rows.Err()
}
