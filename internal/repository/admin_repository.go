package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
)

// PostgresAdminRepository implements domain.AdminRepository using PostgreSQL
type PostgresAdminRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresAdminRepository creates a new admin repository
func NewPostgresAdminRepository(db *sql.DB, logger *slog.Logger) *PostgresAdminRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAdminRepository{db: db, logger: logger}
}

// CreateSingleton inserts the admin under an exclusive table lock so two
// concurrent registrations cannot both observe an empty table
func (r *PostgresAdminRepository) CreateSingleton(ctx context.Context, admin *domain.Admin) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE admins IN EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("failed to lock admins: %w", err)
		}

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM admins)`).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check admin: %w", err)
		}
		if exists {
			return fmt.Errorf("admin already exists: %w", domain.ErrConflict)
		}

		query := `
			INSERT INTO admins (id, name, email, password_hash)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRowContext(ctx, query, admin.ID, admin.Name, admin.Email, admin.PasswordHash).
			Scan(&admin.CreatedAt, &admin.UpdatedAt)
		if err != nil {
			r.logger.Error("failed to create admin", slog.String("error", err.Error()))
			return mapWriteError(err, "admin")
		}
		return nil
	})
}

// GetByID retrieves the admin by ID
func (r *PostgresAdminRepository) GetByID(ctx context.Context, id string) (*domain.Admin, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByEmail retrieves the admin by normalized email
func (r *PostgresAdminRepository) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	return r.get(ctx, `WHERE email = $1`, email)
}

// Update writes the admin's name and password hash
func (r *PostgresAdminRepository) Update(ctx context.Context, admin *domain.Admin) error {
	query := `
		UPDATE admins SET name = $1, password_hash = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	if err := r.db.QueryRowContext(ctx, query, admin.Name, admin.PasswordHash, admin.ID).Scan(&admin.UpdatedAt); err != nil {
		return mapReadError(err, "admin")
	}
	return nil
}

func (r *PostgresAdminRepository) get(ctx context.Context, where string, arg string) (*domain.Admin, error) {
	a := &domain.Admin{}
	query := `SELECT id, name, email, password_hash, created_at, updated_at FROM admins ` + where
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, mapReadError(err, "admin")
	}
	return a, nil
}
