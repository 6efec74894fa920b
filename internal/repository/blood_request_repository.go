package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
)

// notified ids and responses are aggregated in the same round trip as the request row
const bloodRequestSelect = `
	SELECT r.id, r.hospital_id, r.blood_type, r.contact_person, r.contact_number, r.urgent, r.status,
		r.accepted_by::text, r.created_at, r.updated_at,
		COALESCE((SELECT array_agg(n.donor_id::text ORDER BY n.notified_at, n.donor_id)
			FROM blood_request_notifications n WHERE n.request_id = r.id), '{}') AS notified,
		COALESCE((SELECT json_agg(json_build_object(
				'donorId', s.donor_id, 'response', s.response, 'respondedAt', s.responded_at) ORDER BY s.position)
			FROM blood_request_responses s WHERE s.request_id = r.id), '[]') AS responses
	FROM blood_requests r
`

// PostgresBloodRequestRepository implements domain.BloodRequestRepository using PostgreSQL
type PostgresBloodRequestRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresBloodRequestRepository creates a new blood request repository
func NewPostgresBloodRequestRepository(db *sql.DB, logger *slog.Logger) *PostgresBloodRequestRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBloodRequestRepository{db: db, logger: logger}
}

func scanBloodRequest(row rowScanner) (*domain.BloodRequest, error) {
	req := &domain.BloodRequest{}
	var (
		acceptedBy sql.NullString
		notified   []string
		responses  []byte
	)
	err := row.Scan(
		&req.ID, &req.HospitalID, &req.BloodType, &req.ContactPerson, &req.ContactNumber, &req.Urgent,
		&req.Status, &acceptedBy, &req.CreatedAt, &req.UpdatedAt, pq.Array(&notified), &responses,
	)
	if err != nil {
		return nil, err
	}
	if acceptedBy.Valid {
		id := acceptedBy.String
		req.AcceptedBy = &id
	}
	req.NotifiedDonors = notified
	if req.NotifiedDonors == nil {
		req.NotifiedDonors = []string{}
	}
	req.Responses = []domain.DonorResponse{}
	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &req.Responses); err != nil {
			return nil, fmt.Errorf("failed to decode responses: %w", err)
		}
	}
	return req, nil
}

// Create inserts a pending request and bumps the hospital's requestsMade
func (r *PostgresBloodRequestRepository) Create(ctx context.Context, req *domain.BloodRequest) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO blood_requests (id, hospital_id, blood_type, contact_person, contact_number, urgent, status)
			VALUES ($1, $2, $3, $4, $5, $6, 'pending')
			RETURNING status, created_at, updated_at
		`
		err := tx.QueryRowContext(ctx, query,
			req.ID, req.HospitalID, req.BloodType, req.ContactPerson, req.ContactNumber, req.Urgent,
		).Scan(&req.Status, &req.CreatedAt, &req.UpdatedAt)
		if err != nil {
			r.logger.Error("failed to create blood request",
				slog.String("hospital_id", req.HospitalID),
				slog.String("error", err.Error()),
			)
			return mapWriteError(err, "blood request")
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE hospitals SET requests_made = requests_made + 1 WHERE id = $1`, req.HospitalID); err != nil {
			return fmt.Errorf("failed to count request: %w", err)
		}

		req.NotifiedDonors = []string{}
		req.Responses = []domain.DonorResponse{}
		req.AcceptedBy = nil
		return nil
	})
}

// GetByID retrieves a request with its notified set and responses
func (r *PostgresBloodRequestRepository) GetByID(ctx context.Context, id string) (*domain.BloodRequest, error) {
	req, err := scanBloodRequest(r.db.QueryRowContext(ctx, bloodRequestSelect+` WHERE r.id = $1`, id))
	if err != nil {
		return nil, mapReadError(err, "blood request")
	}
	return req, nil
}

// ListByHospital returns a hospital's requests, newest first
func (r *PostgresBloodRequestRepository) ListByHospital(ctx context.Context, hospitalID string) ([]*domain.BloodRequest, error) {
	return r.list(ctx, bloodRequestSelect+` WHERE r.hospital_id = $1 ORDER BY r.created_at DESC`, hospitalID)
}

// ListAll returns every request, newest first
func (r *PostgresBloodRequestRepository) ListAll(ctx context.Context) ([]*domain.BloodRequest, error) {
	return r.list(ctx, bloodRequestSelect+` ORDER BY r.created_at DESC`)
}

// ListPendingForDonor returns pending requests of bloodType that notified donorID
func (r *PostgresBloodRequestRepository) ListPendingForDonor(ctx context.Context, donorID string, bloodType domain.BloodType) ([]*domain.BloodRequest, error) {
	query := bloodRequestSelect + `
		WHERE r.status = 'pending'
			AND r.blood_type = $2
			AND EXISTS (SELECT 1 FROM blood_request_notifications n WHERE n.request_id = r.id AND n.donor_id = $1)
		ORDER BY r.created_at DESC
	`
	return r.list(ctx, query, donorID, bloodType)
}

// NotifyMatchingDonors adds donors of the request's blood type to the notified set
func (r *PostgresBloodRequestRepository) NotifyMatchingDonors(ctx context.Context, requestID string) ([]string, error) {
	query := `
		INSERT INTO blood_request_notifications (request_id, donor_id)
		SELECT r.id, d.id
		FROM blood_requests r
		JOIN donors d ON d.blood_group = r.blood_type
		WHERE r.id = $1
		ON CONFLICT (request_id, donor_id) DO NOTHING
		RETURNING donor_id::text
	`
	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, mapExecError(err, "blood request", "notify donors")
	}
	defer rows.Close()

	added := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan donor id: %w", err)
		}
		added = append(added, id)
	}
	return added, rows.Err()
}

// RecordResponse appends a donor response under a row lock; an acceptance is
// a conditional transition that only succeeds while the request is pending
func (r *PostgresBloodRequestRepository) RecordResponse(ctx context.Context, requestID string, resp domain.DonorResponse) (*domain.BloodRequest, error) {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var status domain.RequestStatus
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM blood_requests WHERE id = $1 FOR UPDATE`, requestID).Scan(&status)
		if err != nil {
			return mapReadError(err, "blood request")
		}

		var notified bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM blood_request_notifications WHERE request_id = $1 AND donor_id = $2)`,
			requestID, resp.DonorID).Scan(&notified)
		if err != nil {
			return fmt.Errorf("failed to check notification: %w", err)
		}
		if !notified {
			return fmt.Errorf("donor was not notified of this request: %w", domain.ErrAuthorization)
		}

		if status != domain.StatusPending {
			return fmt.Errorf("request is %s: %w", status, domain.ErrInvalidState)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO blood_request_responses (request_id, donor_id, response, responded_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (request_id, donor_id) DO NOTHING
		`, requestID, resp.DonorID, resp.Response, resp.RespondedAt)
		if err != nil {
			return fmt.Errorf("failed to record response: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("donor already responded: %w", domain.ErrConflict)
		}

		if resp.Response == domain.ResponseAccepted {
			res, err = tx.ExecContext(ctx, `
				UPDATE blood_requests
				SET status = 'accepted', accepted_by = $2, updated_at = NOW()
				WHERE id = $1 AND status = 'pending'
			`, requestID, resp.DonorID)
		} else {
			res, err = tx.ExecContext(ctx, `
				UPDATE blood_requests SET updated_at = NOW()
				WHERE id = $1 AND status = 'pending'
			`, requestID)
		}
		if err != nil {
			return fmt.Errorf("failed to update request: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("request is no longer pending: %w", domain.ErrInvalidState)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, requestID)
}

// UpdateStatus sets a new status; the first move into completed credits the counters
func (r *PostgresBloodRequestRepository) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus, at time.Time) (*domain.BloodRequest, error) {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var (
			credited   bool
			hospitalID string
			acceptedBy sql.NullString
		)
		err := tx.QueryRowContext(ctx,
			`SELECT credited_at IS NOT NULL, hospital_id, accepted_by::text FROM blood_requests WHERE id = $1 FOR UPDATE`, id,
		).Scan(&credited, &hospitalID, &acceptedBy)
		if err != nil {
			return mapReadError(err, "blood request")
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE blood_requests SET status = $2, updated_at = NOW() WHERE id = $1`, id, status); err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}

		// A request credits its hospital and donor once, however often it is reopened
		if status != domain.StatusCompleted || credited {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE blood_requests SET credited_at = $2 WHERE id = $1`, id, at); err != nil {
			return fmt.Errorf("failed to mark request credited: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE hospitals SET requests_completed = requests_completed + 1 WHERE id = $1`, hospitalID); err != nil {
			return fmt.Errorf("failed to count completion: %w", err)
		}
		if acceptedBy.Valid {
			if _, err := tx.ExecContext(ctx,
				`UPDATE donors SET donations = donations + 1, last_donation = $2, updated_at = NOW() WHERE id = $1`,
				acceptedBy.String, at); err != nil {
				return fmt.Errorf("failed to record donation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Cancel moves a pending or accepted request to cancelled
func (r *PostgresBloodRequestRepository) Cancel(ctx context.Context, id string) (*domain.BloodRequest, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE blood_requests SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'accepted')
	`, id)
	if err != nil {
		return nil, mapExecError(err, "blood request", "cancel request")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}

	req, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("request is %s: %w", req.Status, domain.ErrInvalidState)
	}
	return req, nil
}

func (r *PostgresBloodRequestRepository) list(ctx context.Context, query string, args ...any) ([]*domain.BloodRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list blood requests", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list blood requests: %w", err)
	}
	defer rows.Close()

	out := []*domain.BloodRequest{}
	for rows.Next() {
		req, err := scanBloodRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blood request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
