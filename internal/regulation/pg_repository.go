package regulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	var justification *string

	err := row.Scan(
		&r.ID,
		&r.PatientID,
		&r.FacilityCode,
		&r.ProcedureCode,
		&r.Status,
		&justification,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	r.Justification = justification
	return &r, nil
}

func scanFacility(row pgx.Row) (*Facility, error) {
	var f Facility

	err := row.Scan(
		&f.ID,
		&f.Code,
		&f.Name,
		&f.Latitude,
		&f.Longitude,
		&f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFacilityNotFound
		}
		return nil, err
	}

	return &f, nil
}

func scanProcedure(row pgx.Row) (*Procedure, error) {
	var p Procedure

	err := row.Scan(
		&p.ID,
		&p.Code,
		&p.Name,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProcedureNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var timeOfDay *string

	err := row.Scan(
		&s.ID,
		&s.FacilityID,
		&s.ProcedureID,
		&s.Date,
		&timeOfDay,
		&s.RemainingCapacity,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.TimeOfDay = timeOfDay
	return &s, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking

	err := row.Scan(
		&b.ID,
		&b.RequestID,
		&b.SlotID,
		&b.Confirmation,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

// Interface methods

func (r *PgRepository) CreateRequest(ctx context.Context, patientID, facilityCode, procedureCode string) (*Request, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO requests (id, patient_id, facility_code, procedure_code, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'PENDING', now(), now())
		RETURNING id, patient_id, facility_code, procedure_code, status, justification, created_at, updated_at
	`, id, patientID, facilityCode, procedureCode)

	return scanRequest(row)
}

func (r *PgRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, facility_code, procedure_code, status, justification, created_at, updated_at
		FROM requests
		WHERE id = $1
	`, id)
	return scanRequest(row)
}

func (r *PgRepository) UpdateRequestStatus(ctx context.Context, id uuid.UUID, status RequestStatus, justification *string) (*Request, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE requests
		SET status = $2,
		    justification = COALESCE($3, justification),
		    updated_at = now()
		WHERE id = $1
		RETURNING id, patient_id, facility_code, procedure_code, status, justification, created_at, updated_at
	`, id, status, justification)

	return scanRequest(row)
}

func (r *PgRepository) GetFacilityByCode(ctx context.Context, code string) (*Facility, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, code, name, latitude, longitude, created_at
		FROM facilities
		WHERE code = $1
	`, code)
	return scanFacility(row)
}

func (r *PgRepository) GetProcedureByCode(ctx context.Context, code string) (*Procedure, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, code, name, created_at
		FROM procedures
		WHERE code = $1
	`, code)
	return scanProcedure(row)
}

func (r *PgRepository) CreateSlot(ctx context.Context, slot *Slot) (*Slot, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO slots (id, facility_id, procedure_id, date, time_of_day, remaining_capacity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, facility_id, procedure_id, date, time_of_day, remaining_capacity, created_at, updated_at
	`, id, slot.FacilityID, slot.ProcedureID, slot.Date, slot.TimeOfDay, slot.RemainingCapacity)

	return scanSlot(row)
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, facility_id, procedure_id, date, time_of_day, remaining_capacity, created_at, updated_at
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) FindCandidateSlots(ctx context.Context, procedureID uuid.UUID, onOrAfter time.Time) ([]CandidateSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, f.id, f.name, f.latitude, f.longitude, s.date, s.remaining_capacity
		FROM slots s
		JOIN facilities f ON f.id = s.facility_id
		WHERE s.procedure_id = $1
		  AND s.date >= $2
		  AND s.remaining_capacity > 0
	`, procedureID, onOrAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CandidateSlot
	for rows.Next() {
		var c CandidateSlot
		err := rows.Scan(
			&c.SlotID,
			&c.FacilityID,
			&c.FacilityName,
			&c.FacilityLat,
			&c.FacilityLon,
			&c.Date,
			&c.RemainingCapacity,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// CommitAllocation performs the allocation as one transaction: reject if the
// request already holds a booking, decrement capacity only while positive,
// insert the booking and move the request to SCHEDULED. Either all of it
// lands or none does.
func (r *PgRepository) CommitAllocation(ctx context.Context, requestID, slotID uuid.UUID) (*Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin allocation tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var existing uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM bookings WHERE request_id = $1
	`, requestID).Scan(&existing)
	if err == nil {
		return nil, ErrBookingExists
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing booking: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE slots
		SET remaining_capacity = remaining_capacity - 1,
		    updated_at = now()
		WHERE id = $1
		  AND remaining_capacity > 0
	`, slotID)
	if err != nil {
		return nil, fmt.Errorf("decrement slot capacity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrCapacityExhausted
	}

	id := uuid.New()
	row := tx.QueryRow(ctx, `
		INSERT INTO bookings (id, request_id, slot_id, confirmation_status, created_at, updated_at)
		VALUES ($1, $2, $3, 'PENDING', now(), now())
		RETURNING id, request_id, slot_id, confirmation_status, created_at, updated_at
	`, id, requestID, slotID)

	booking, err := scanBooking(row)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE requests
		SET status = 'SCHEDULED',
		    updated_at = now()
		WHERE id = $1
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("mark request scheduled: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit allocation tx: %w", err)
	}

	return booking, nil
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, request_id, slot_id, confirmation_status, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) UpdateBookingConfirmation(ctx context.Context, id uuid.UUID, status ConfirmationStatus) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET confirmation_status = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, request_id, slot_id, confirmation_status, created_at, updated_at
	`, id, status)

	return scanBooking(row)
}

func (r *PgRepository) CreateReview(ctx context.Context, review *Review) (*Review, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO reviews (id, booking_id, patient_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, booking_id, patient_id, rating, comment, created_at
	`, id, review.BookingID, review.PatientID, review.Rating, review.Comment)

	var rev Review
	var comment *string
	err := row.Scan(
		&rev.ID,
		&rev.BookingID,
		&rev.PatientID,
		&rev.Rating,
		&comment,
		&rev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rev.Comment = comment
	return &rev, nil
}
