package regulation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careflow/referral-scheduling/internal/auth"
	"github.com/careflow/referral-scheduling/internal/notification"
	redisclient "github.com/careflow/referral-scheduling/internal/redis"
)

var (
	ErrJustificationRequired = errors.New("justification is required for DENIED or CANCELLED")
	ErrInvalidStatusInput    = errors.New("status must be ACCEPTED, DENIED or CANCELLED")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrMissingField          = errors.New("patient_id, facility_code and procedure_code are required")
	ErrInvalidCapacity       = errors.New("remaining capacity must not be negative")
	ErrInvalidRating         = errors.New("rating must be between 1 and 5")
)

// patientDeclinedJustification is auto-filled when a patient denies a
// scheduled booking and the owning request is cascaded to CANCELLED.
const patientDeclinedJustification = "booking declined by patient"

// Service coordinates the request and booking lifecycles: it selects slots,
// commits allocations and keeps both state machines consistent. Every
// operation runs as an independent unit of work.
type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier notification.Notifier
	log      zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, notifier notification.Notifier, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		log:      log.With().Str("component", "regulation").Logger(),
	}
}

// CreateRequest registers a new referral request in PENDING.
func (s *Service) CreateRequest(ctx context.Context, actor auth.Identity, patientID, facilityCode, procedureCode string) (*Request, error) {
	if strings.TrimSpace(patientID) == "" ||
		strings.TrimSpace(facilityCode) == "" ||
		strings.TrimSpace(procedureCode) == "" {
		return nil, ErrMissingField
	}

	req, err := s.repo.CreateRequest(ctx, patientID, facilityCode, procedureCode)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.log.Info().
		Str("actor", actor.Username).
		Str("request_id", req.ID.String()).
		Str("patient_id", patientID).
		Msg("request created")

	return req, nil
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*Request, error) {
	return s.repo.GetRequestByID(ctx, id)
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetBookingByID(ctx, id)
}

// UpdateRequestStatus applies an operator decision to a request. ACCEPTED
// runs the allocation flow and resolves to SCHEDULED or QUEUED; DENIED and
// CANCELLED require a non-empty justification and are applied as given.
func (s *Service) UpdateRequestStatus(ctx context.Context, actor auth.Identity, id uuid.UUID, status RequestStatus, justification string) (*Request, error) {
	req, err := s.repo.GetRequestByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("actor", actor.Username).
		Str("request_id", id.String()).
		Str("status", string(status)).
		Msg("status update requested")

	switch status {
	case RequestAccepted:
		// QUEUED requests may be re-accepted to retry allocation manually;
		// there is no automatic re-match loop.
		if req.Status != RequestPending && req.Status != RequestQueued {
			return nil, ErrInvalidTransition
		}
		return s.approve(ctx, actor, req)

	case RequestDenied, RequestCancelled:
		if strings.TrimSpace(justification) == "" {
			return nil, ErrJustificationRequired
		}
		updated, err := s.repo.UpdateRequestStatus(ctx, id, status, &justification)
		if err != nil {
			return nil, fmt.Errorf("update request status: %w", err)
		}
		return updated, nil

	default:
		return nil, ErrInvalidStatusInput
	}
}

// approve runs candidate selection and commits the winning allocation. When
// no slot can be secured the request moves to QUEUED; there is no automatic
// re-match when new slots appear later.
func (s *Service) approve(ctx context.Context, actor auth.Identity, req *Request) (*Request, error) {
	facility, err := s.repo.GetFacilityByCode(ctx, req.FacilityCode)
	if err != nil {
		return nil, fmt.Errorf("load requesting facility: %w", err)
	}

	procedure, err := s.repo.GetProcedureByCode(ctx, req.ProcedureCode)
	if err != nil {
		return nil, fmt.Errorf("load procedure: %w", err)
	}

	today := startOfDay(time.Now().UTC())

	candidates, err := s.repo.FindCandidateSlots(ctx, procedure.ID, today)
	if err != nil {
		return nil, fmt.Errorf("find candidate slots: %w", err)
	}

	best := SelectBestSlot(facility.Latitude, facility.Longitude, candidates)
	if best == nil {
		s.log.Warn().
			Str("request_id", req.ID.String()).
			Str("procedure", procedure.Code).
			Msg("no candidate slots, queueing request")
		return s.queue(ctx, req.ID)
	}

	booking, err := s.commitUnderLock(ctx, req.ID, best.SlotID)
	if isAllocationConflict(err) {
		// Someone else took the last unit of capacity. Re-select once
		// against fresh candidates, then give up and queue.
		candidates, err = s.repo.FindCandidateSlots(ctx, procedure.ID, today)
		if err != nil {
			return nil, fmt.Errorf("refetch candidate slots: %w", err)
		}

		best = SelectBestSlot(facility.Latitude, facility.Longitude, candidates)
		if best == nil {
			return s.queue(ctx, req.ID)
		}

		booking, err = s.commitUnderLock(ctx, req.ID, best.SlotID)
		if isAllocationConflict(err) {
			return s.queue(ctx, req.ID)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("commit allocation: %w", err)
	}

	scheduled, err := s.repo.GetRequestByID(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("reload scheduled request: %w", err)
	}

	s.log.Info().
		Str("actor", actor.Username).
		Str("request_id", req.ID.String()).
		Str("booking_id", booking.ID.String()).
		Str("slot_id", best.SlotID.String()).
		Time("slot_date", best.Date).
		Msg("request scheduled")

	message := fmt.Sprintf(
		"Your appointment for %q has been scheduled on %s at %q. Please confirm your booking.",
		procedure.Name, best.Date.Format("02/01/2006"), best.FacilityName,
	)
	s.notify(ctx, scheduled.PatientID, message, actor.Credential)

	return scheduled, nil
}

func (s *Service) commitUnderLock(ctx context.Context, requestID, slotID uuid.UUID) (*Booking, error) {
	var booking *Booking

	err := s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		b, err := s.repo.CommitAllocation(lockCtx, requestID, slotID)
		if err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

func (s *Service) queue(ctx context.Context, requestID uuid.UUID) (*Request, error) {
	updated, err := s.repo.UpdateRequestStatus(ctx, requestID, RequestQueued, nil)
	if err != nil {
		return nil, fmt.Errorf("queue request: %w", err)
	}
	return updated, nil
}

// ConfirmBooking records the patient's confirmation. Confirming an already
// confirmed booking is a no-op.
func (s *Service) ConfirmBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Booking, error) {
	booking, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if booking.Confirmation == ConfirmationConfirmed {
		return booking, nil
	}

	updated, err := s.repo.UpdateBookingConfirmation(ctx, id, ConfirmationConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm booking: %w", err)
	}

	s.log.Info().
		Str("actor", actor.Username).
		Str("booking_id", id.String()).
		Msg("booking confirmed by patient")

	return updated, nil
}

// DenyBooking records the patient's refusal and cascades the owning request
// to CANCELLED. The slot's capacity is not restored: once offered, capacity
// is spent.
func (s *Service) DenyBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Request, error) {
	booking, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.UpdateBookingConfirmation(ctx, id, ConfirmationDenied); err != nil {
		return nil, fmt.Errorf("deny booking: %w", err)
	}

	justification := patientDeclinedJustification
	updated, err := s.repo.UpdateRequestStatus(ctx, booking.RequestID, RequestCancelled, &justification)
	if err != nil {
		return nil, fmt.Errorf("cancel request after denial: %w", err)
	}

	s.log.Info().
		Str("actor", actor.Username).
		Str("booking_id", id.String()).
		Str("request_id", booking.RequestID.String()).
		Msg("booking denied by patient, request cancelled")

	return updated, nil
}

// CompleteBooking marks the procedure as performed and asks the patient for
// feedback. The scheduled date is not validated against the clock.
func (s *Service) CompleteBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Request, error) {
	booking, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateRequestStatus(ctx, booking.RequestID, RequestCompleted, nil)
	if err != nil {
		return nil, fmt.Errorf("complete request: %w", err)
	}

	s.log.Info().
		Str("actor", actor.Username).
		Str("booking_id", id.String()).
		Str("request_id", booking.RequestID.String()).
		Msg("booking completed")

	message := "Hello! We noticed your procedure was completed. We would love to hear your feedback on the care you received."
	s.notify(ctx, updated.PatientID, message, actor.Credential)

	return updated, nil
}

// CreateSlot registers a facility's capacity offer for a procedure.
func (s *Service) CreateSlot(ctx context.Context, actor auth.Identity, facilityCode, procedureCode string, date time.Time, timeOfDay *string, capacity int) (*Slot, error) {
	if capacity < 0 {
		return nil, ErrInvalidCapacity
	}

	facility, err := s.repo.GetFacilityByCode(ctx, facilityCode)
	if err != nil {
		return nil, fmt.Errorf("load facility: %w", err)
	}

	procedure, err := s.repo.GetProcedureByCode(ctx, procedureCode)
	if err != nil {
		return nil, fmt.Errorf("load procedure: %w", err)
	}

	slot, err := s.repo.CreateSlot(ctx, &Slot{
		FacilityID:        facility.ID,
		ProcedureID:       procedure.ID,
		Date:              startOfDay(date),
		TimeOfDay:         timeOfDay,
		RemainingCapacity: capacity,
	})
	if err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.log.Info().
		Str("actor", actor.Username).
		Str("slot_id", slot.ID.String()).
		Str("facility", facilityCode).
		Str("procedure", procedureCode).
		Int("capacity", capacity).
		Msg("slot offer created")

	return slot, nil
}

// SubmitReview stores a patient's rating for a booking.
func (s *Service) SubmitReview(ctx context.Context, actor auth.Identity, bookingID uuid.UUID, patientID string, rating int, comment *string) (*Review, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	if _, err := s.repo.GetBookingByID(ctx, bookingID); err != nil {
		return nil, err
	}

	review, err := s.repo.CreateReview(ctx, &Review{
		BookingID: bookingID,
		PatientID: patientID,
		Rating:    rating,
		Comment:   comment,
	})
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	s.log.Info().
		Str("actor", actor.Username).
		Str("booking_id", bookingID.String()).
		Int("rating", rating).
		Msg("review submitted")

	return review, nil
}

// notify dispatches a best-effort patient notification. Failures are logged
// and never propagated: the lifecycle outcome stands regardless.
func (s *Service) notify(ctx context.Context, patientID, message, credential string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, patientID, message, credential); err != nil {
		s.log.Error().
			Err(err).
			Str("patient_id", patientID).
			Msg("notification dispatch failed")
	}
}

func isAllocationConflict(err error) bool {
	return errors.Is(err, ErrCapacityExhausted) || errors.Is(err, redisclient.ErrLockNotAcquired)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
