package regulation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRequestNotFound   = errors.New("request not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrFacilityNotFound  = errors.New("facility not found")
	ErrProcedureNotFound = errors.New("procedure not found")
	ErrSlotNotFound      = errors.New("slot not found")

	// ErrCapacityExhausted is returned by CommitAllocation when the slot's
	// remaining capacity reached zero between selection and commit.
	ErrCapacityExhausted = errors.New("slot capacity exhausted")

	// ErrBookingExists is returned by CommitAllocation when the request
	// already has a booking.
	ErrBookingExists = errors.New("request already has a booking")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	CreateRequest(ctx context.Context, patientID, facilityCode, procedureCode string) (*Request, error)
	GetRequestByID(ctx context.Context, id uuid.UUID) (*Request, error)
	UpdateRequestStatus(ctx context.Context, id uuid.UUID, status RequestStatus, justification *string) (*Request, error)

	GetFacilityByCode(ctx context.Context, code string) (*Facility, error)
	GetProcedureByCode(ctx context.Context, code string) (*Procedure, error)

	CreateSlot(ctx context.Context, slot *Slot) (*Slot, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)

	// FindCandidateSlots returns slots for the procedure with date on or
	// after the reference date and remaining capacity above zero, joined
	// with facility coordinates. An unknown procedure yields an empty set,
	// not an error. No ordering is guaranteed.
	FindCandidateSlots(ctx context.Context, procedureID uuid.UUID, onOrAfter time.Time) ([]CandidateSlot, error)

	// CommitAllocation atomically decrements the slot's remaining capacity,
	// creates the booking and moves the request to SCHEDULED. Fails with
	// ErrCapacityExhausted if capacity is no longer positive.
	CommitAllocation(ctx context.Context, requestID, slotID uuid.UUID) (*Booking, error)

	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	UpdateBookingConfirmation(ctx context.Context, id uuid.UUID, status ConfirmationStatus) (*Booking, error)

	CreateReview(ctx context.Context, review *Review) (*Review, error)
}
