package regulation

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus values are part of the wire contract and compared
// case-sensitively.
type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestAccepted  RequestStatus = "ACCEPTED" // input-only: resolves to SCHEDULED or QUEUED
	RequestDenied    RequestStatus = "DENIED"
	RequestCancelled RequestStatus = "CANCELLED"
	RequestQueued    RequestStatus = "QUEUED"
	RequestScheduled RequestStatus = "SCHEDULED"
	RequestCompleted RequestStatus = "COMPLETED"
)

// ConfirmationStatus tracks the patient's answer on a booking, independent
// of the owning request's status.
type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "PENDING"
	ConfirmationConfirmed ConfirmationStatus = "CONFIRMED"
	ConfirmationDenied    ConfirmationStatus = "DENIED"
)

// Request is a referral asking for a procedure to be scheduled for a patient.
// Justification is required whenever the status is DENIED or CANCELLED.
type Request struct {
	ID            uuid.UUID
	PatientID     string
	FacilityCode  string // requesting facility, also the distance reference
	ProcedureCode string
	Status        RequestStatus
	Justification *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Facility is immutable reference data used for distance computation.
type Facility struct {
	ID        uuid.UUID
	Code      string
	Name      string
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
}

type Procedure struct {
	ID        uuid.UUID
	Code      string
	Name      string
	CreatedAt time.Time
}

// Slot is a facility's offered capacity for a procedure on a calendar date.
// RemainingCapacity is only ever decremented, by exactly one per allocation.
type Slot struct {
	ID                uuid.UUID
	FacilityID        uuid.UUID
	ProcedureID       uuid.UUID
	Date              time.Time
	TimeOfDay         *string
	RemainingCapacity int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Booking links a request to the slot it was allocated. A request has at
// most one active booking.
type Booking struct {
	ID           uuid.UUID
	RequestID    uuid.UUID
	SlotID       uuid.UUID
	Confirmation ConfirmationStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CandidateSlot is the slot catalog's query result shape: a slot joined
// with its facility's coordinates so the allocator can rank by distance.
type CandidateSlot struct {
	SlotID            uuid.UUID
	FacilityID        uuid.UUID
	FacilityName      string
	FacilityLat       float64
	FacilityLon       float64
	Date              time.Time
	RemainingCapacity int
}

// Review is a patient's rating of a completed booking.
type Review struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	PatientID string
	Rating    int // 1 to 5
	Comment   *string
	CreatedAt time.Time
}
