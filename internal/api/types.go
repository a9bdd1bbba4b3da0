package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careflow/referral-scheduling/internal/regulation"
)

type CreateRequestRequest struct {
	PatientID     string `json:"patient_id"`
	FacilityCode  string `json:"facility_code"`
	ProcedureCode string `json:"procedure_code"`
}

type UpdateRequestStatusRequest struct {
	Status        string `json:"status"`
	Justification string `json:"justification,omitempty"`
}

type CreateSlotRequest struct {
	FacilityCode      string  `json:"facility_code"`
	ProcedureCode     string  `json:"procedure_code"`
	Date              string  `json:"date"` // YYYY-MM-DD
	TimeOfDay         *string `json:"time_of_day,omitempty"`
	RemainingCapacity int     `json:"remaining_capacity"`
}

type CreateReviewRequest struct {
	BookingID string  `json:"booking_id"`
	PatientID string  `json:"patient_id"`
	Rating    int     `json:"rating"`
	Comment   *string `json:"comment,omitempty"`
}

type RequestResponse struct {
	ID            uuid.UUID `json:"id"`
	PatientID     string    `json:"patient_id"`
	FacilityCode  string    `json:"facility_code"`
	ProcedureCode string    `json:"procedure_code"`
	Status        string    `json:"status"`
	Justification *string   `json:"justification,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type BookingResponse struct {
	ID           uuid.UUID `json:"id"`
	RequestID    uuid.UUID `json:"request_id"`
	SlotID       uuid.UUID `json:"slot_id"`
	Confirmation string    `json:"confirmation_status"`
	CreatedAt    time.Time `json:"created_at"`
}

type SlotResponse struct {
	ID                uuid.UUID `json:"id"`
	FacilityID        uuid.UUID `json:"facility_id"`
	ProcedureID       uuid.UUID `json:"procedure_id"`
	Date              string    `json:"date"`
	TimeOfDay         *string   `json:"time_of_day,omitempty"`
	RemainingCapacity int       `json:"remaining_capacity"`
}

type ReviewResponse struct {
	ID        uuid.UUID `json:"id"`
	BookingID uuid.UUID `json:"booking_id"`
	PatientID string    `json:"patient_id"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
}

type MeResponse struct {
	Username string `json:"username"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toRequestResponse(r *regulation.Request) RequestResponse {
	return RequestResponse{
		ID:            r.ID,
		PatientID:     r.PatientID,
		FacilityCode:  r.FacilityCode,
		ProcedureCode: r.ProcedureCode,
		Status:        string(r.Status),
		Justification: r.Justification,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toBookingResponse(b *regulation.Booking) BookingResponse {
	return BookingResponse{
		ID:           b.ID,
		RequestID:    b.RequestID,
		SlotID:       b.SlotID,
		Confirmation: string(b.Confirmation),
		CreatedAt:    b.CreatedAt,
	}
}

func toSlotResponse(s *regulation.Slot) SlotResponse {
	return SlotResponse{
		ID:                s.ID,
		FacilityID:        s.FacilityID,
		ProcedureID:       s.ProcedureID,
		Date:              s.Date.Format("2006-01-02"),
		TimeOfDay:         s.TimeOfDay,
		RemainingCapacity: s.RemainingCapacity,
	}
}

func toReviewResponse(r *regulation.Review) ReviewResponse {
	return ReviewResponse{
		ID:        r.ID,
		BookingID: r.BookingID,
		PatientID: r.PatientID,
		Rating:    r.Rating,
		Comment:   r.Comment,
	}
}
