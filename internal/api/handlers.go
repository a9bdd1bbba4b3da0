package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careflow/referral-scheduling/internal/auth"
	redisclient "github.com/careflow/referral-scheduling/internal/redis"
	"github.com/careflow/referral-scheduling/internal/regulation"
)

// RegulationService is the surface the handlers need from the lifecycle
// coordinator.
type RegulationService interface {
	CreateRequest(ctx context.Context, actor auth.Identity, patientID, facilityCode, procedureCode string) (*regulation.Request, error)
	GetRequest(ctx context.Context, id uuid.UUID) (*regulation.Request, error)
	UpdateRequestStatus(ctx context.Context, actor auth.Identity, id uuid.UUID, status regulation.RequestStatus, justification string) (*regulation.Request, error)
	CreateSlot(ctx context.Context, actor auth.Identity, facilityCode, procedureCode string, date time.Time, timeOfDay *string, capacity int) (*regulation.Slot, error)
	ConfirmBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*regulation.Booking, error)
	DenyBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*regulation.Request, error)
	CompleteBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*regulation.Request, error)
	SubmitReview(ctx context.Context, actor auth.Identity, bookingID uuid.UUID, patientID string, rating int, comment *string) (*regulation.Review, error)
}

func meHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := auth.IdentityFromContext(r.Context())
		writeJSON(w, http.StatusOK, MeResponse{Username: actor.Username})
	}
}

func createRequestHandler(svc RegulationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRequestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		actor, _ := auth.IdentityFromContext(r.Context())

		created, err := svc.CreateRequest(r.Context(), actor, req.PatientID, req.FacilityCode, req.ProcedureCode)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRequestResponse(created))
	}
}

func getRequestHandler(svc RegulationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_id", "id must be a valid UUID")
			return
		}

		req, err := svc.GetRequest(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRequestResponse(req))
	}
}

func updateRequestStatusHandler(svc RegulationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_id", "id must be a valid UUID")
			return
		}

		var req UpdateRequestStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		actor, _ := auth.IdentityFromContext(r.Context())

		updated, err := svc.UpdateRequestStatus(r.Context(), actor, id, regulation.RequestStatus(req.Status), req.Justification)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRequestResponse(updated))
	}
}

func createSlotHandler(svc RegulationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		actor, _ := auth.IdentityFromContext(r.Context())

		slot, err := svc.CreateSlot(r.Context(), actor, req.FacilityCode, req.ProcedureCode, date, req.TimeOfDay, req.RemainingCapacity)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(slot))
	}
}

func confirmBookingHandler(svc RegulationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		actor, _ := auth.IdentityFromContext(r.Context())

		booking, err := svc.ConfirmBooking(r.Context(), actor, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(booking))
	}
}

func denyBookingHandler(svc RegulationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		actor, _ := auth.IdentityFromContext(r.Context())

		req, err := svc.DenyBooking(r.Context(), actor, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRequestResponse(req))
	}
}

func completeBookingHandler(svc RegulationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		actor, _ := auth.IdentityFromContext(r.Context())

		req, err := svc.CompleteBooking(r.Context(), actor, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRequestResponse(req))
	}
}

func createReviewHandler(svc RegulationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		bookingID, err := uuid.Parse(req.BookingID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "booking_id must be a valid UUID")
			return
		}

		actor, _ := auth.IdentityFromContext(r.Context())

		review, err := svc.SubmitReview(r.Context(), actor, bookingID, req.PatientID, req.Rating, req.Comment)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toReviewResponse(review))
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, regulation.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "request_not_found", err.Error())
	case errors.Is(err, regulation.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, regulation.ErrFacilityNotFound):
		writeError(w, http.StatusNotFound, "facility_not_found", err.Error())
	case errors.Is(err, regulation.ErrProcedureNotFound):
		writeError(w, http.StatusNotFound, "procedure_not_found", err.Error())
	case errors.Is(err, regulation.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, regulation.ErrJustificationRequired):
		writeError(w, http.StatusBadRequest, "justification_required", err.Error())
	case errors.Is(err, regulation.ErrInvalidStatusInput):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, regulation.ErrMissingField):
		writeError(w, http.StatusBadRequest, "missing_field", err.Error())
	case errors.Is(err, regulation.ErrInvalidCapacity):
		writeError(w, http.StatusBadRequest, "invalid_capacity", err.Error())
	case errors.Is(err, regulation.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, "invalid_rating", err.Error())
	case errors.Is(err, regulation.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, regulation.ErrBookingExists):
		writeError(w, http.StatusConflict, "booking_exists", err.Error())
	case errors.Is(err, regulation.ErrCapacityExhausted),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_capacity_conflict", "slot is being allocated, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
