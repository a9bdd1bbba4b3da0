package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careflow/referral-scheduling/internal/auth"
	"github.com/careflow/referral-scheduling/internal/regulation"
)

type stubService struct {
	createRequestFn       func(ctx context.Context, actor auth.Identity, patientID, facilityCode, procedureCode string) (*regulation.Request, error)
	getRequestFn          func(ctx context.Context, id uuid.UUID) (*regulation.Request, error)
	updateRequestStatusFn func(ctx context.Context, actor auth.Identity, id uuid.UUID, status regulation.RequestStatus, justification string) (*regulation.Request, error)
	createSlotFn          func(ctx context.Context, actor auth.Identity, facilityCode, procedureCode string, date time.Time, timeOfDay *string, capacity int) (*regulation.Slot, error)
	confirmBookingFn      func(ctx context.Context, actor auth.Identity, id uuid.UUID) (*regulation.Booking, error)
	denyBookingFn         func(ctx context.Context, actor auth.Identity, id uuid.UUID) (*regulation.Request, error)
	completeBookingFn     func(ctx context.Context, actor auth.Identity, id uuid.UUID) (*regulation.Request, error)
	submitReviewFn        func(ctx context.Context, actor auth.Identity, bookingID uuid.UUID, patientID string, rating int, comment *string) (*regulation.Review, error)
}

func (s *stubService) CreateRequest(ctx context.Context, actor auth.Identity, patientID, facilityCode, procedureCode string) (*regulation.Request, error) {
	return s.createRequestFn(ctx, actor, patientID, facilityCode, procedureCode)
}

func (s *stubService) GetRequest(ctx context.Context, id uuid.UUID) (*regulation.Request, error) {
	return s.getRequestFn(ctx, id)
}

func (s *stubService) UpdateRequestStatus(ctx context.Context, actor auth.Identity, id uuid.UUID, status regulation.RequestStatus, justification string) (*regulation.Request, error) {
	return s.updateRequestStatusFn(ctx, actor, id, status, justification)
}

func (s *stubService) CreateSlot(ctx context.Context, actor auth.Identity, facilityCode, procedureCode string, date time.Time, timeOfDay *string, capacity int) (*regulation.Slot, error) {
	return s.createSlotFn(ctx, actor, facilityCode, procedureCode, date, timeOfDay, capacity)
}

func (s *stubService) ConfirmBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*regulation.Booking, error) {
	return s.confirmBookingFn(ctx, actor, id)
}

func (s *stubService) DenyBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*regulation.Request, error) {
	return s.denyBookingFn(ctx, actor, id)
}

func (s *stubService) CompleteBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*regulation.Request, error) {
	return s.completeBookingFn(ctx, actor, id)
}

func (s *stubService) SubmitReview(ctx context.Context, actor auth.Identity, bookingID uuid.UUID, patientID string, rating int, comment *string) (*regulation.Review, error) {
	return s.submitReviewFn(ctx, actor, bookingID, patientID, rating, comment)
}

var testActor = auth.Identity{Username: "regulator", Credential: "test-token"}

// testRouter mounts the handlers without the auth middleware; the actor is
// injected per request.
func testRouter(svc RegulationService) chi.Router {
	r := chi.NewRouter()
	r.Get("/me", meHandler())
	r.Post("/requests", createRequestHandler(svc))
	r.Get("/requests/{id}", getRequestHandler(svc))
	r.Put("/requests/{id}/status", updateRequestStatusHandler(svc))
	r.Post("/slots", createSlotHandler(svc))
	r.Post("/bookings/{id}/confirm", confirmBookingHandler(svc))
	r.Post("/bookings/{id}/deny", denyBookingHandler(svc))
	r.Post("/bookings/{id}/complete", completeBookingHandler(svc))
	r.Post("/reviews", createReviewHandler(svc))
	return r
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(auth.WithIdentity(req.Context(), testActor))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sampleRequest(status regulation.RequestStatus) *regulation.Request {
	return &regulation.Request{
		ID:            uuid.New(),
		PatientID:     "patient-1",
		FacilityCode:  "FAC_1",
		ProcedureCode: "PROC_1",
		Status:        status,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func TestMeEndpoint(t *testing.T) {
	rec := doJSON(t, testRouter(&stubService{}), http.MethodGet, "/me", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp MeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "regulator", resp.Username)
}

func TestCreateRequestReturns201(t *testing.T) {
	svc := &stubService{
		createRequestFn: func(_ context.Context, actor auth.Identity, patientID, facilityCode, procedureCode string) (*regulation.Request, error) {
			assert.Equal(t, "regulator", actor.Username)
			assert.Equal(t, "patient-1", patientID)
			return sampleRequest(regulation.RequestPending), nil
		},
	}

	rec := doJSON(t, testRouter(svc), http.MethodPost, "/requests", CreateRequestRequest{
		PatientID:     "patient-1",
		FacilityCode:  "FAC_1",
		ProcedureCode: "PROC_1",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp RequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PENDING", resp.Status)
}

func TestCreateRequestMissingFieldReturns400(t *testing.T) {
	svc := &stubService{
		createRequestFn: func(context.Context, auth.Identity, string, string, string) (*regulation.Request, error) {
			return nil, regulation.ErrMissingField
		},
	}

	rec := doJSON(t, testRouter(svc), http.MethodPost, "/requests", CreateRequestRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_field")
}

func TestGetRequestInvalidIDReturns400(t *testing.T) {
	rec := doJSON(t, testRouter(&stubService{}), http.MethodGet, "/requests/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request_id")
}

func TestGetRequestNotFoundReturns404(t *testing.T) {
	svc := &stubService{
		getRequestFn: func(context.Context, uuid.UUID) (*regulation.Request, error) {
			return nil, regulation.ErrRequestNotFound
		},
	}

	rec := doJSON(t, testRouter(svc), http.MethodGet, "/requests/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "request_not_found")
}

func TestUpdateStatusScheduled(t *testing.T) {
	svc := &stubService{
		updateRequestStatusFn: func(_ context.Context, _ auth.Identity, _ uuid.UUID, status regulation.RequestStatus, _ string) (*regulation.Request, error) {
			assert.Equal(t, regulation.RequestAccepted, status)
			return sampleRequest(regulation.RequestScheduled), nil
		},
	}

	rec := doJSON(t, testRouter(svc), http.MethodPut, "/requests/"+uuid.NewString()+"/status", UpdateRequestStatusRequest{
		Status: "ACCEPTED",
	})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp RequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SCHEDULED", resp.Status)
}

func TestUpdateStatusJustificationMissingReturns400(t *testing.T) {
	svc := &stubService{
		updateRequestStatusFn: func(context.Context, auth.Identity, uuid.UUID, regulation.RequestStatus, string) (*regulation.Request, error) {
			return nil, regulation.ErrJustificationRequired
		},
	}

	rec := doJSON(t, testRouter(svc), http.MethodPut, "/requests/"+uuid.NewString()+"/status", UpdateRequestStatusRequest{
		Status: "DENIED",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "justification_required")
}

func TestUpdateStatusInvalidTransitionReturns409(t *testing.T) {
	svc := &stubService{
		updateRequestStatusFn: func(context.Context, auth.Identity, uuid.UUID, regulation.RequestStatus, string) (*regulation.Request, error) {
			return nil, regulation.ErrInvalidTransition
		},
	}

	rec := doJSON(t, testRouter(svc), http.MethodPut, "/requests/"+uuid.NewString()+"/status", UpdateRequestStatusRequest{
		Status: "ACCEPTED",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_status_transition")
}

func TestUpdateStatusCapacityConflictReturns409(t *testing.T) {
	svc := &stubService{
		updateRequestStatusFn: func(context.Context, auth.Identity, uuid.UUID, regulation.RequestStatus, string) (*regulation.Request, error) {
			return nil, regulation.ErrCapacityExhausted
		},
	}

	rec := doJSON(t, testRouter(svc), http.MethodPut, "/requests/"+uuid.NewString()+"/status", UpdateRequestStatusRequest{
		Status: "ACCEPTED",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "slot_capacity_conflict")
}

func TestCreateSlotBadDateReturns400(t *testing.T) {
	rec := doJSON(t, testRouter(&stubService{}), http.MethodPost, "/slots", CreateSlotRequest{
		FacilityCode:      "FAC_1",
		ProcedureCode:     "PROC_1",
		Date:              "20-06-2024",
		RemainingCapacity: 3,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_date")
}

func TestCreateSlotReturns201(t *testing.T) {
	svc := &stubService{
		createSlotFn: func(_ context.Context, _ auth.Identity, _, _ string, date time.Time, _ *string, capacity int) (*regulation.Slot, error) {
			return &regulation.Slot{
				ID:                uuid.New(),
				FacilityID:        uuid.New(),
				ProcedureID:       uuid.New(),
				Date:              date,
				RemainingCapacity: capacity,
			}, nil
		},
	}

	rec := doJSON(t, testRouter(svc), http.MethodPost, "/slots", CreateSlotRequest{
		FacilityCode:      "FAC_1",
		ProcedureCode:     "PROC_1",
		Date:              "2026-10-15",
		RemainingCapacity: 3,
	})

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-10-15", resp.Date)
	assert.Equal(t, 3, resp.RemainingCapacity)
}

func TestConfirmBooking(t *testing.T) {
	svc := &stubService{
		confirmBookingFn: func(_ context.Context, _ auth.Identity, id uuid.UUID) (*regulation.Booking, error) {
			return &regulation.Booking{
				ID:           id,
				RequestID:    uuid.New(),
				SlotID:       uuid.New(),
				Confirmation: regulation.ConfirmationConfirmed,
			}, nil
		},
	}

	rec := doJSON(t, testRouter(svc), http.MethodPost, "/bookings/"+uuid.NewString()+"/confirm", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CONFIRMED", resp.Confirmation)
}

func TestDenyBookingReturnsCancelledRequest(t *testing.T) {
	justification := "booking declined by patient"
	svc := &stubService{
		denyBookingFn: func(context.Context, auth.Identity, uuid.UUID) (*regulation.Request, error) {
			req := sampleRequest(regulation.RequestCancelled)
			req.Justification = &justification
			return req, nil
		},
	}

	rec := doJSON(t, testRouter(svc), http.MethodPost, "/bookings/"+uuid.NewString()+"/deny", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp RequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CANCELLED", resp.Status)
	require.NotNil(t, resp.Justification)
	assert.Equal(t, justification, *resp.Justification)
}

func TestCompleteBookingNotFoundReturns404(t *testing.T) {
	svc := &stubService{
		completeBookingFn: func(context.Context, auth.Identity, uuid.UUID) (*regulation.Request, error) {
			return nil, regulation.ErrBookingNotFound
		},
	}

	rec := doJSON(t, testRouter(svc), http.MethodPost, "/bookings/"+uuid.NewString()+"/complete", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "booking_not_found")
}

func TestCreateReviewInvalidRatingReturns400(t *testing.T) {
	svc := &stubService{
		submitReviewFn: func(context.Context, auth.Identity, uuid.UUID, string, int, *string) (*regulation.Review, error) {
			return nil, regulation.ErrInvalidRating
		},
	}

	rec := doJSON(t, testRouter(svc), http.MethodPost, "/reviews", CreateReviewRequest{
		BookingID: uuid.NewString(),
		PatientID: "patient-1",
		Rating:    9,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_rating")
}

func TestUnknownErrorReturns500(t *testing.T) {
	svc := &stubService{
		getRequestFn: func(context.Context, uuid.UUID) (*regulation.Request, error) {
			return nil, errors.New("connection reset")
		},
	}

	rec := doJSON(t, testRouter(svc), http.MethodGet, "/requests/"+uuid.NewString(), nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}
