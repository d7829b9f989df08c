package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"booking-service/internal/application"
	"booking-service/internal/domain"
	infraconfig "booking-service/internal/infrastructure/config"
	"booking-service/internal/infrastructure/logx"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"
)

const idempotencyHeader = "X-Idempotency-Key"

type Reservations interface {
	Book(ctx context.Context, b domain.Booking, start, end domain.Date) (domain.Booking, error)
	Cancel(ctx context.Context, bookingID string) (bool, error)
	UpdateInfo(ctx context.Context, b domain.Booking) (domain.Booking, error)
}

type Availability interface {
	AvailableDates(ctx context.Context, from, to domain.Date) ([]domain.Date, error)
	Invalidate()
}

type Server struct {
	reservations Reservations
	availability Availability
	idem         application.IdempotencyStore
	clock        application.Clock
	validate     *requestValidator

	maxStayDays   int
	horizonMonths int
	corsOrigins   []string

	ping    func(ctx context.Context) error
	metrics http.Handler
}

type ServerOption func(*Server)

func WithIdempotency(store application.IdempotencyStore) ServerOption {
	return func(s *Server) { s.idem = store }
}

func WithServerClock(c application.Clock) ServerOption { return func(s *Server) { s.clock = c } }

// WithRules sets the longest stay and how many months ahead a stay may end.
func WithRules(maxStayDays, horizonMonths int) ServerOption {
	return func(s *Server) { s.maxStayDays, s.horizonMonths = maxStayDays, horizonMonths }
}

func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) { s.corsOrigins = origins }
}

func WithMetricsHandler(h http.Handler) ServerOption { return func(s *Server) { s.metrics = h } }

func NewServer(res Reservations, avail Availability, opts ...ServerOption) *Server {
	s := &Server{
		reservations:  res,
		availability:  avail,
		idem:          application.NoopIdempotency{},
		clock:         application.SystemClock{},
		validate:      newRequestValidator(),
		maxStayDays:   infraconfig.DefaultMaxStayDays,
		horizonMonths: infraconfig.DefaultHorizonMonths,
		corsOrigins:   []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) SetReadyCheck(fn func(ctx context.Context) error) { s.ping = fn }

// window returns the first and last bookable day and the latest allowed end
// date of a stay.
func (s *Server) window() (minDate, maxDate, maxEnd domain.Date) {
	today := domain.DateOf(s.clock.Now())
	minDate, maxDate = domain.Horizon(today, s.horizonMonths)
	return minDate, maxDate, today.AddMonths(s.horizonMonths).AddDays(1)
}

func (s *Server) GetAvailableDates(w http.ResponseWriter, r *http.Request) {
	var from, to *types.Date
	if err := runtime.BindQueryParameter("form", true, false, "from", r.URL.Query(), &from); err != nil {
		writeErrors(w, http.StatusBadRequest, APIError{Code: CodeBadRequest, Message: "Illegal date format for parameter from"})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "to", r.URL.Query(), &to); err != nil {
		writeErrors(w, http.StatusBadRequest, APIError{Code: CodeBadRequest, Message: "Illegal date format for parameter to"})
		return
	}

	minDate, maxDate, _ := s.window()
	start, end := minDate, maxDate
	if from != nil {
		start = domain.DateOf(from.Time)
	}
	if to != nil {
		end = domain.DateOf(to.Time)
	}
	switch {
	case from != nil && to != nil && !end.After(start):
		writeErrors(w, http.StatusBadRequest, APIError{Code: CodeBadRequest, Message: "'to' should be after 'from'"})
		return
	case from != nil && (start.Before(minDate) || start.After(maxDate)):
		writeErrors(w, http.StatusBadRequest, APIError{
			Code:    CodeBadRequest,
			Message: fmt.Sprintf("from date should be between %s and %s", minDate, maxDate),
		})
		return
	case to != nil && end.After(maxDate):
		writeErrors(w, http.StatusBadRequest, APIError{
			Code:    CodeBadRequest,
			Message: fmt.Sprintf("to date should be lesser or equal to %s", maxDate),
		})
		return
	}

	days, err := s.availability.AvailableDates(r.Context(), start, end)
	if err != nil {
		internalError(w, r, err)
		return
	}
	out := make([]types.Date, 0, len(days))
	for _, d := range days {
		out = append(out, types.Date{Time: d.Time()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var body BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErrors(w, http.StatusBadRequest, APIError{Code: CodeBadRequest, Message: "invalid JSON body"})
		return
	}
	if errs := s.checkBooking(body); len(errs) > 0 {
		writeErrors(w, http.StatusBadRequest, errs...)
		return
	}

	key := r.Header.Get(idempotencyHeader)
	if key != "" {
		ok, err := s.idem.TryReserve(r.Context(), key)
		switch {
		case err != nil:
			logx.WithFields(r.Context()).Warn("idempotency.reserve_failed", zap.Error(err))
			key = ""
		case !ok:
			writeErrors(w, http.StatusConflict, APIError{Code: CodeDuplicateRequest, Message: "request with this idempotency key was already accepted"})
			return
		}
	}

	start, end := domain.DateOf(body.StartDate.Time), domain.DateOf(body.EndDate.Time)
	booking := domain.Booking{
		Email:     body.BookingInfo.Email,
		FirstName: body.BookingInfo.FirstName,
		LastName:  body.BookingInfo.LastName,
	}
	created, err := s.reservations.Book(r.Context(), booking, start, end)
	if err != nil && !errors.Is(err, application.ErrConflict) && key != "" {
		// nothing was booked, so a retry with the same key must reach the engine
		s.releaseKey(r, key)
	}
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, created.ID)
	case errors.Is(err, application.ErrConflict):
		writeErrors(w, http.StatusConflict, APIError{
			Code:    CodeConflict,
			Message: fmt.Sprintf("from %s to %s is conflicting with another booking", start, end),
		})
	case errors.Is(err, domain.ErrInvalidRange):
		writeErrors(w, http.StatusBadRequest, APIError{Code: CodeBadRequest, Message: err.Error()})
	default:
		internalError(w, r, err)
	}
}

func (s *Server) releaseKey(r *http.Request, key string) {
	ctx := context.WithoutCancel(r.Context())
	if err := s.idem.Release(ctx, key); err != nil {
		logx.WithFields(ctx).Warn("idempotency.release_failed", zap.Error(err))
	}
}

// checkBooking applies the field rules and then the calendar rules.
func (s *Server) checkBooking(body BookingRequest) []APIError {
	errs := s.validate.Check(body)
	if body.StartDate == nil || body.EndDate == nil {
		return errs
	}
	start, end := domain.DateOf(body.StartDate.Time), domain.DateOf(body.EndDate.Time)
	minDate, _, maxEnd := s.window()
	if start.Before(minDate) || end.After(maxEnd) {
		errs = append(errs, APIError{
			Code:    CodeBadRequest,
			Message: fmt.Sprintf("should book at least one day before and maximum %d month(s) in advance", s.horizonMonths),
		})
	}
	if !end.After(start) {
		errs = append(errs, APIError{Code: CodeBadRequest, Message: "'endDate' should be after 'startDate'"})
	}
	if start.DaysUntil(end) > s.maxStayDays {
		errs = append(errs, APIError{Code: CodeBadRequest, Message: fmt.Sprintf("Cannot book more than %d days", s.maxStayDays)})
	}
	return errs
}

func (s *Server) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}
	var info BookingInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		writeErrors(w, http.StatusBadRequest, APIError{Code: CodeBadRequest, Message: "invalid JSON body"})
		return
	}
	if errs := s.validate.Check(info); len(errs) > 0 {
		writeErrors(w, http.StatusBadRequest, errs...)
		return
	}
	_, err := s.reservations.UpdateInfo(r.Context(), domain.Booking{
		ID:        id,
		Email:     info.Email,
		FirstName: info.FirstName,
		LastName:  info.LastName,
	})
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, application.ErrNotFound):
		writeErrors(w, http.StatusNotFound, APIError{Code: CodeNotFound, Message: "booking not found"})
	default:
		internalError(w, r, err)
	}
}

func (s *Server) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(w, r)
	if !ok {
		return
	}
	existed, err := s.reservations.Cancel(r.Context(), id)
	switch {
	case err != nil:
		internalError(w, r, err)
	case !existed:
		writeErrors(w, http.StatusNotFound, APIError{Code: CodeNotFound, Message: "booking not found"})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) RefreshCache(w http.ResponseWriter, _ *http.Request) {
	s.availability.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func bookingID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "bookingId", chi.URLParam(r, "bookingId"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil || id == "" {
		writeErrors(w, http.StatusBadRequest, APIError{Code: CodeBadRequest, Message: "invalid bookingId"})
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrors(w http.ResponseWriter, status int, errs ...APIError) {
	writeJSON(w, status, ErrorsResponse{Errors: errs})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	logx.WithFields(r.Context()).Error("http.internal_error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeErrors(w, http.StatusInternalServerError, APIError{Code: CodeInternal, Message: http.StatusText(http.StatusInternalServerError)})
}
