package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"truckslot/internal/config"
	"truckslot/internal/domain"
	"truckslot/internal/export"
	"truckslot/internal/models"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// Pinger reports whether the booking store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HTTPServer exposes the booking API over HTTP.
type HTTPServer struct {
	cfg       config.APIConfig
	svc       domain.BookingService
	health    Pinger
	timeslots []string
	limiter   *rateLimiter
	server    *http.Server
	log       *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc domain.BookingService, health Pinger, timeslots []string, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	httpLogger := logger.With().Str("component", "http").Logger()

	srv := &HTTPServer{
		cfg:       cfg,
		svc:       svc,
		health:    health,
		timeslots: timeslots,
		limiter:   newRateLimiter(cfg.RateLimit),
		log:       &httpLogger,
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.Use(metricsMiddleware)

	r.HandleFunc("/healthz", srv.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", srv.handleReady).Methods(http.MethodGet)

	// legacy routes kept for the existing booking form
	r.HandleFunc("/reserved", srv.handleReserved).Methods(http.MethodGet)
	r.HandleFunc("/booking", srv.handleCreateBooking(http.StatusOK)).Methods(http.MethodPost)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/reserved", srv.handleReserved).Methods(http.MethodGet)
	v1.HandleFunc("/timeslots", srv.handleTimeslots).Methods(http.MethodGet)
	v1.HandleFunc("/bookings", srv.handleCreateBooking(http.StatusCreated)).Methods(http.MethodPost)
	v1.HandleFunc("/bookings/export", srv.handleExport).Methods(http.MethodGet)

	handler := chain(r,
		requestIDMiddleware(&httpLogger),
		accessLogMiddleware,
		corsMiddleware(cfg.CORSOrigins),
		rateLimitMiddleware(srv.limiter),
		timeoutMiddleware(cfg.RequestTimeout),
	)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) handleReserved(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))

	reserved, err := s.svc.GetReservedTimeslots(r.Context(), date)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if reserved == nil {
		reserved = []string{}
	}

	resp := map[string]any{
		"date":          date,
		"reservedSlots": reserved,
	}
	if len(s.timeslots) > 0 {
		resp["availableSlots"] = availableSlots(s.timeslots, reserved)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleTimeslots(w http.ResponseWriter, _ *http.Request) {
	slots := s.timeslots
	if slots == nil {
		slots = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"timeslots": slots})
}

func (s *HTTPServer) handleCreateBooking(successStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		candidate, err := decodeCandidate(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		booking, err := s.svc.SubmitBooking(r.Context(), candidate)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		writeJSON(w, successStatus, map[string]any{
			"message": "Booking successful",
			"booking": booking,
		})
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))

	bookings, err := s.svc.ListBookings(r.Context(), from, to)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBookings(&buf, from, to, bookings); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("render export")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(from, to)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// decodeCandidate accepts a JSON body or a urlencoded/multipart form.
func decodeCandidate(w http.ResponseWriter, r *http.Request) (models.Candidate, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return models.Candidate{}, errors.New("invalid form body")
		}
		return models.Candidate{
			ContactName:    r.FormValue("contactName"),
			ContactEmail:   r.FormValue("contactEmail"),
			Company:        r.FormValue("company"),
			VAT:            r.FormValue("vat"),
			TruckPlate:     r.FormValue("truckPlate"),
			Date:           r.FormValue("date"),
			Timeslot:       r.FormValue("timeslot"),
			ReloadCity:     r.FormValue("reloadCity"),
			NewTruckNumber: r.FormValue("newTruckNumber"),
		}, nil
	}

	var c models.Candidate
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		return models.Candidate{}, errors.New("invalid JSON body")
	}
	return c, nil
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	var conflict *domain.ConflictError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, validationBody(verr))
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":    "Timeslot already reserved",
			"timeslot": conflict.Timeslot,
		})
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func validationBody(verr *domain.ValidationError) map[string]any {
	switch verr.Reason {
	case "date required":
		return map[string]any{"error": "Date required"}
	case "missing required fields", "":
		return map[string]any{"error": "Missing required fields", "fields": verr.Fields}
	default:
		return map[string]any{"error": verr.Reason, "fields": verr.Fields}
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
