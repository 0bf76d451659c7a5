//go:generate mockgen -source ./server.go -destination=./mocks/server.go -package=mock_server
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/orders"
	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/storage"
)

type Store interface {
	ListAll(ctx context.Context) ([]orders.Order, error)
	Orders() ([]orders.Order, error)
	Get(ctx context.Context, id string) (orders.Order, error)
	Insert(ctx context.Context, in orders.Input) (orders.Order, error)
	Update(ctx context.Context, order orders.Order) (orders.Order, error)
	Remove(ctx context.Context, id string) error
	ToggleStatus(ctx context.Context, id string) (orders.Order, error)
	Reload(ctx context.Context) error
}

type Server struct {
	store        Store
	catalog      *orders.Catalog
	location     *time.Location
	logger       *zap.Logger
	server       *http.Server
	AuditManager *AuditManager

	timeNow func() time.Time
}

type Option func(*Server)

// WithLocation sets the zone used for the dashboard day boundaries when the
// request does not name one.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) { s.location = loc }
}

// WithAuditManager records every API request through m.
func WithAuditManager(m *AuditManager) Option {
	return func(s *Server) { s.AuditManager = m }
}

func New(store Store, catalog *orders.Catalog, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		store:    store,
		catalog:  catalog,
		location: time.Local,
		logger:   logger.Named("http"),
		timeNow:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Run(ctx context.Context, port string) error {
	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if s.AuditManager != nil {
		s.AuditManager.Start(ctx)
	}

	s.logger.Info("Server starting", zap.String("port", port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	s.logger.Info("HTTP server shutdown completed")

	if s.AuditManager != nil {
		s.AuditManager.Shutdown(ctx)
	}
	s.logger.Info("Server shutdown completed successfully")

	return nil
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet).Name("handleListOrders")
	router.HandleFunc("/orders", s.handleCreateOrder).Methods(http.MethodPost).Name("handleCreateOrder")
	router.HandleFunc("/orders/{id}", s.handleGetOrder).Methods(http.MethodGet).Name("handleGetOrder")
	router.HandleFunc("/orders/{id}", s.handleUpdateOrder).Methods(http.MethodPut).Name("handleUpdateOrder")
	router.HandleFunc("/orders/{id}", s.handleDeleteOrder).Methods(http.MethodDelete).Name("handleDeleteOrder")
	router.HandleFunc("/orders/{id}/toggle", s.handleToggleStatus).Methods(http.MethodPost).Name(toggleRoute)

	router.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet).Name("handleDashboard")
	router.HandleFunc("/dashboard/reload", s.handleReload).Methods(http.MethodPost).Name("handleReload")
	router.HandleFunc("/containers", s.handleContainers).Methods(http.MethodGet).Name("handleContainers")

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name(metricsRoute)

	if s.AuditManager != nil {
		router.Use(s.auditLogMiddleware)
	}

	return router
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps store failures onto HTTP statuses.
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	var ve *orders.ValidationError
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "Validation failed",
			"fields": ve.Fields,
		})
	case errors.Is(err, orders.ErrNotFound):
		respondError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, storage.ErrNotReady):
		respondError(w, http.StatusServiceUnavailable, "Error: "+err.Error())
	case errors.Is(err, orders.ErrPersistence):
		respondError(w, http.StatusBadGateway, "Error: "+err.Error())
	default:
		s.logger.Error("Unexpected store error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Internal error")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListAll(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.Input
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := s.store.Insert(r.Context(), in)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// handleUpdateOrder takes the full order as the edit form holds it. The path
// names the order; timestamps echoed back by the client are ignored.
func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var edited orders.Order
	if err := decodeJSON(r, &edited); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if edited.ID != "" && edited.ID != id {
		respondError(w, http.StatusBadRequest, "Order id does not match the path")
		return
	}
	edited.ID = id
	edited.CreatedAt, edited.UpdatedAt = nil, nil

	order, err := s.store.Update(r.Context(), edited)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleStatus(w http.ResponseWriter, r *http.Request) {
	order, err := s.store.ToggleStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

type dashboardResponse struct {
	Date     string         `json:"date"`
	Timezone string         `json:"timezone"`
	Today    []orders.Order `json:"today"`
	Tomorrow []orders.Order `json:"tomorrow"`
	Total    int            `json:"total"`
}

// handleDashboard buckets the collection by the caller's calendar day. The
// day is taken in the tz query parameter when given.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	loc := s.location
	if tz := r.URL.Query().Get("tz"); tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid value for 'tz' parameter")
			return
		}
	}

	now := s.timeNow().In(loc)
	all, err := s.store.Orders()
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	buckets := orders.Bucket(all, now)

	respondJSON(w, http.StatusOK, dashboardResponse{
		Date:     now.Format(time.DateOnly),
		Timezone: loc.String(),
		Today:    buckets.Today,
		Tomorrow: buckets.Tomorrow,
		Total:    len(all),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reload(r.Context()); err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Orders reloaded",
	})
}

func (s *Server) handleContainers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.Specs())
}
