package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gitlab.ozon.dev/pupkingeorgij/deliveries/internal/orders"
)

const (
	toggleRoute  = "handleToggleStatus"
	metricsRoute = "metrics"
)

func (s *Server) auditLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler := routeName(r)
		if handler == metricsRoute {
			next.ServeHTTP(w, r)
			return
		}

		entry := AuditLogEntry{
			Timestamp: time.Now().UTC(),
			Method:    r.Method,
			Path:      r.URL.Path,
			Handler:   handler,
			OrderID:   mux.Vars(r)["id"],
		}

		if r.Body != nil {
			requestBody, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(requestBody))
			entry.Request = string(requestBody)
		}

		if handler == toggleRoute && entry.OrderID != "" {
			if order, err := s.store.Get(r.Context(), entry.OrderID); err == nil {
				entry.OldStatus = string(order.Status)
			}
		}

		wrw := newResponseWriterWrapper(w)

		next.ServeHTTP(wrw, r)

		entry.StatusCode = wrw.GetStatusCode()
		entry.Response = string(wrw.GetBody())

		if entry.StatusCode < http.StatusBadRequest {
			var resp orders.Order
			if err := json.Unmarshal(wrw.GetBody(), &resp); err == nil {
				if entry.OrderID == "" {
					entry.OrderID = resp.ID
				}
				if handler == toggleRoute {
					entry.NewStatus = string(resp.Status)
				}
			}
		}

		s.AuditManager.LogEntry(r.Context(), entry)
	})
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil && route.GetName() != "" {
		return route.GetName()
	}
	return "unknown"
}
