package api

import (
	"log/slog"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the public routes. The .ics route must be registered
// before the bare account route so "/123.ics" is not taken as account "123.ics".
func NewRouter(h *Handler, logger *slog.Logger) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware(logger), recoverMiddleware(logger))

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/", h.Root).Methods("GET")
	r.HandleFunc(endpointCalendar, h.GetCalendar).Methods("GET")
	r.HandleFunc(endpointPage, h.GetPage).Methods("GET")
	return r
}
