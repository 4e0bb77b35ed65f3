package routes

import (
	"net/http"

	"pairing_server/controllers"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes sets up the ambient routes of the application
func RegisterRoutes(r *mux.Router, gatherer prometheus.Gatherer) {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
}

// RegisterSocketRoute mounts a Socket.IO handler under /socket.io/
func RegisterSocketRoute(r *mux.Router, handler http.Handler) {
	r.PathPrefix("/socket.io/").Handler(handler)
}
