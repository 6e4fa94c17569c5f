package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes sets up all the HTTP routes.
func RegisterRoutes(r *mux.Router, h *Handler) {
	// Topology of the local node
	r.HandleFunc("/node", h.GetNode).Methods("GET")
	r.HandleFunc("/node/children", h.GetChildren).Methods("GET")
	r.HandleFunc("/node/notify", h.Notify).Methods("POST")

	// Archive
	r.HandleFunc("/samples", h.GetSamples).Methods("GET")
	r.HandleFunc("/samples/stats", h.GetStats).Methods("GET")
	r.HandleFunc("/devices", h.GetDevices).Methods("GET")

	// Live stream
	r.HandleFunc("/ws", h.ServeWS)
	r.HandleFunc("/ws/stats", h.WSStats).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// NewRouter returns a router with every route registered.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	RegisterRoutes(r, h)
	return r
}
