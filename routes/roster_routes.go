package routes

import (
	"pairing_server/controllers"
	"pairing_server/services"

	"github.com/gorilla/mux"
)

// RegisterRosterRoutes sets up routes for session provisioning under /api/roster
func RegisterRosterRoutes(r *mux.Router, roster *services.RosterService) {
	controller := controllers.NewRosterController(roster)

	rosterRouter := r.PathPrefix("/api/roster").Subrouter()
	rosterRouter.HandleFunc("/sessions", controller.CreateSession).Methods("POST")
	rosterRouter.HandleFunc("/sessions/{sessionNr}", controller.ListSession).Methods("GET")
	rosterRouter.HandleFunc("/sessions/{sessionNr}/csv", controller.ExportCSV).Methods("GET")
	rosterRouter.HandleFunc("/sessions/{sessionNr}/allocation", controller.ExportAllocation).Methods("GET")
	rosterRouter.HandleFunc("/sessions/{sessionNr}/publish", controller.PublishExport).Methods("POST")
	rosterRouter.HandleFunc("/clients", controller.UpdateClients).Methods("PATCH")
}
