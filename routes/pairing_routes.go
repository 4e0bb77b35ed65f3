package routes

import (
	"pairing_server/controllers"
	"pairing_server/services"

	"github.com/gorilla/mux"
)

// RegisterPairingRoutes sets up routes for pairing operations under /api/pairing
func RegisterPairingRoutes(r *mux.Router, credentials *services.CredentialService, pairings *services.PairingService) {
	controller := controllers.NewPairingController(credentials, pairings)

	pairingRouter := r.PathPrefix("/api/pairing").Subrouter()
	pairingRouter.HandleFunc("/identify", controller.Identify).Methods("POST")
	pairingRouter.HandleFunc("/announce", controller.Announce).Methods("POST")
	pairingRouter.HandleFunc("/status/{clientId}", controller.Status).Methods("GET")
	pairingRouter.HandleFunc("/disconnect/{clientId}", controller.Disconnect).Methods("POST")
	pairingRouter.HandleFunc("/pairings", controller.ListPairings).Methods("GET")
}
