package controllers

import (
	"encoding/json"
	"log"
	"net/http"

	"pairing_server/services"
	"pairing_server/utils"

	"github.com/gorilla/mux"
)

// PairingController handles identification, availability, status polling
// and disconnection of clients
type PairingController struct {
	Credentials *services.CredentialService
	Pairings    *services.PairingService
}

// NewPairingController creates a new PairingController instance
func NewPairingController(credentials *services.CredentialService, pairings *services.PairingService) *PairingController {
	return &PairingController{Credentials: credentials, Pairings: pairings}
}

type identifyRequest struct {
	Key string `json:"key" validate:"required"`
}

type announceRequest struct {
	ClientID string `json:"clientId" validate:"required"`
}

// Identify redeems a credential key and returns the client it belongs to
func (c *PairingController) Identify(w http.ResponseWriter, r *http.Request) {
	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "key is required")
		return
	}

	client, err := c.Credentials.Redeem(r.Context(), req.Key)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Identification successful",
		"clientId":  client.ClientID,
		"name":      client.Name,
		"sessionNr": client.SessionNr,
		"pair":      client.Pair,
	})
}

// Announce makes a client available for pairing and returns its pairing id
func (c *PairingController) Announce(w http.ResponseWriter, r *http.Request) {
	var req announceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "clientId is required")
		return
	}

	pairingID, err := c.Pairings.Announce(r.Context(), req.ClientID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message":   "Added to available clients",
		"pairingId": pairingID,
	})
}

// Status returns the pairing state of a client
func (c *PairingController) Status(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]

	status, err := c.Pairings.Status(r.Context(), clientID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, status)
}

// Disconnect tears down the pairing of a client and frees its credential.
// It answers 200 for clients that are already disconnected.
func (c *PairingController) Disconnect(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["clientId"]

	if err := c.Pairings.Disconnect(r.Context(), clientID); err != nil {
		writeServiceError(w, err)
		return
	}

	log.Printf("👋 Disconnect acknowledged for %s", clientID)
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Client disconnected"})
}

// ListPairings returns every live pairing
func (c *PairingController) ListPairings(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"pairings": c.Pairings.Pairings(),
	})
}
