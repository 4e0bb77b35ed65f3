package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"pairing_server/services"
	"pairing_server/utils"

	"github.com/gorilla/mux"
)

// RosterController handles provisioning and export of client sessions
type RosterController struct {
	Roster *services.RosterService
}

// NewRosterController creates a new RosterController instance
func NewRosterController(roster *services.RosterService) *RosterController {
	return &RosterController{Roster: roster}
}

type createSessionRequest struct {
	NumberPlayers int `json:"numberPlayers" validate:"required,min=2,max=1000"`
}

type updateClientsRequest struct {
	UpdateClients []services.ClientUpdate `json:"updateClients" validate:"required,min=1,dive"`
}

func sessionNrFromPath(r *http.Request) (int, error) {
	sessionNr, err := strconv.Atoi(mux.Vars(r)["sessionNr"])
	if err != nil || sessionNr <= 0 {
		return 0, fmt.Errorf("invalid session number")
	}
	return sessionNr, nil
}

// CreateSession provisions a new session of clients with fresh keys
func (c *RosterController) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	sessionNr, clients, err := c.Roster.CreateSession(r.Context(), req.NumberPlayers)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   fmt.Sprintf("The players were created! The session number is %d.", sessionNr),
		"sessionNr": sessionNr,
		"clients":   clients,
	})
}

// ListSession returns the clients of one session
func (c *RosterController) ListSession(w http.ResponseWriter, r *http.Request) {
	sessionNr, err := sessionNrFromPath(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	clients, err := c.Roster.ListSession(r.Context(), sessionNr)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessionNr": sessionNr,
		"clients":   clients,
	})
}

// UpdateClients edits the name and conditions of clients
func (c *RosterController) UpdateClients(w http.ResponseWriter, r *http.Request) {
	var req updateClientsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	if err := c.Roster.UpdateClients(r.Context(), req.UpdateClients); err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Update successful"})
}

// ExportCSV downloads the semicolon separated key sheet of a session
func (c *RosterController) ExportCSV(w http.ResponseWriter, r *http.Request) {
	c.export(w, r, services.ExportRosterCSV)
}

// ExportAllocation downloads the tab separated allocation file of a session
func (c *RosterController) ExportAllocation(w http.ResponseWriter, r *http.Request) {
	c.export(w, r, services.ExportAllocation)
}

func (c *RosterController) export(w http.ResponseWriter, r *http.Request, kind string) {
	sessionNr, err := sessionNrFromPath(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := c.Roster.Export(r.Context(), sessionNr, kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	filename, contentType := fmt.Sprintf("session_%d.csv", sessionNr), "text/csv"
	if kind == services.ExportAllocation {
		filename, contentType = "Allocation.txt", "text/plain"
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// PublishExport uploads an export to object storage and returns a read URL.
// The kind query parameter selects csv (default) or allocation.
func (c *RosterController) PublishExport(w http.ResponseWriter, r *http.Request) {
	sessionNr, err := sessionNrFromPath(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = services.ExportRosterCSV
	}

	url, err := c.Roster.PublishExport(r.Context(), sessionNr, kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}
