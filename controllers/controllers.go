package controllers

import (
	"errors"
	"log"
	"net/http"

	"pairing_server/services"
	"pairing_server/utils"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the pairing server!"})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCredentialNotFound):
		utils.WriteError(w, http.StatusNotFound, "You entered a wrong key! Try again...")
	case errors.Is(err, services.ErrAlreadyRedeemed):
		utils.WriteError(w, http.StatusConflict, "Key already in use! Please enter another key...")
	case errors.Is(err, services.ErrClientNotFound):
		utils.WriteError(w, http.StatusNotFound, "This client does not exist!")
	case errors.Is(err, services.ErrInvalidRoster), errors.Is(err, services.ErrDuplicateKey):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrExportUnavailable):
		utils.WriteError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, services.ErrPersistence):
		log.Printf("❌ Persistence failure: %v", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "Server busy, try again please.")
	default:
		log.Printf("❌ Unexpected error: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, "Server error, try again please.")
	}
}
