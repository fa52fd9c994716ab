package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"studioAPI/services"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps service errors onto status codes.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrLayerNotFound),
		errors.Is(err, services.ErrDraftNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrUnknownAssetType),
		errors.Is(err, services.ErrInvalidImageInput),
		errors.Is(err, services.ErrUnsupportedFormat),
		errors.Is(err, services.ErrUnsupportedImage),
		errors.Is(err, services.ErrImageTooLarge):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrLayerLocked):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrSessionClosed):
		respondWithError(w, http.StatusGone, err.Error())
	case errors.Is(err, services.ErrRendererDisabled):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondWithError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		log.Printf("Internal error: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
