package handlers

import (
	"encoding/json"
	"net/http"
)

// WriteJSON encodes data as an application/json response body. A 200
// status rides on the implicit WriteHeader from the first body write;
// anything else is written explicitly.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse writes the {error, message} failure body shared by every
// handler, with a machine-readable code and a human-readable message.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
