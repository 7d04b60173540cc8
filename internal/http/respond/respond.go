package respond

import (
	"encoding/json"
	"log"
	"net/http"
)

// JSON writes a payload with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("respond: encode payload failed: %v", err)
	}
}

// Error writes a standard error body {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Message writes a standard confirmation body {"message": text}.
func Message(w http.ResponseWriter, status int, text string) {
	JSON(w, status, map[string]string{"message": text})
}
