package handlers

import (
	"encoding/json"
	"net/http"
)

// writeMessage writes the `{"message": ...}` error shape the browser
// client expects from /sign.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

// writeData wraps v in the `{"data": ...}` envelope used by the list
// endpoints.
func writeData(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": v})
}
