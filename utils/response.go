package utils

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// WriteJSON encodes body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("response: encode failed: %v", err)
	}
}

// Success writes a successful envelope.
func Success(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, Response{Success: true, Message: message, Data: data})
}

// SuccessList writes a successful envelope carrying a collection and its size.
func SuccessList(w http.ResponseWriter, data interface{}, count int) {
	WriteJSON(w, http.StatusOK, Response{Success: true, Data: data, Count: &count})
}

// WriteError maps err onto the envelope. Internal errors are logged; their
// detail reaches the client only when dev is true.
func WriteError(w http.ResponseWriter, err error, dev bool) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = Internal(err)
	}
	body := Response{Success: false, Message: appErr.Message}
	if appErr.Kind == KindInternal {
		log.Printf("internal error request_id=%s: %v", w.Header().Get("X-Request-ID"), err)
		if dev && appErr.Err != nil {
			body.Error = appErr.Err.Error()
		}
	}
	WriteJSON(w, appErr.Kind.Status(), body)
}
