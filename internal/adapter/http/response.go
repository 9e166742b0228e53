package http

import (
	"encoding/json"
	"net/http"

	apperror "github.com/roadwatch/roadwatch/pkg/error"
)

// envelope is the body of every JSON response
type envelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Code    string      `json:"code,omitempty"`
	Details []string    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func writeSuccessResponse(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	writeJSON(w, statusCode, envelope{Status: true, Message: message, Data: data})
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, envelope{Status: false, Message: message, Code: code})
}

// writeError maps err to its client facing form
func writeError(w http.ResponseWriter, err error) {
	appErr := apperror.MapError(err)
	writeJSON(w, appErr.Status, envelope{
		Status:  false,
		Message: appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}
