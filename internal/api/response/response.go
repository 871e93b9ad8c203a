// Package response writes the {success, data, message, code} JSON envelope.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/mind-engage/learnhub/internal/apierr"
)

type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func OK(w http.ResponseWriter, data any) {
	write(w, http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(w http.ResponseWriter, data any) {
	write(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

func Message(w http.ResponseWriter, msg string) {
	write(w, http.StatusOK, Envelope{Success: true, Message: msg})
}

// Error renders err. An *apierr.Error in the chain supplies status, code and
// any detail fields, which are flattened next to the message. Anything else
// is a 500 with a generic message.
func Error(w http.ResponseWriter, err error) {
	ae, ok := apierr.As(err)
	if !ok {
		ae = apierr.New(http.StatusInternalServerError, apierr.CodeInternal, nil)
	}
	status := ae.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	msg := "Internal server error"
	if status < 500 && ae.Err != nil {
		msg = ae.Err.Error()
	}
	body := map[string]any{
		"success": false,
		"message": msg,
	}
	if ae.Code != "" {
		body["code"] = ae.Code
	}
	for k, v := range ae.Details {
		if _, reserved := body[k]; !reserved {
			body[k] = v
		}
	}
	write(w, status, body)
}
