package airtable

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("record store api error %d: %s", e.StatusCode, e.Type)
	}
	return fmt.Sprintf("record store api error %d: %s: %s", e.StatusCode, e.Type, e.Message)
}

// Retryable is true for rate limiting and server side failures.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// The API reports errors either as {"error": "TYPE"} or {"error": {"type": ..., "message": ...}}.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		apiErr.Type = http.StatusText(status)
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}
	var detail struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err == nil {
		apiErr.Type = detail.Type
		apiErr.Message = detail.Message
		return apiErr
	}
	var kind string
	if err := json.Unmarshal(envelope.Error, &kind); err == nil {
		apiErr.Type = kind
	}
	return apiErr
}
