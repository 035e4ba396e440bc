package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrQuotaExhausted is returned when the daily call quota blocks a request.
	ErrQuotaExhausted = errors.New("daily call quota exhausted")
)

// APIError is a non-success gateway response.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	// Code is the gateway's error code, e.g. "InvalidCredentials" or "409".
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("marvel %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, msg, e.Err)
	}
	return fmt.Sprintf("marvel %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, msg)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// DecodeError builds an APIError from a non-2xx response and closes its body.
// The gateway answers errors as {"code": ..., "message"|"status": ...}; code
// is a string for auth failures and a number for parameter errors.
func DecodeError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: classifyStatus(resp.StatusCode),
		Message:    resp.Status,
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	if err != nil {
		apiErr.Err = fmt.Errorf("read error body: %w", err)
		return apiErr
	}

	var payload struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
		Status  string          `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return apiErr
	}

	apiErr.Code = strings.Trim(string(payload.Code), `"`)
	switch {
	case payload.Message != "":
		apiErr.Message = payload.Message
	case payload.Status != "":
		apiErr.Message = payload.Status
	}

	return apiErr
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassClient:
		// 4xx: the request itself is wrong (bad hash, bad params)
		return false
	case ErrorClassRateLimit:
		// 429 means the daily quota is gone; it will not recover within a backoff window
		return false
	case ErrorClassServer:
		return true
	case ErrorClassNetwork:
		return true
	default:
		return false
	}
}
