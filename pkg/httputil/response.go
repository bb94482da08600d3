// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"
)

// APIError is the wire format for error responses. Code is a stable
// machine-readable identifier, Data carries the HTTP status for clients
// that only look at the body.
type APIError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Data    APIErrorData `json:"data"`
}

type APIErrorData struct {
	Status int `json:"status"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates an APIError with the given code, message and status
func NewAPIError(code, message string, status int) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Data:    APIErrorData{Status: status},
	}
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteAPIError writes an APIError as JSON using the status carried in the error
func WriteAPIError(w http.ResponseWriter, err *APIError) {
	WriteJSON(w, err.Data.Status, err)
}

// WriteError writes a coded JSON error response with the given status
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteAPIError(w, NewAPIError(code, message, status))
}

// WriteValidationError writes a validation error response (400 Bad Request)
func WriteValidationError(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusBadRequest, code, message)
}

// WriteNotFoundError writes a not found error response (404 Not Found)
func WriteNotFoundError(w http.ResponseWriter, code, message string) {
	WriteError(w, http.StatusNotFound, code, message)
}

// WriteInternalError writes an internal server error response (500 Internal Server Error)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, "blockindex.internal_error", err.Error())
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
