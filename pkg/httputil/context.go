package httputil

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

type ContextKey string

const (
	RequestIDCtxKey ContextKey = "RequestID"
	LogEntryCtxKey  ContextKey = "LogEntry"
)

// RequestID returns the request id set by the RequestID middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDCtxKey).(string)
	return id
}

// LogEntry collects fields handlers want on the access log line. The logger
// middleware installs one per request.
type LogEntry struct {
	Logger *zap.Logger

	mu     sync.Mutex
	fields []zap.Field
}

// Add appends fields to the access log line.
func (e *LogEntry) Add(fields ...zap.Field) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fields = append(e.fields, fields...)
}

func (e *LogEntry) Fields() []zap.Field {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]zap.Field(nil), e.fields...)
}

// GetLogEntry returns the request's log entry, if any.
func GetLogEntry(ctx context.Context) (*LogEntry, bool) {
	e, ok := ctx.Value(LogEntryCtxKey).(*LogEntry)
	return e, ok && e != nil
}

// Logger returns the request-scoped logger, or a no-op logger outside the
// logger middleware.
func Logger(ctx context.Context) *zap.Logger {
	if e, ok := GetLogEntry(ctx); ok && e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Text writes a plain text response with the given status code and text content.
func Text(w http.ResponseWriter, statusCode int, text string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(text)); err != nil {
		http.Error(w, "Failed to write response", http.StatusInternalServerError)
	}
}

// ErrorResponse is the error body of the listing API.
type ErrorResponse struct {
	Errors     []string `json:"errors"`
	ErrorToken string   `json:"error_token,omitempty"`
}

// Error sends a JSON error body with a single message.
func Error(w http.ResponseWriter, statusCode int, message string) {
	JSON(w, statusCode, ErrorResponse{Errors: []string{message}})
}
