package helpers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jeffreasy/mailgate/internal/apierr"
)

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// RespondError writes a bare error response with the given status code and message.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{
		"error": message,
	})
}

// RespondAPIError writes the typed error envelope spec.md §7 requires for
// both the external and admin surfaces: code, message and, if present,
// structured details.
func RespondAPIError(w http.ResponseWriter, err *apierr.Error) {
	RespondJSON(w, err.Status, map[string]any{
		"error": map[string]any{
			"code":    err.Code,
			"message": err.Message,
			"details": err.Details,
		},
	})
}

// RespondEnvelope writes spec.md §6's external-API success envelope:
// {success: true, data, requestId}.
func RespondEnvelope(w http.ResponseWriter, status int, data any, requestID string) {
	w.Header().Set("X-Request-Id", requestID)
	RespondJSON(w, status, map[string]any{
		"success":   true,
		"data":      data,
		"requestId": requestID,
	})
}

// RespondEnvelopeError writes spec.md §6's external-API error envelope:
// {success: false, error: {code, message, details?}, requestId}.
func RespondEnvelopeError(w http.ResponseWriter, err *apierr.Error, requestID string) {
	w.Header().Set("X-Request-Id", requestID)
	RespondJSON(w, err.Status, map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    err.Code,
			"message": err.Message,
			"details": err.Details,
		},
		"requestId": requestID,
	})
}
