// Package requestlog implements C15: logging every external-API
// invocation as an ApiCallRecord, synthesizing a request id when the
// inbound request didn't carry one (spec.md §4.15).
package requestlog

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jeffreasy/mailgate/internal/model"
	"github.com/jeffreasy/mailgate/internal/storage"
)

// Logger records ApiCallRecord rows, swallowing storage failures so a
// logging outage never masks the underlying API response.
type Logger struct {
	repo   *storage.ApiCallRepo
	logger *slog.Logger
}

func New(repo *storage.ApiCallRepo, logger *slog.Logger) *Logger {
	return &Logger{repo: repo, logger: logger}
}

// Entry is the shape a handler reports at the end of a request,
// regardless of whether it succeeded.
type Entry struct {
	Action       string
	CredentialID *uuid.UUID
	MailboxID    *uuid.UUID
	ClientIP     string
	HTTPStatus   int
	ElapsedMS    int64
	RequestID    string
	Metadata     map[string]any
}

// Record inserts a row for entry. A blank RequestID is synthesized.
// Insert failures are logged and swallowed, never returned.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	if entry.RequestID == "" {
		entry.RequestID = SynthesizeRequestID()
	}

	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["request_id"] = entry.RequestID

	record := &model.ApiCallRecord{
		Action:       entry.Action,
		CredentialID: entry.CredentialID,
		MailboxID:    entry.MailboxID,
		ClientIP:     entry.ClientIP,
		HTTPStatus:   entry.HTTPStatus,
		ElapsedMS:    entry.ElapsedMS,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}

	if err := l.repo.Insert(ctx, record); err != nil {
		l.logger.Error("request log insert failed", "error", err, "action", entry.Action, "request_id", entry.RequestID)
	}
}

// SynthesizeRequestID builds a request id in the "web-{base36 time}-{6
// random chars}" shape spec.md §4.15 names for requests that arrive
// without one.
func SynthesizeRequestID() string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(suffix)
	if len(encoded) > 6 {
		encoded = encoded[:6]
	}
	return "web-" + strconv.FormatInt(time.Now().UnixNano(), 36) + "-" + encoded
}
