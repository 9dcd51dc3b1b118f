package api

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeffreasy/mailgate/internal/api/helpers"
	"github.com/jeffreasy/mailgate/internal/api/middleware"
	"github.com/jeffreasy/mailgate/internal/apierr"
	"github.com/jeffreasy/mailgate/internal/mail/orchestrator"
	"github.com/jeffreasy/mailgate/internal/model"
	"github.com/jeffreasy/mailgate/internal/pool"
	"github.com/jeffreasy/mailgate/internal/proxydial"
	"github.com/jeffreasy/mailgate/internal/requestlog"
	"github.com/jeffreasy/mailgate/internal/scope"
	"github.com/jeffreasy/mailgate/internal/secretbox"
	"github.com/jeffreasy/mailgate/internal/storage"
)

// defaultMailLimit bounds /mail_new; /mail_all passes unboundedLimit
// (unbounded is implemented as a generous upper bound, since Graph/IMAP
// still need a concrete $top/SEARCH cap).
const (
	defaultMailLimit = 10
	unboundedLimit   = 1000
)

// ExternalHandler implements the key-authenticated `/api` surface, §6.
type ExternalHandler struct {
	db           *pgxpool.Pool
	allocator    *pool.Allocator
	orchestrator *orchestrator.Orchestrator
	box          *secretbox.Box
	logger       *requestlog.Logger
}

func NewExternalHandler(db *pgxpool.Pool, allocator *pool.Allocator, orch *orchestrator.Orchestrator, box *secretbox.Box, logger *requestlog.Logger) *ExternalHandler {
	return &ExternalHandler{db: db, allocator: allocator, orchestrator: orch, box: box, logger: logger}
}

// outcome is what an action closure reports back to the instrumentation
// wrapper: the envelope payload on success, or an *apierr.Error, plus the
// mailbox the call touched (if any) for the request log.
type outcome struct {
	data      any
	err       *apierr.Error
	mailboxID *uuid.UUID
}

// instrument runs fn with the identified credential and parsed params,
// writes the JSON envelope spec.md §6 defines, and appends one
// ApiCallRecord regardless of outcome (C15).
func (h *ExternalHandler) instrument(actionKey string, w http.ResponseWriter, r *http.Request, fn func(cred *model.Credential, params map[string]string) outcome) {
	start := time.Now()
	requestID := chimw.GetReqID(r.Context())
	ip := helpers.GetRealIP(r).String()

	cred, credErr := middleware.GetCredential(r.Context())
	if credErr != nil {
		helpers.RespondEnvelopeError(w, apierr.New(apierr.CodeUnauthorized, "credential required"), requestID)
		return
	}

	params, err := helpers.ParseRequestParams(r)
	var out outcome
	if err != nil {
		out = outcome{err: apierr.New(apierr.CodeValidation, err.Error())}
	} else {
		out = fn(cred, params)
	}

	status := http.StatusOK
	if out.err != nil {
		status = out.err.Status
		helpers.RespondEnvelopeError(w, out.err, requestID)
	} else {
		helpers.RespondEnvelope(w, status, out.data, requestID)
	}

	h.logger.Record(r.Context(), requestlog.Entry{
		Action:       actionKey,
		CredentialID: &cred.ID,
		MailboxID:    out.mailboxID,
		ClientIP:     ip,
		HTTPStatus:   status,
		ElapsedMS:    time.Since(start).Milliseconds(),
		RequestID:    requestID,
	})
}

// GetEmail implements `/get-email`: allocate+mark an unused mailbox for
// the caller's credential, within an optional group.
func (h *ExternalHandler) GetEmail(w http.ResponseWriter, r *http.Request) {
	h.instrument("get_email", w, r, func(cred *model.Credential, params map[string]string) outcome {
		var groupName *string
		if g := params["group"]; g != "" {
			groupName = &g
		}

		mailbox, _, err := h.allocator.AllocateAndMark(r.Context(), cred, groupName)
		if err != nil {
			return outcome{err: toAPIErr(err)}
		}

		return outcome{
			data:      map[string]any{"email": mailbox.Address, "id": mailbox.ID},
			mailboxID: &mailbox.ID,
		}
	})
}

// mailboxAndToken loads the mailbox by address, checks it against cred's
// resolved scope (C8), and decrypts its refresh token.
func (h *ExternalHandler) mailboxAndToken(r *http.Request, cred *model.Credential, address string) (*model.Mailbox, string, *apierr.Error) {
	mailboxRepo := storage.NewMailboxRepo(h.db)
	mailbox, err := mailboxRepo.GetByAddress(r.Context(), address)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", apierr.New(apierr.CodeEmailNotFound, "mailbox not found")
	}
	if err != nil {
		return nil, "", apierr.Internal(err)
	}

	if _, scopeErr := scope.ResolveGroupFilter(cred, mailbox.GroupID); scopeErr != nil {
		return nil, "", toAPIErr(scopeErr)
	}
	if len(cred.AllowedGroupIDs) > 0 && mailbox.GroupID == nil {
		return nil, "", apierr.New(apierr.CodeGroupForbidden, "mailbox is outside this credential's allowed groups")
	}
	if scopeErr := scope.ValidateMailboxInScope(cred, mailbox.ID); scopeErr != nil {
		return nil, "", toAPIErr(scopeErr)
	}

	token, err := h.box.Decrypt(mailbox.RefreshTokenCipher)
	if err != nil {
		return nil, "", apierr.New(apierr.CodeCryptoInvalid, "stored refresh token is unreadable")
	}
	return mailbox, token, nil
}

func (h *ExternalHandler) fetchStrategy(r *http.Request, mailbox *model.Mailbox) model.FetchStrategy {
	if mailbox.GroupID == nil {
		return model.StrategyGraphFirst
	}
	group, err := storage.NewGroupRepo(h.db).GetByID(r.Context(), *mailbox.GroupID)
	if err != nil {
		return model.StrategyGraphFirst
	}
	return group.FetchStrategy
}

func proxyOptionsFrom(params map[string]string) proxydial.Options {
	return proxydial.Options{SOCKS5: params["socks5"], HTTP: params["http"]}
}

func folderFrom(params map[string]string) string {
	if f := params["mailbox"]; f == "junk" {
		return "junk"
	}
	return "inbox"
}

// fetchMail is shared by /mail_new, /mail_text and /mail_all.
func (h *ExternalHandler) fetchMail(r *http.Request, cred *model.Credential, params map[string]string, limit int) (*model.Mailbox, orchestrator.FetchResult, *apierr.Error) {
	address := params["email"]
	if address == "" {
		return nil, orchestrator.FetchResult{}, apierr.New(apierr.CodeValidation, "email is required")
	}

	mailbox, token, apiErr := h.mailboxAndToken(r, cred, address)
	if apiErr != nil {
		return nil, orchestrator.FetchResult{}, apiErr
	}

	strategy := h.fetchStrategy(r, mailbox)
	opts := orchestrator.FetchOptions{Folder: folderFrom(params), Limit: limit, Proxy: proxyOptionsFrom(params)}

	result, err := h.orchestrator.Fetch(r.Context(), mailbox.Address, token, mailbox.OAuthClientID, strategy, opts)
	h.recordFetchOutcome(r, mailbox.ID, err)
	if err != nil {
		return mailbox, orchestrator.FetchResult{}, toAPIErr(err)
	}
	return mailbox, result, nil
}

// recordFetchOutcome updates the mailbox's last_check_at/last_error_message
// atomically, per spec.md §4.13's closing line, regardless of whether the
// fetch succeeded.
func (h *ExternalHandler) recordFetchOutcome(r *http.Request, mailboxID uuid.UUID, fetchErr error) {
	var msg *string
	if fetchErr != nil {
		text := fetchErr.Error()
		msg = &text
	}
	_ = storage.NewMailboxRepo(h.db).RecordFetchResult(r.Context(), mailboxID, time.Now(), msg)
}

func messagesToWire(messages []orchestrator.Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, map[string]any{
			"id":      m.ID,
			"from":    m.From,
			"subject": m.Subject,
			"text":    m.Text,
			"html":    m.HTML,
			"date":    m.Date,
		})
	}
	return out
}

// MailNew implements `/mail_new`: fetch the most recent messages.
func (h *ExternalHandler) MailNew(w http.ResponseWriter, r *http.Request) {
	h.instrument("mail_new", w, r, func(cred *model.Credential, params map[string]string) outcome {
		mailbox, result, apiErr := h.fetchMail(r, cred, params, defaultMailLimit)
		if apiErr != nil {
			var mbID *uuid.UUID
			if mailbox != nil {
				mbID = &mailbox.ID
			}
			return outcome{err: apiErr, mailboxID: mbID}
		}
		return outcome{
			data: map[string]any{
				"email":    mailbox.Address,
				"mailbox":  folderFrom(params),
				"count":    len(result.Messages),
				"messages": messagesToWire(result.Messages),
				"method":   result.Method,
			},
			mailboxID: &mailbox.ID,
		}
	})
}

// MailAll implements `/mail_all`: fetch every message, unbounded.
func (h *ExternalHandler) MailAll(w http.ResponseWriter, r *http.Request) {
	h.instrument("mail_all", w, r, func(cred *model.Credential, params map[string]string) outcome {
		mailbox, result, apiErr := h.fetchMail(r, cred, params, unboundedLimit)
		if apiErr != nil {
			var mbID *uuid.UUID
			if mailbox != nil {
				mbID = &mailbox.ID
			}
			return outcome{err: apiErr, mailboxID: mbID}
		}
		return outcome{
			data: map[string]any{
				"email":    mailbox.Address,
				"mailbox":  folderFrom(params),
				"count":    len(result.Messages),
				"messages": messagesToWire(result.Messages),
				"method":   result.Method,
			},
			mailboxID: &mailbox.ID,
		}
	})
}

// MailText implements `/mail_text`: a plain-text response carrying
// either a regex match/capture group or the full body text of the
// newest message. Unlike the other routes, this one never uses the
// JSON envelope, per spec.md §6.
func (h *ExternalHandler) MailText(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := chimw.GetReqID(r.Context())
	ip := helpers.GetRealIP(r).String()

	cred, credErr := middleware.GetCredential(r.Context())
	if credErr != nil {
		writePlainError(w, apierr.New(apierr.CodeUnauthorized, "credential required"))
		return
	}

	params, err := helpers.ParseRequestParams(r)
	if err != nil {
		writePlainError(w, apierr.New(apierr.CodeValidation, err.Error()))
		return
	}

	mailbox, result, apiErr := h.fetchMail(r, cred, params, defaultMailLimit)
	status := http.StatusOK
	var mbID *uuid.UUID
	if mailbox != nil {
		mbID = &mailbox.ID
	}

	if apiErr != nil {
		status = apiErr.Status
		writePlainError(w, apiErr)
	} else if len(result.Messages) == 0 {
		status = http.StatusOK
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Request-Id", requestID)
		w.WriteHeader(status)
	} else {
		text := result.Messages[0].Text
		body := text
		if match := params["match"]; match != "" {
			body = extractMatch(match, text)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Request-Id", requestID)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}

	h.logger.Record(r.Context(), requestlog.Entry{
		Action:       "mail_text",
		CredentialID: &cred.ID,
		MailboxID:    mbID,
		ClientIP:     ip,
		HTTPStatus:   status,
		ElapsedMS:    time.Since(start).Milliseconds(),
		RequestID:    requestID,
	})
}

// extractMatch applies the `match` regex to text, returning its first
// named/numbered capture group if one matched, or else the whole match,
// per spec.md §6's "matched group or first capture, or full text body".
func extractMatch(pattern, text string) string {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return text
	}
	groups := re.FindStringSubmatch(text)
	if groups == nil {
		return text
	}
	if len(groups) > 1 {
		return groups[1]
	}
	return groups[0]
}

func writePlainError(w http.ResponseWriter, apiErr *apierr.Error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(apiErr.Status)
	_, _ = w.Write([]byte("Error: " + apiErr.Message))
}

// ProcessMailbox implements `/process-mailbox`: clear a mailbox's folder.
func (h *ExternalHandler) ProcessMailbox(w http.ResponseWriter, r *http.Request) {
	h.instrument("process_mailbox", w, r, func(cred *model.Credential, params map[string]string) outcome {
		address := params["email"]
		if address == "" {
			return outcome{err: apierr.New(apierr.CodeValidation, "email is required")}
		}

		mailbox, token, apiErr := h.mailboxAndToken(r, cred, address)
		if apiErr != nil {
			return outcome{err: apiErr}
		}

		opts := orchestrator.FetchOptions{Folder: folderFrom(params), Proxy: proxyOptionsFrom(params)}
		result, err := h.orchestrator.Clear(r.Context(), mailbox.Address, token, mailbox.OAuthClientID, opts)
		h.recordFetchOutcome(r, mailbox.ID, err)
		if err != nil {
			return outcome{err: toAPIErr(err), mailboxID: &mailbox.ID}
		}

		return outcome{
			data: map[string]any{
				"email":        mailbox.Address,
				"mailbox":      folderFrom(params),
				"status":       result.Status,
				"deletedCount": result.DeletedCount,
			},
			mailboxID: &mailbox.ID,
		}
	})
}

// ListEmails implements `/list-emails`: the scoped mailbox list.
func (h *ExternalHandler) ListEmails(w http.ResponseWriter, r *http.Request) {
	h.instrument("list_emails", w, r, func(cred *model.Credential, params map[string]string) outcome {
		var requestedGroupID *uuid.UUID
		var groupNames = map[uuid.UUID]string{}
		groupRepo := storage.NewGroupRepo(h.db)

		if groupName := params["group"]; groupName != "" {
			g, err := groupRepo.GetByName(r.Context(), groupName)
			if errors.Is(err, storage.ErrNotFound) {
				return outcome{err: apierr.New(apierr.CodeGroupNotFound, "mailbox group not found")}
			}
			if err != nil {
				return outcome{err: apierr.Internal(err)}
			}
			requestedGroupID = &g.ID
		}

		pred, err := scope.ResolveGroupFilter(cred, requestedGroupID)
		if err != nil {
			return outcome{err: toAPIErr(err)}
		}

		mailboxes, err := storage.NewMailboxRepo(h.db).ListByFilter(r.Context(), pred.GroupIDEquals, pred.GroupIDIn, pred.MailboxIDIn)
		if err != nil {
			return outcome{err: apierr.Internal(err)}
		}

		emails := make([]map[string]any, 0, len(mailboxes))
		for _, m := range mailboxes {
			groupLabel := ""
			if m.GroupID != nil {
				if name, ok := groupNames[*m.GroupID]; ok {
					groupLabel = name
				} else if g, err := groupRepo.GetByID(r.Context(), *m.GroupID); err == nil {
					groupLabel = g.Name
					groupNames[*m.GroupID] = g.Name
				}
			}
			emails = append(emails, map[string]any{
				"email":  m.Address,
				"status": m.Status,
				"group":  groupLabel,
			})
		}

		return outcome{data: map[string]any{"total": len(emails), "emails": emails}}
	})
}

// PoolStats implements `/pool-stats`.
func (h *ExternalHandler) PoolStats(w http.ResponseWriter, r *http.Request) {
	h.instrument("pool_stats", w, r, func(cred *model.Credential, params map[string]string) outcome {
		var groupName *string
		if g := params["group"]; g != "" {
			groupName = &g
		}
		stats, err := h.allocator.Stats(r.Context(), cred, groupName)
		if err != nil {
			return outcome{err: toAPIErr(err)}
		}
		return outcome{data: map[string]any{"total": stats.Total, "used": stats.Used, "remaining": stats.Remaining}}
	})
}

// PoolReset implements `/reset-pool`.
func (h *ExternalHandler) PoolReset(w http.ResponseWriter, r *http.Request) {
	h.instrument("pool_reset", w, r, func(cred *model.Credential, params map[string]string) outcome {
		var groupName *string
		if g := params["group"]; g != "" {
			groupName = &g
		}
		if _, err := h.allocator.Reset(r.Context(), cred, groupName); err != nil {
			return outcome{err: toAPIErr(err)}
		}
		return outcome{data: map[string]any{"message": "pool reset"}}
	})
}

// toAPIErr normalizes any error into the typed envelope, wrapping
// unrecognized errors as a generic InternalError per spec.md §7.
func toAPIErr(err error) *apierr.Error {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return apierr.Internal(err)
}
