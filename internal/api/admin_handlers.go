package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeffreasy/mailgate/internal/adminauth"
	"github.com/jeffreasy/mailgate/internal/api/helpers"
	"github.com/jeffreasy/mailgate/internal/api/middleware"
	"github.com/jeffreasy/mailgate/internal/apierr"
	"github.com/jeffreasy/mailgate/internal/auth"
	"github.com/jeffreasy/mailgate/internal/credential"
	"github.com/jeffreasy/mailgate/internal/model"
	"github.com/jeffreasy/mailgate/internal/pool"
	"github.com/jeffreasy/mailgate/internal/requestlog"
	"github.com/jeffreasy/mailgate/internal/secretbox"
	"github.com/jeffreasy/mailgate/internal/storage"
)

// AdminHandler implements the session-authenticated `/admin` surface,
// spec.md §6's console API: operator auth/2FA, credential/mailbox/group
// CRUD, pool administration and observability endpoints.
type AdminHandler struct {
	db        *pgxpool.Pool
	authn     *adminauth.Authenticator
	hasher    auth.PasswordHasher
	box       *secretbox.Box
	allocator *pool.Allocator
	reqLog    *requestlog.Logger
}

func NewAdminHandler(db *pgxpool.Pool, authn *adminauth.Authenticator, box *secretbox.Box, allocator *pool.Allocator, reqLog *requestlog.Logger) *AdminHandler {
	return &AdminHandler{
		db:        db,
		authn:     authn,
		hasher:    auth.NewBcryptHasher(),
		box:       box,
		allocator: allocator,
		reqLog:    reqLog,
	}
}

func writeErr(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		helpers.RespondAPIError(w, apiErr)
		return
	}
	helpers.RespondAPIError(w, apierr.Internal(err))
}

// loginRequest is the admin login payload: password always required,
// otp only when the account has two-factor enabled (spec.md §4.18).
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, err.Error()))
		return
	}
	if req.Username == "" || req.Password == "" {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, "username and password are required"))
		return
	}

	ip := helpers.GetRealIP(r).String()
	token, err := h.authn.Login(r.Context(), req.Username, req.Password, req.OTP, ip)
	if err != nil {
		writeErr(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(2 * time.Hour),
	})
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"token": token}})
}

func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.GetAdminClaims(r.Context())
	if err == nil {
		_ = h.authn.DiscardPendingTwoFactor(r.Context(), claims.UserID)
	}
	http.SetCookie(w, &http.Cookie{Name: "token", Value: "", Path: "/", MaxAge: -1})
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.MustGetAdminClaims(r.Context())
	helpers.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"id":       claims.UserID,
			"username": claims.Username,
			"role":     claims.Role,
		},
	})
}

func (h *AdminHandler) BeginTwoFactor(w http.ResponseWriter, r *http.Request) {
	claims := middleware.MustGetAdminClaims(r.Context())
	secret, uri, err := h.authn.BeginTwoFactorEnrollment(r.Context(), claims.UserID, claims.Username)
	if err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]string{"secret": secret, "uri": uri},
	})
}

type otpRequest struct {
	OTP string `json:"otp"`
}

func (h *AdminHandler) ConfirmTwoFactor(w http.ResponseWriter, r *http.Request) {
	claims := middleware.MustGetAdminClaims(r.Context())
	var req otpRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, err.Error()))
		return
	}
	if err := h.authn.ConfirmTwoFactorEnrollment(r.Context(), claims.UserID, req.OTP); err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true})
}

type disableTwoFactorRequest struct {
	Password string `json:"password"`
	OTP      string `json:"otp"`
}

func (h *AdminHandler) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	claims := middleware.MustGetAdminClaims(r.Context())
	var req disableTwoFactorRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, err.Error()))
		return
	}
	if err := h.authn.DisableTwoFactor(r.Context(), claims.UserID, req.Password, req.OTP); err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// DashboardStats summarizes credential/mailbox/group counts for the
// console's landing page.
func (h *AdminHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	creds, err := storage.NewCredentialRepo(h.db).List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	mailboxes, err := storage.NewMailboxRepo(h.db).List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	groups, err := storage.NewGroupRepo(h.db).List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}

	activeMailboxes := 0
	for _, m := range mailboxes {
		if m.Status == model.MailboxActive {
			activeMailboxes++
		}
	}

	helpers.RespondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"credentials":     len(creds),
			"mailboxes":       len(mailboxes),
			"activeMailboxes": activeMailboxes,
			"groups":          len(groups),
		},
	})
}

func (h *AdminHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	records, err := storage.NewApiCallRepo(h.db).List(r.Context(), 200)
	if err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "data": records})
}

func (h *AdminHandler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := storage.NewCredentialRepo(h.db).List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "data": creds})
}

type createCredentialRequest struct {
	DisplayName     string    `json:"displayName"`
	RatePerMinute   int       `json:"ratePerMinute"`
	AllowedGroupIDs []string  `json:"allowedGroupIds"`
	AllowedEmailIDs []string  `json:"allowedEmailIds"`
	PermissionMap   map[string]bool `json:"permissionMap"`
	ExpiresAt       *time.Time `json:"expiresAt"`
}

func (h *AdminHandler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	claims := middleware.MustGetAdminClaims(r.Context())

	var req createCredentialRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, err.Error()))
		return
	}
	if req.DisplayName == "" {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, "displayName is required"))
		return
	}

	rawSecret, prefix, err := credential.GenerateSecret()
	if err != nil {
		writeErr(w, err)
		return
	}

	rate := req.RatePerMinute
	if rate <= 0 {
		rate = 60
	}

	cred := &model.Credential{
		DisplayName:     req.DisplayName,
		Prefix:          prefix,
		SecretDigest:    credential.Digest(rawSecret),
		RatePerMinute:   rate,
		LifecycleState:  model.StateActive,
		ExpiresAt:       req.ExpiresAt,
		PermissionMap:   req.PermissionMap,
		AllowedGroupIDs: parseUUIDs(req.AllowedGroupIDs),
		AllowedEmailIDs: parseUUIDs(req.AllowedEmailIDs),
		CreatedBy:       claims.Username,
	}

	if err := storage.NewCredentialRepo(h.db).Create(r.Context(), cred); err != nil {
		writeErr(w, err)
		return
	}

	helpers.RespondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data": map[string]any{
			"credential": cred,
			"apiKey":     rawSecret,
		},
	})
}

func parseUUIDs(raw []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.Parse(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}

type updateCredentialRequest struct {
	DisplayName     *string          `json:"displayName"`
	RatePerMinute   *int             `json:"ratePerMinute"`
	LifecycleState  *string          `json:"lifecycleState"`
	ExpiresAt       *time.Time       `json:"expiresAt"`
	PermissionMap   *map[string]bool `json:"permissionMap"`
	AllowedGroupIDs *[]string        `json:"allowedGroupIds"`
	AllowedEmailIDs *[]string        `json:"allowedEmailIds"`
}

func (h *AdminHandler) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, "invalid credential id"))
		return
	}

	var req updateCredentialRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, err.Error()))
		return
	}

	repo := storage.NewCredentialRepo(h.db)
	cred, err := repo.GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeNotFound, "credential not found"))
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	if req.DisplayName != nil {
		cred.DisplayName = *req.DisplayName
	}
	if req.RatePerMinute != nil {
		cred.RatePerMinute = *req.RatePerMinute
	}
	if req.LifecycleState != nil {
		cred.LifecycleState = model.LifecycleState(*req.LifecycleState)
	}
	if req.ExpiresAt != nil {
		cred.ExpiresAt = req.ExpiresAt
	}
	if req.PermissionMap != nil {
		cred.PermissionMap = *req.PermissionMap
	}
	if req.AllowedGroupIDs != nil {
		cred.AllowedGroupIDs = parseUUIDs(*req.AllowedGroupIDs)
	}
	if req.AllowedEmailIDs != nil {
		cred.AllowedEmailIDs = parseUUIDs(*req.AllowedEmailIDs)
	}

	if err := repo.Update(r.Context(), cred); err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "data": cred})
}

func (h *AdminHandler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, "invalid credential id"))
		return
	}
	if err := storage.NewCredentialRepo(h.db).Delete(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *AdminHandler) GetCredentialPool(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, "invalid credential id"))
		return
	}
	ids, err := storage.NewPoolAssignmentRepo(h.db).AssignedMailboxIDs(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"mailboxIds": ids}})
}

type replacePoolRequest struct {
	MailboxIDs []string `json:"mailboxIds"`
}

func (h *AdminHandler) ReplaceCredentialPool(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, "invalid credential id"))
		return
	}

	var req replacePoolRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, err.Error()))
		return
	}

	cred, err := storage.NewCredentialRepo(h.db).GetByID(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeNotFound, "credential not found"))
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}

	if err := h.allocator.UpdatePool(r.Context(), cred, parseUUIDs(req.MailboxIDs)); err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *AdminHandler) ListMailboxes(w http.ResponseWriter, r *http.Request) {
	mailboxes, err := storage.NewMailboxRepo(h.db).List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "data": mailboxes})
}

type createMailboxRequest struct {
	Address       string  `json:"address"`
	OAuthClientID string  `json:"oauthClientId"`
	RefreshToken  string  `json:"refreshToken"`
	Password      *string `json:"password"`
	GroupID       *string `json:"groupId"`
}

func (h *AdminHandler) CreateMailbox(w http.ResponseWriter, r *http.Request) {
	var req createMailboxRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, err.Error()))
		return
	}
	if req.Address == "" || req.OAuthClientID == "" || req.RefreshToken == "" {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, "address, oauthClientId and refreshToken are required"))
		return
	}

	refreshCipher, err := h.box.Encrypt(req.RefreshToken)
	if err != nil {
		writeErr(w, err)
		return
	}

	var passwordCipher *string
	if req.Password != nil && *req.Password != "" {
		cipher, err := h.box.Encrypt(*req.Password)
		if err != nil {
			writeErr(w, err)
			return
		}
		passwordCipher = &cipher
	}

	var groupID *uuid.UUID
	if req.GroupID != nil && *req.GroupID != "" {
		id, err := uuid.Parse(*req.GroupID)
		if err != nil {
			helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, "invalid groupId"))
			return
		}
		groupID = &id
	}

	mailbox := &model.Mailbox{
		Address:            req.Address,
		OAuthClientID:      req.OAuthClientID,
		RefreshTokenCipher: refreshCipher,
		PasswordCipher:     passwordCipher,
		Status:             model.MailboxActive,
		GroupID:            groupID,
	}

	if err := storage.NewMailboxRepo(h.db).Create(r.Context(), mailbox); err != nil {
		writeErr(w, err)
		return
	}

	helpers.RespondJSON(w, http.StatusCreated, map[string]any{"success": true, "data": mailbox})
}

func (h *AdminHandler) DeleteMailbox(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, "invalid mailbox id"))
		return
	}
	if err := storage.NewMailboxRepo(h.db).Delete(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *AdminHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := storage.NewGroupRepo(h.db).List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "data": groups})
}

type createGroupRequest struct {
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	FetchStrategy string  `json:"fetchStrategy"`
}

func (h *AdminHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, err.Error()))
		return
	}
	if req.Name == "" {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, "name is required"))
		return
	}

	strategy := model.FetchStrategy(req.FetchStrategy)
	if strategy == "" {
		strategy = model.StrategyGraphFirst
	}

	group := &model.MailboxGroup{Name: req.Name, Description: req.Description, FetchStrategy: strategy}
	repo := storage.NewGroupRepo(h.db)
	if _, err := repo.GetByName(r.Context(), req.Name); err == nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeGroupExists, "a group with this name already exists"))
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		writeErr(w, err)
		return
	}

	if err := repo.Create(r.Context(), group); err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, map[string]any{"success": true, "data": group})
}

func (h *AdminHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, "invalid group id"))
		return
	}
	if err := storage.NewGroupRepo(h.db).Delete(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := storage.NewAdminRepo(h.db).List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"success": true, "data": admins})
}

type createAdminRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    *string `json:"email"`
	Role     string `json:"role"`
}

func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, err.Error()))
		return
	}
	if req.Username == "" || req.Password == "" {
		helpers.RespondAPIError(w, apierr.New(apierr.CodeValidation, "username and password are required"))
		return
	}

	digest, err := h.hasher.Hash(req.Password)
	if err != nil {
		writeErr(w, err)
		return
	}

	role := model.AdminRole(req.Role)
	if role == "" {
		role = model.RoleAdmin
	}

	account := &model.AdminAccount{
		Username:       req.Username,
		PasswordDigest: digest,
		Email:          req.Email,
		Role:           role,
		Status:         model.AdminActive,
	}

	if err := storage.NewAdminRepo(h.db).Create(r.Context(), account); err != nil {
		writeErr(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, map[string]any{"success": true, "data": account})
}
