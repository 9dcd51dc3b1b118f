// Package model holds the entity types shared across the mail gateway:
// credentials, mailboxes, groups, pool assignments, admin accounts and
// the API call log.
package model

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleState is the Active/Disabled lifecycle of a Credential.
type LifecycleState string

const (
	StateActive   LifecycleState = "active"
	StateDisabled LifecycleState = "disabled"
)

// Credential is the identity external callers present to the gateway.
type Credential struct {
	ID               uuid.UUID
	DisplayName      string
	Prefix           string // first 7 chars of the raw secret, advisory only
	SecretDigest     string // sha256 hex digest of the raw secret, unique
	RatePerMinute    int
	LifecycleState   LifecycleState
	ExpiresAt        *time.Time
	PermissionMap    map[string]bool
	AllowedGroupIDs  []uuid.UUID
	AllowedEmailIDs  []uuid.UUID
	UsageCount       int64
	LastUsedAt       *time.Time
	CreatedBy        string
	CreatedAt        time.Time
}

// MailboxStatus is the health state of a Mailbox.
type MailboxStatus string

const (
	MailboxActive   MailboxStatus = "active"
	MailboxError    MailboxStatus = "error"
	MailboxDisabled MailboxStatus = "disabled"
)

// Mailbox is a real Microsoft consumer mailbox the gateway can fetch.
type Mailbox struct {
	ID                 uuid.UUID
	Address             string
	OAuthClientID        string
	RefreshTokenCipher  string // sealed by secretbox
	PasswordCipher      *string
	Status              MailboxStatus
	GroupID             *uuid.UUID
	LastCheckAt         *time.Time
	LastErrorMessage    *string
}

// FetchStrategy is a MailboxGroup's Graph/IMAP ordering preference.
type FetchStrategy string

const (
	StrategyGraphFirst FetchStrategy = "graph_first"
	StrategyImapFirst  FetchStrategy = "imap_first"
	StrategyGraphOnly  FetchStrategy = "graph_only"
	StrategyImapOnly   FetchStrategy = "imap_only"
)

// MailboxGroup is a logical bucket of mailboxes with a fetch-strategy hint.
type MailboxGroup struct {
	ID            uuid.UUID
	Name          string
	Description   *string
	FetchStrategy FetchStrategy
}

// PoolAssignment is a claim that a (credential, mailbox) pair has been
// handed out. Primary key is (CredentialID, MailboxID).
type PoolAssignment struct {
	CredentialID uuid.UUID
	MailboxID    uuid.UUID
	AssignedAt   time.Time
}

// AdminRole is the privilege level of an AdminAccount.
type AdminRole string

const (
	RoleSuperAdmin AdminRole = "super_admin"
	RoleAdmin      AdminRole = "admin"
)

// AdminStatus is the lifecycle of an AdminAccount.
type AdminStatus string

const (
	AdminActive   AdminStatus = "active"
	AdminDisabled AdminStatus = "disabled"
)

// AdminAccount is a human operator of the admin console.
type AdminAccount struct {
	ID                          uuid.UUID
	Username                    string
	PasswordDigest              string
	Email                       *string
	Role                        AdminRole
	Status                      AdminStatus
	TwoFactorEnabled            bool
	TwoFactorSecretCipher       *string
	TwoFactorPendingSecretCipher *string
	LastLoginAt                 *time.Time
	LastLoginIP                 *string
}

// ApiCallRecord is an append-only log entry for an external-API invocation.
type ApiCallRecord struct {
	ID           int64
	Action       string
	CredentialID *uuid.UUID
	MailboxID    *uuid.UUID
	ClientIP     string
	HTTPStatus   int
	ElapsedMS    int64
	Metadata     map[string]any
	CreatedAt    time.Time
}
