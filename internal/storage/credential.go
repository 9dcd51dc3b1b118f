package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jeffreasy/mailgate/internal/model"
)

// ErrNotFound is returned by repository lookups that find no row.
var ErrNotFound = errors.New("storage: not found")

// CredentialRepo persists model.Credential rows.
type CredentialRepo struct {
	db DBTX
}

func NewCredentialRepo(db DBTX) *CredentialRepo {
	return &CredentialRepo{db: db}
}

func (r *CredentialRepo) GetByDigest(ctx context.Context, digest string) (*model.Credential, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, display_name, prefix, secret_digest, rate_per_minute,
		       lifecycle_state, expires_at, permission_map,
		       allowed_group_ids, allowed_email_ids, usage_count,
		       last_used_at, created_by, created_at
		FROM credentials WHERE secret_digest = $1`, digest)
	return scanCredential(row)
}

func (r *CredentialRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Credential, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, display_name, prefix, secret_digest, rate_per_minute,
		       lifecycle_state, expires_at, permission_map,
		       allowed_group_ids, allowed_email_ids, usage_count,
		       last_used_at, created_by, created_at
		FROM credentials WHERE id = $1`, id)
	return scanCredential(row)
}

func scanCredential(row pgx.Row) (*model.Credential, error) {
	var c model.Credential
	err := row.Scan(
		&c.ID, &c.DisplayName, &c.Prefix, &c.SecretDigest, &c.RatePerMinute,
		&c.LifecycleState, &c.ExpiresAt, &c.PermissionMap,
		&c.AllowedGroupIDs, &c.AllowedEmailIDs, &c.UsageCount,
		&c.LastUsedAt, &c.CreatedBy, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns every credential, newest first, for the admin console.
func (r *CredentialRepo) List(ctx context.Context) ([]*model.Credential, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, display_name, prefix, secret_digest, rate_per_minute,
		       lifecycle_state, expires_at, permission_map,
		       allowed_group_ids, allowed_email_ids, usage_count,
		       last_used_at, created_by, created_at
		FROM credentials ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts a new credential, generating its id.
func (r *CredentialRepo) Create(ctx context.Context, c *model.Credential) error {
	c.ID = uuid.New()
	_, err := r.db.Exec(ctx, `
		INSERT INTO credentials
			(id, display_name, prefix, secret_digest, rate_per_minute,
			 lifecycle_state, expires_at, permission_map,
			 allowed_group_ids, allowed_email_ids, usage_count,
			 created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, now())`,
		c.ID, c.DisplayName, c.Prefix, c.SecretDigest, c.RatePerMinute,
		c.LifecycleState, c.ExpiresAt, c.PermissionMap,
		c.AllowedGroupIDs, c.AllowedEmailIDs, c.CreatedBy,
	)
	return err
}

func (r *CredentialRepo) SetLifecycleState(ctx context.Context, id uuid.UUID, state model.LifecycleState) error {
	_, err := r.db.Exec(ctx, `UPDATE credentials SET lifecycle_state = $2 WHERE id = $1`, id, state)
	return err
}

// Update rewrites a credential's admin-mutable fields (display name,
// rate, expiry, permission map and scope), per spec.md §3's "mutated by
// admin" lifecycle entry. It never touches secret_digest, usage_count or
// last_used_at.
func (r *CredentialRepo) Update(ctx context.Context, c *model.Credential) error {
	_, err := r.db.Exec(ctx, `
		UPDATE credentials
		SET display_name = $2, rate_per_minute = $3, lifecycle_state = $4,
		    expires_at = $5, permission_map = $6, allowed_group_ids = $7,
		    allowed_email_ids = $8
		WHERE id = $1`,
		c.ID, c.DisplayName, c.RatePerMinute, c.LifecycleState,
		c.ExpiresAt, c.PermissionMap, c.AllowedGroupIDs, c.AllowedEmailIDs,
	)
	return err
}

// Delete removes a credential; PoolAssignment rows cascade per spec.md §3.
func (r *CredentialRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	return err
}

// RecordUsage bumps usage_count and last_used_at after a successful
// identification (C17).
func (r *CredentialRepo) RecordUsage(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE credentials SET usage_count = usage_count + 1, last_used_at = $2
		WHERE id = $1`, id, at)
	return err
}
