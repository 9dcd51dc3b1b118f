package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jeffreasy/mailgate/internal/model"
)

// AdminRepo persists model.AdminAccount rows.
type AdminRepo struct {
	db DBTX
}

func NewAdminRepo(db DBTX) *AdminRepo {
	return &AdminRepo{db: db}
}

const adminColumns = `id, username, password_digest, email, role, status,
	two_factor_enabled, two_factor_secret_cipher, two_factor_pending_secret_cipher,
	last_login_at, last_login_ip`

func scanAdmin(row pgx.Row) (*model.AdminAccount, error) {
	var a model.AdminAccount
	err := row.Scan(&a.ID, &a.Username, &a.PasswordDigest, &a.Email, &a.Role, &a.Status,
		&a.TwoFactorEnabled, &a.TwoFactorSecretCipher, &a.TwoFactorPendingSecretCipher,
		&a.LastLoginAt, &a.LastLoginIP)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AdminRepo) GetByUsername(ctx context.Context, username string) (*model.AdminAccount, error) {
	row := r.db.QueryRow(ctx, `SELECT `+adminColumns+` FROM admin_accounts WHERE username = $1`, username)
	return scanAdmin(row)
}

func (r *AdminRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.AdminAccount, error) {
	row := r.db.QueryRow(ctx, `SELECT `+adminColumns+` FROM admin_accounts WHERE id = $1`, id)
	return scanAdmin(row)
}

func (r *AdminRepo) List(ctx context.Context) ([]*model.AdminAccount, error) {
	rows, err := r.db.Query(ctx, `SELECT `+adminColumns+` FROM admin_accounts ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.AdminAccount
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AdminRepo) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time, ip string) error {
	_, err := r.db.Exec(ctx, `UPDATE admin_accounts SET last_login_at = $2, last_login_ip = $3 WHERE id = $1`, id, at, ip)
	return err
}

// SetPendingTwoFactorSecret stores a freshly generated, not-yet-enabled
// TOTP secret, per C18's Disabled -> Pending(secret) transition.
func (r *AdminRepo) SetPendingTwoFactorSecret(ctx context.Context, id uuid.UUID, secretCipher string) error {
	_, err := r.db.Exec(ctx, `UPDATE admin_accounts SET two_factor_pending_secret_cipher = $2 WHERE id = $1`, id, secretCipher)
	return err
}

// EnableTwoFactor promotes the pending secret to the active one,
// per C18's Pending -> Enabled transition.
func (r *AdminRepo) EnableTwoFactor(ctx context.Context, id uuid.UUID, secretCipher string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE admin_accounts
		SET two_factor_enabled = true, two_factor_secret_cipher = $2, two_factor_pending_secret_cipher = NULL
		WHERE id = $1`, id, secretCipher)
	return err
}

// DisableTwoFactor implements C18's Enabled -> Disabled transition.
func (r *AdminRepo) DisableTwoFactor(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE admin_accounts
		SET two_factor_enabled = false, two_factor_secret_cipher = NULL, two_factor_pending_secret_cipher = NULL
		WHERE id = $1`, id)
	return err
}

// DiscardPendingTwoFactor clears an in-progress setup, per C18's
// "pending state is discarded on logout or setup re-initiation" rule.
func (r *AdminRepo) DiscardPendingTwoFactor(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE admin_accounts SET two_factor_pending_secret_cipher = NULL WHERE id = $1`, id)
	return err
}

func (r *AdminRepo) Create(ctx context.Context, a *model.AdminAccount) error {
	a.ID = uuid.New()
	_, err := r.db.Exec(ctx, `
		INSERT INTO admin_accounts (id, username, password_digest, email, role, status, two_factor_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, false)`,
		a.ID, a.Username, a.PasswordDigest, a.Email, a.Role, a.Status,
	)
	return err
}
