package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jeffreasy/mailgate/internal/model"
)

// MailboxRepo persists model.Mailbox rows.
type MailboxRepo struct {
	db DBTX
}

func NewMailboxRepo(db DBTX) *MailboxRepo {
	return &MailboxRepo{db: db}
}

func scanMailbox(row pgx.Row) (*model.Mailbox, error) {
	var m model.Mailbox
	err := row.Scan(
		&m.ID, &m.Address, &m.OAuthClientID, &m.RefreshTokenCipher,
		&m.PasswordCipher, &m.Status, &m.GroupID, &m.LastCheckAt,
		&m.LastErrorMessage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const mailboxColumns = `id, address, oauth_client_id, refresh_token_cipher,
	password_cipher, status, group_id, last_check_at, last_error_message`

func (r *MailboxRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Mailbox, error) {
	row := r.db.QueryRow(ctx, `SELECT `+mailboxColumns+` FROM mailboxes WHERE id = $1`, id)
	return scanMailbox(row)
}

// GetByAddress looks up a mailbox by its email address, the identifier
// external-API callers pass as `email` to `/mail_new`, `/mail_text`,
// `/mail_all` and `/process-mailbox`.
func (r *MailboxRepo) GetByAddress(ctx context.Context, address string) (*model.Mailbox, error) {
	row := r.db.QueryRow(ctx, `SELECT `+mailboxColumns+` FROM mailboxes WHERE address = $1`, address)
	return scanMailbox(row)
}

// ListByFilter returns every mailbox matching the resolved scope
// predicate, ordered by address, for `/list-emails`.
func (r *MailboxRepo) ListByFilter(ctx context.Context, groupIDEquals *uuid.UUID, groupIDIn []uuid.UUID, mailboxIDIn []uuid.UUID) ([]*model.Mailbox, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+mailboxColumns+`
		FROM mailboxes m
		WHERE ($1::uuid IS NULL OR m.group_id = $1)
		  AND (cardinality($2::uuid[]) = 0 OR m.group_id = ANY($2))
		  AND (cardinality($3::uuid[]) = 0 OR m.id = ANY($3))
		ORDER BY m.address ASC`,
		groupIDEquals, groupIDIn, mailboxIDIn,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Mailbox
	for rows.Next() {
		m, err := scanMailbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// List returns every mailbox, for the admin console's mailbox CRUD list.
func (r *MailboxRepo) List(ctx context.Context) ([]*model.Mailbox, error) {
	rows, err := r.db.Query(ctx, `SELECT `+mailboxColumns+` FROM mailboxes ORDER BY address ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Mailbox
	for rows.Next() {
		m, err := scanMailbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Create inserts a new mailbox row, generating its ID.
func (r *MailboxRepo) Create(ctx context.Context, m *model.Mailbox) error {
	m.ID = uuid.New()
	_, err := r.db.Exec(ctx, `
		INSERT INTO mailboxes (id, address, oauth_client_id, refresh_token_cipher, password_cipher, status, group_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.Address, m.OAuthClientID, m.RefreshTokenCipher, m.PasswordCipher, m.Status, m.GroupID,
	)
	return err
}

// Delete removes a mailbox row; PoolAssignment rows cascade per spec.md §3.
func (r *MailboxRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM mailboxes WHERE id = $1`, id)
	return err
}

// LowestAvailable selects the lowest-id Active mailbox that has no
// PoolAssignment for credentialID and satisfies the resolved scope
// predicate (C9 step 2). groupIDEquals/groupIDIn/mailboxIDIn are the
// nil-able components of a scope.WherePredicate — passed as raw values
// to keep this package independent of internal/scope.
func (r *MailboxRepo) LowestAvailable(ctx context.Context, credentialID uuid.UUID, groupIDEquals *uuid.UUID, groupIDIn []uuid.UUID, mailboxIDIn []uuid.UUID) (*model.Mailbox, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+mailboxColumns+`
		FROM mailboxes m
		WHERE m.status = 'active'
		  AND NOT EXISTS (
		      SELECT 1 FROM pool_assignments pa
		      WHERE pa.credential_id = $1 AND pa.mailbox_id = m.id)
		  AND ($2::uuid IS NULL OR m.group_id = $2)
		  AND (cardinality($3::uuid[]) = 0 OR m.group_id = ANY($3))
		  AND (cardinality($4::uuid[]) = 0 OR m.id = ANY($4))
		ORDER BY m.id ASC
		LIMIT 1`,
		credentialID, groupIDEquals, groupIDIn, mailboxIDIn,
	)
	return scanMailbox(row)
}

func (r *MailboxRepo) SetStatus(ctx context.Context, id uuid.UUID, status model.MailboxStatus) error {
	_, err := r.db.Exec(ctx, `UPDATE mailboxes SET status = $2 WHERE id = $1`, id, status)
	return err
}

// RecordFetchResult atomically updates last_check_at and, on failure,
// last_error_message + status=Error, per spec.md §4.13's "each fetch
// updates last_check_at and last_error_message atomically".
func (r *MailboxRepo) RecordFetchResult(ctx context.Context, id uuid.UUID, checkedAt time.Time, errMsg *string) error {
	status := model.MailboxActive
	if errMsg != nil {
		status = model.MailboxError
	}
	_, err := r.db.Exec(ctx, `
		UPDATE mailboxes
		SET last_check_at = $2, last_error_message = $3, status = $4
		WHERE id = $1`, id, checkedAt, errMsg, status)
	return err
}

func (r *MailboxRepo) CountByGroupFilter(ctx context.Context, groupIDEquals *uuid.UUID, groupIDIn []uuid.UUID, mailboxIDIn []uuid.UUID) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM mailboxes m
		WHERE ($1::uuid IS NULL OR m.group_id = $1)
		  AND (cardinality($2::uuid[]) = 0 OR m.group_id = ANY($2))
		  AND (cardinality($3::uuid[]) = 0 OR m.id = ANY($3))`,
		groupIDEquals, groupIDIn, mailboxIDIn,
	).Scan(&total)
	return total, err
}
