package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrAlreadyUsed signals a PoolAssignment primary-key violation: this
// (credential, mailbox) pair is already assigned (spec.md §4.9).
var ErrAlreadyUsed = errors.New("storage: pool assignment already exists")

// PoolAssignmentRepo persists model.PoolAssignment rows.
type PoolAssignmentRepo struct {
	db DBTX
}

func NewPoolAssignmentRepo(db DBTX) *PoolAssignmentRepo {
	return &PoolAssignmentRepo{db: db}
}

// MarkUsed inserts a PoolAssignment, translating a primary-key conflict
// into ErrAlreadyUsed.
func (r *PoolAssignmentRepo) MarkUsed(ctx context.Context, credentialID, mailboxID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO pool_assignments (credential_id, mailbox_id, assigned_at)
		VALUES ($1, $2, now())`, credentialID, mailboxID)
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyUsed
	}
	return err
}

// Reset removes assignments for credentialID restricted to the given
// scope/group filter (nil-able group-equals, group-in, mailbox-in —
// matching the shape mailbox.LowestAvailable uses).
func (r *PoolAssignmentRepo) Reset(ctx context.Context, credentialID uuid.UUID, groupIDEquals *uuid.UUID, groupIDIn []uuid.UUID, mailboxIDIn []uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM pool_assignments pa
		USING mailboxes m
		WHERE pa.mailbox_id = m.id
		  AND pa.credential_id = $1
		  AND ($2::uuid IS NULL OR m.group_id = $2)
		  AND (cardinality($3::uuid[]) = 0 OR m.group_id = ANY($3))
		  AND (cardinality($4::uuid[]) = 0 OR m.id = ANY($4))`,
		credentialID, groupIDEquals, groupIDIn, mailboxIDIn,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountUsed returns the number of assignments for credentialID within
// the given scope/group filter, for C9's stats() operation.
func (r *PoolAssignmentRepo) CountUsed(ctx context.Context, credentialID uuid.UUID, groupIDEquals *uuid.UUID, groupIDIn []uuid.UUID, mailboxIDIn []uuid.UUID) (int, error) {
	var used int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM pool_assignments pa
		JOIN mailboxes m ON m.id = pa.mailbox_id
		WHERE pa.credential_id = $1
		  AND ($2::uuid IS NULL OR m.group_id = $2)
		  AND (cardinality($3::uuid[]) = 0 OR m.group_id = ANY($3))
		  AND (cardinality($4::uuid[]) = 0 OR m.id = ANY($4))`,
		credentialID, groupIDEquals, groupIDIn, mailboxIDIn,
	).Scan(&used)
	return used, err
}

// AssignedMailboxIDs returns every mailbox id currently assigned to
// credentialID, for update_pool's diff computation.
func (r *PoolAssignmentRepo) AssignedMailboxIDs(ctx context.Context, credentialID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT mailbox_id FROM pool_assignments WHERE credential_id = $1`, credentialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *PoolAssignmentRepo) Remove(ctx context.Context, credentialID, mailboxID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM pool_assignments WHERE credential_id = $1 AND mailbox_id = $2`, credentialID, mailboxID)
	return err
}
