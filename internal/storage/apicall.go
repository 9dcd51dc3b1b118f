package storage

import (
	"context"
	"time"

	"github.com/jeffreasy/mailgate/internal/model"
)

// ApiCallRepo persists model.ApiCallRecord rows (the append-only request
// log C15 writes to and C16 prunes).
type ApiCallRepo struct {
	db DBTX
}

func NewApiCallRepo(db DBTX) *ApiCallRepo {
	return &ApiCallRepo{db: db}
}

// Insert appends rec, populating its ID from the returned row.
func (r *ApiCallRepo) Insert(ctx context.Context, rec *model.ApiCallRecord) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO api_call_records
			(action, credential_id, mailbox_id, client_ip, http_status, elapsed_ms, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		rec.Action, rec.CredentialID, rec.MailboxID, rec.ClientIP,
		rec.HTTPStatus, rec.ElapsedMS, rec.Metadata, rec.CreatedAt,
	).Scan(&rec.ID)
}

// DeleteOlderThan removes rows with created_at before cutoff (C16),
// returning the number of rows removed.
func (r *ApiCallRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM api_call_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// List returns the most recent api call records, newest first, capped at
// limit, for the admin console's call-log listing.
func (r *ApiCallRepo) List(ctx context.Context, limit int) ([]*model.ApiCallRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, action, credential_id, mailbox_id, client_ip, http_status, elapsed_ms, metadata, created_at
		FROM api_call_records ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ApiCallRecord
	for rows.Next() {
		var rec model.ApiCallRecord
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.CredentialID, &rec.MailboxID,
			&rec.ClientIP, &rec.HTTPStatus, &rec.ElapsedMS, &rec.Metadata, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
