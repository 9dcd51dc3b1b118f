package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jeffreasy/mailgate/internal/model"
)

// GroupRepo persists model.MailboxGroup rows.
type GroupRepo struct {
	db DBTX
}

func NewGroupRepo(db DBTX) *GroupRepo {
	return &GroupRepo{db: db}
}

func scanGroup(row pgx.Row) (*model.MailboxGroup, error) {
	var g model.MailboxGroup
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.FetchStrategy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GroupRepo) GetByName(ctx context.Context, name string) (*model.MailboxGroup, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, description, fetch_strategy FROM mailbox_groups WHERE name = $1`, name)
	return scanGroup(row)
}

func (r *GroupRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.MailboxGroup, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, description, fetch_strategy FROM mailbox_groups WHERE id = $1`, id)
	return scanGroup(row)
}

func (r *GroupRepo) List(ctx context.Context) ([]*model.MailboxGroup, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, description, fetch_strategy FROM mailbox_groups ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.MailboxGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *GroupRepo) Create(ctx context.Context, g *model.MailboxGroup) error {
	g.ID = uuid.New()
	_, err := r.db.Exec(ctx, `
		INSERT INTO mailbox_groups (id, name, description, fetch_strategy)
		VALUES ($1, $2, $3, $4)`, g.ID, g.Name, g.Description, g.FetchStrategy)
	return err
}

// Delete removes a group, nulling group_id on any mailbox that referenced
// it rather than deleting those mailboxes, per spec.md §3's mailbox-group
// lifecycle note.
func (r *GroupRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `UPDATE mailboxes SET group_id = NULL WHERE group_id = $1`, id); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `DELETE FROM mailbox_groups WHERE id = $1`, id)
	return err
}
