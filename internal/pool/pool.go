// Package pool implements C9: the mailbox pool allocator. It resolves an
// optional group name and a credential's C8 scope into a mailbox-lookup
// predicate, hands out the lowest-id unassigned Active mailbox, and
// exposes the mark_used/reset/stats/update_pool operations spec.md §4.9
// names.
package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeffreasy/mailgate/internal/apierr"
	"github.com/jeffreasy/mailgate/internal/model"
	"github.com/jeffreasy/mailgate/internal/scope"
	"github.com/jeffreasy/mailgate/internal/secretbox"
	"github.com/jeffreasy/mailgate/internal/storage"
)

// MaxAllocateAttempts bounds allocate+mark_used retries on an AlreadyUsed
// race before the caller gives up with ConcurrencyLimit (spec.md §4.9).
const MaxAllocateAttempts = 3

// Stats is the result of the stats() operation.
type Stats struct {
	Total     int
	Used      int
	Remaining int
}

// Allocator implements the pool allocation operations against Postgres.
type Allocator struct {
	db  *pgxpool.Pool
	box *secretbox.Box
}

func New(db *pgxpool.Pool, box *secretbox.Box) *Allocator {
	return &Allocator{db: db, box: box}
}

// resolveFilter turns an optional group name into a scope.WherePredicate,
// failing GroupNotFound if the name doesn't resolve.
func (a *Allocator) resolveFilter(ctx context.Context, db storage.DBTX, cred *model.Credential, groupName *string) (scope.WherePredicate, error) {
	var groupID *uuid.UUID
	if groupName != nil {
		g, err := storage.NewGroupRepo(db).GetByName(ctx, *groupName)
		if errors.Is(err, storage.ErrNotFound) {
			return scope.WherePredicate{}, apierr.New(apierr.CodeGroupNotFound, "mailbox group not found")
		}
		if err != nil {
			return scope.WherePredicate{}, fmt.Errorf("pool: resolve group: %w", err)
		}
		groupID = &g.ID
	}
	return scope.ResolveGroupFilter(cred, groupID)
}

// Allocate implements spec.md §4.9 step 1-3: resolve the group, pick the
// lowest-id eligible mailbox, and return it with its refresh token
// decrypted. It does not mark the mailbox used — call MarkUsed after the
// caller has committed to it, or use AllocateAndMark for the
// allocate+mark-with-retry flow external routes need.
func (a *Allocator) Allocate(ctx context.Context, cred *model.Credential, groupName *string) (*model.Mailbox, string, error) {
	pred, err := a.resolveFilter(ctx, a.db, cred, groupName)
	if err != nil {
		return nil, "", err
	}

	mailbox, err := storage.NewMailboxRepo(a.db).LowestAvailable(ctx, cred.ID, pred.GroupIDEquals, pred.GroupIDIn, pred.MailboxIDIn)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", apierr.New(apierr.CodeNoUnusedEmail, "no unused mailbox is available for this credential")
	}
	if err != nil {
		return nil, "", fmt.Errorf("pool: lookup mailbox: %w", err)
	}

	refreshToken, err := a.box.Decrypt(mailbox.RefreshTokenCipher)
	if err != nil {
		return nil, "", fmt.Errorf("pool: decrypt refresh token: %w", err)
	}
	return mailbox, refreshToken, nil
}

// MarkUsed records that credentialID has claimed mailboxID, translating a
// unique-constraint conflict into apierr.CodeAlreadyUsed.
func (a *Allocator) MarkUsed(ctx context.Context, credentialID, mailboxID uuid.UUID) error {
	err := storage.NewPoolAssignmentRepo(a.db).MarkUsed(ctx, credentialID, mailboxID)
	if errors.Is(err, storage.ErrAlreadyUsed) {
		return apierr.New(apierr.CodeAlreadyUsed, "mailbox is already assigned to this credential")
	}
	return err
}

// AllocateAndMark runs Allocate+MarkUsed, retrying up to
// MaxAllocateAttempts times when a race loses to another caller claiming
// the same mailbox, per spec.md §4.9's closing paragraph.
func (a *Allocator) AllocateAndMark(ctx context.Context, cred *model.Credential, groupName *string) (*model.Mailbox, string, error) {
	for attempt := 0; attempt < MaxAllocateAttempts; attempt++ {
		mailbox, refreshToken, err := a.Allocate(ctx, cred, groupName)
		if err != nil {
			return nil, "", err
		}

		if err := a.MarkUsed(ctx, cred.ID, mailbox.ID); err != nil {
			var apiErr *apierr.Error
			if errors.As(err, &apiErr) && apiErr.Code == apierr.CodeAlreadyUsed {
				continue
			}
			return nil, "", err
		}
		return mailbox, refreshToken, nil
	}
	return nil, "", apierr.New(apierr.CodeConcurrencyLimit, "could not allocate a mailbox after concurrent retries")
}

// Reset removes credentialID's assignments restricted to the resolved
// group/scope filter.
func (a *Allocator) Reset(ctx context.Context, cred *model.Credential, groupName *string) (int64, error) {
	pred, err := a.resolveFilter(ctx, a.db, cred, groupName)
	if err != nil {
		return 0, err
	}
	return storage.NewPoolAssignmentRepo(a.db).Reset(ctx, cred.ID, pred.GroupIDEquals, pred.GroupIDIn, pred.MailboxIDIn)
}

// Stats computes {total, used, remaining = max(0, total - used)}.
func (a *Allocator) Stats(ctx context.Context, cred *model.Credential, groupName *string) (Stats, error) {
	pred, err := a.resolveFilter(ctx, a.db, cred, groupName)
	if err != nil {
		return Stats{}, err
	}

	mailboxRepo := storage.NewMailboxRepo(a.db)
	poolRepo := storage.NewPoolAssignmentRepo(a.db)

	total, err := mailboxRepo.CountByGroupFilter(ctx, pred.GroupIDEquals, pred.GroupIDIn, pred.MailboxIDIn)
	if err != nil {
		return Stats{}, fmt.Errorf("pool: count total: %w", err)
	}
	used, err := poolRepo.CountUsed(ctx, cred.ID, pred.GroupIDEquals, pred.GroupIDIn, pred.MailboxIDIn)
	if err != nil {
		return Stats{}, fmt.Errorf("pool: count used: %w", err)
	}

	remaining := total - used
	if remaining < 0 {
		remaining = 0
	}
	return Stats{Total: total, Used: used, Remaining: remaining}, nil
}

// UpdatePool replaces credentialID's assignment set with desiredMailboxIDs
// in one transaction, rejecting any id outside cred's allowed_email_ids.
// cred's allowed_group_ids are not checked here.
func (a *Allocator) UpdatePool(ctx context.Context, cred *model.Credential, desiredMailboxIDs []uuid.UUID) error {
	for _, id := range desiredMailboxIDs {
		if err := scope.ValidateMailboxInScope(cred, id); err != nil {
			return err
		}
	}

	return storage.WithTx(ctx, a.db, func(tx pgx.Tx) error {
		poolRepo := storage.NewPoolAssignmentRepo(tx)

		current, err := poolRepo.AssignedMailboxIDs(ctx, cred.ID)
		if err != nil {
			return fmt.Errorf("pool: load current assignments: %w", err)
		}

		desired := make(map[uuid.UUID]bool, len(desiredMailboxIDs))
		for _, id := range desiredMailboxIDs {
			desired[id] = true
		}
		existing := make(map[uuid.UUID]bool, len(current))
		for _, id := range current {
			existing[id] = true
		}

		for id := range desired {
			if !existing[id] {
				if err := poolRepo.MarkUsed(ctx, cred.ID, id); err != nil && !errors.Is(err, storage.ErrAlreadyUsed) {
					return fmt.Errorf("pool: add assignment %s: %w", id, err)
				}
			}
		}
		for id := range existing {
			if !desired[id] {
				if err := poolRepo.Remove(ctx, cred.ID, id); err != nil {
					return fmt.Errorf("pool: remove assignment %s: %w", id, err)
				}
			}
		}
		return nil
	})
}
