// Package scope implements C8: resolving a Credential's allowed_group_ids
// and allowed_email_ids into a WherePredicate the pool allocator's storage
// queries can apply, per spec.md §4.8 and §9's "explicit predicate
// builder" design note. It isolates the scope rules from both the
// allocator's business logic and the storage layer's query building, so
// the rules here are testable independent of either.
package scope

import (
	"slices"

	"github.com/google/uuid"

	"github.com/jeffreasy/mailgate/internal/apierr"
	"github.com/jeffreasy/mailgate/internal/model"
)

// WherePredicate is the resolved set of constraints a mailbox lookup must
// satisfy. A nil/zero field means "no constraint of this kind".
type WherePredicate struct {
	// GroupIDEquals restricts to a single group (an explicitly requested
	// group that passed the allow-list check).
	GroupIDEquals *uuid.UUID
	// GroupIDIn restricts to the credential's allowed_group_ids when no
	// single group was requested.
	GroupIDIn []uuid.UUID
	// MailboxIDIn restricts to the credential's allowed_email_ids.
	MailboxIDIn []uuid.UUID
}

// ResolveGroupFilter builds the WherePredicate for a mailbox allocation
// lookup, given an optionally-requested group. Per spec.md §4.8:
//   - if allowed_group_ids is non-empty and a group is explicitly
//     requested, the requested group must be in the allow-list or this
//     returns apierr.CodeGroupForbidden;
//   - otherwise allowed_group_ids (if non-empty) becomes an IN predicate;
//   - allowed_email_ids (if non-empty) always becomes an IN predicate.
func ResolveGroupFilter(cred *model.Credential, requestedGroupID *uuid.UUID) (WherePredicate, error) {
	var pred WherePredicate

	if len(cred.AllowedGroupIDs) > 0 {
		if requestedGroupID != nil {
			if !slices.Contains(cred.AllowedGroupIDs, *requestedGroupID) {
				return WherePredicate{}, apierr.New(apierr.CodeGroupForbidden, "requested group is outside this credential's allowed groups")
			}
			pred.GroupIDEquals = requestedGroupID
		} else {
			pred.GroupIDIn = cred.AllowedGroupIDs
		}
	} else if requestedGroupID != nil {
		pred.GroupIDEquals = requestedGroupID
	}

	if len(cred.AllowedEmailIDs) > 0 {
		pred.MailboxIDIn = cred.AllowedEmailIDs
	}

	return pred, nil
}

// ValidateMailboxInScope rejects, with apierr.CodeEmailForbidden, any
// mailbox id outside a credential's resolved allowed_email_ids. Used by
// admin-side scope updates per spec.md §4.8's closing rule. An empty
// allowed_email_ids list imposes no restriction.
func ValidateMailboxInScope(cred *model.Credential, mailboxID uuid.UUID) error {
	if len(cred.AllowedEmailIDs) == 0 {
		return nil
	}
	if slices.Contains(cred.AllowedEmailIDs, mailboxID) {
		return nil
	}
	return apierr.New(apierr.CodeEmailForbidden, "mailbox is outside this credential's allowed scope")
}
