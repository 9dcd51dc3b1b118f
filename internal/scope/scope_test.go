package scope

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffreasy/mailgate/internal/apierr"
	"github.com/jeffreasy/mailgate/internal/model"
)

func TestResolveGroupFilterNoRestrictions(t *testing.T) {
	cred := &model.Credential{}
	pred, err := ResolveGroupFilter(cred, nil)
	require.NoError(t, err)
	assert.Nil(t, pred.GroupIDEquals)
	assert.Empty(t, pred.GroupIDIn)
}

func TestResolveGroupFilterRequestedGroupMustBeAllowed(t *testing.T) {
	allowed := uuid.New()
	requested := uuid.New()
	cred := &model.Credential{AllowedGroupIDs: []uuid.UUID{allowed}}

	_, err := ResolveGroupFilter(cred, &requested)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.CodeGroupForbidden, apiErr.Code)

	pred, err := ResolveGroupFilter(cred, &allowed)
	require.NoError(t, err)
	require.NotNil(t, pred.GroupIDEquals)
	assert.Equal(t, allowed, *pred.GroupIDEquals)
}

func TestResolveGroupFilterAppliesAllowedGroupsWhenNoGroupRequested(t *testing.T) {
	g1, g2 := uuid.New(), uuid.New()
	cred := &model.Credential{AllowedGroupIDs: []uuid.UUID{g1, g2}}

	pred, err := ResolveGroupFilter(cred, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{g1, g2}, pred.GroupIDIn)
}

func TestResolveGroupFilterAppliesAllowedEmailIDs(t *testing.T) {
	m1 := uuid.New()
	cred := &model.Credential{AllowedEmailIDs: []uuid.UUID{m1}}

	pred, err := ResolveGroupFilter(cred, nil)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{m1}, pred.MailboxIDIn)
}

func TestValidateMailboxInScope(t *testing.T) {
	allowed := uuid.New()
	other := uuid.New()
	cred := &model.Credential{AllowedEmailIDs: []uuid.UUID{allowed}}

	assert.NoError(t, ValidateMailboxInScope(cred, allowed))

	err := ValidateMailboxInScope(cred, other)
	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.CodeEmailForbidden, apiErr.Code)

	unrestricted := &model.Credential{}
	assert.NoError(t, ValidateMailboxInScope(unrestricted, other))
}
