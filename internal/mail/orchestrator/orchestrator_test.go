package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeffreasy/mailgate/internal/model"
)

func TestAttemptOrderGraphFirst(t *testing.T) {
	assert.Equal(t, []bool{true, false}, attemptOrder(model.StrategyGraphFirst))
	assert.Equal(t, []bool{true, false}, attemptOrder(""))
}

func TestAttemptOrderImapFirst(t *testing.T) {
	assert.Equal(t, []bool{false, true}, attemptOrder(model.StrategyImapFirst))
}

func TestAttemptOrderGraphOnlyDisablesFallback(t *testing.T) {
	assert.Equal(t, []bool{true}, attemptOrder(model.StrategyGraphOnly))
}

func TestAttemptOrderImapOnlyDisablesFallback(t *testing.T) {
	assert.Equal(t, []bool{false}, attemptOrder(model.StrategyImapOnly))
}
