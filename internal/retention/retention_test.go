package retention

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStopClosesStopChannel(t *testing.T) {
	job := New(nil, slog.New(slog.NewTextHandler(os.Stdout, nil)), time.Hour, 30)

	job.Stop()
	select {
	case <-job.stop:
	default:
		t.Fatal("expected stop channel to be closed")
	}
}

func TestDefaultsApplyWhenUnconfigured(t *testing.T) {
	job := New(nil, slog.New(slog.NewTextHandler(os.Stdout, nil)), 0, 0)
	assert.Equal(t, DefaultInterval, job.interval)
	assert.Equal(t, time.Duration(DefaultWindowDays)*24*time.Hour, job.window)
}
