package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AzizTN01/autorent-back/internal/application"
)

type fakeAdvancer struct {
	calls []time.Time
	err   error
}

func (f *fakeAdvancer) AdvanceLifecycle(_ context.Context, now time.Time, batch int) (application.SweepResult, error) {
	f.calls = append(f.calls, now)
	return application.SweepResult{Started: 1}, f.err
}

func TestNewLifecycleJob_EmptySpecDisables(t *testing.T) {
	j, err := NewLifecycleJob("", &fakeAdvancer{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, j)
}

func TestNewLifecycleJob_InvalidSpec(t *testing.T) {
	_, err := NewLifecycleJob("every now and then", &fakeAdvancer{}, zap.NewNop())
	assert.Error(t, err)
}

func TestLifecycleJob_RunPassesClock(t *testing.T) {
	adv := &fakeAdvancer{}
	j, err := NewLifecycleJob("@every 1m", adv, zap.NewNop())
	require.NoError(t, err)

	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	j.Run()
	adv.err = errors.New("store down")
	j.Run()

	assert.Equal(t, []time.Time{fixed, fixed}, adv.calls)
}

func TestLifecycleJob_SkipsWhileRunning(t *testing.T) {
	adv := &fakeAdvancer{}
	j, err := NewLifecycleJob("@every 1m", adv, zap.NewNop())
	require.NoError(t, err)

	j.running.Lock()
	j.Run()
	j.running.Unlock()

	assert.Empty(t, adv.calls)
}
