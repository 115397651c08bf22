package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrialExpirer struct {
	now  time.Time
	rows int64
	err  error
}

func (f *fakeTrialExpirer) ExpireTrials(_ context.Context, now time.Time) (int64, error) {
	f.now = now
	return f.rows, f.err
}

func TestTrialExpiryJobPassesClock(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	repo := &fakeTrialExpirer{rows: 2}
	job, err := NewTrialExpiryJob(testLogger(), repo)
	require.NoError(t, err)
	job.(*trialExpiryJob).now = func() time.Time { return now }

	rows, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows)
	assert.True(t, repo.now.Equal(now))
}

func TestTrialExpiryJobWrapsError(t *testing.T) {
	job, err := NewTrialExpiryJob(testLogger(), &fakeTrialExpirer{err: errors.New("db down")})
	require.NoError(t, err)
	_, err = job.Run(context.Background())
	require.ErrorContains(t, err, "expire trials")
}
