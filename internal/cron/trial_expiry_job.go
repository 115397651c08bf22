package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/tiendas-backend/pkg/logger"
)

type trialExpirer interface {
	ExpireTrials(ctx context.Context, now time.Time) (int64, error)
}

// NewTrialExpiryJob deactivates TRIAL tenants whose next billing date has passed.
// Inactive tenants fail the operational check, so their staff loses access on the next request.
func NewTrialExpiryJob(logg *logger.Logger, tenants trialExpirer) (Job, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if tenants == nil {
		return nil, errors.New("tenant repository required")
	}
	return &trialExpiryJob{logg: logg, tenants: tenants, now: time.Now}, nil
}

type trialExpiryJob struct {
	logg    *logger.Logger
	tenants trialExpirer
	now     func() time.Time
}

func (j *trialExpiryJob) Name() string { return "tenant-trial-expiry" }

func (j *trialExpiryJob) Run(ctx context.Context) (int64, error) {
	rows, err := j.tenants.ExpireTrials(ctx, j.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire trials: %w", err)
	}
	if rows > 0 {
		j.logg.Warn(j.logg.WithField(ctx, "tenants_expired", rows), "trial tenants deactivated")
	}
	return rows, nil
}
