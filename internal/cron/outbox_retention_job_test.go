package cron

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgdb "github.com/angelmondragon/tiendas-backend/pkg/db"
	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	"github.com/angelmondragon/tiendas-backend/pkg/outbox"
)

func TestOutboxRetentionJobUsesCutoff(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxPurger{rows: 7}
	job := newOutboxRetentionJob(t, inlineTx{}, repo, 0)
	job.now = func() time.Time { return now }

	rows, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), rows)
	assert.True(t, repo.cutoff.Equal(now.AddDate(0, 0, -defaultOutboxRetentionDays)))
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	job := newOutboxRetentionJob(t, inlineTx{}, &fakeOutboxPurger{err: errors.New("boom")}, 7)
	_, err := job.Run(context.Background())
	require.Error(t, err)
}

func TestOutboxRetentionJobKeepsPendingRows(t *testing.T) {
	dsn := "file:cron_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))

	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -40)
	recent := now.AddDate(0, 0, -1)
	rows := []models.OutboxEvent{
		outboxRow(&old),
		outboxRow(&recent),
		outboxRow(nil),
	}
	require.NoError(t, conn.Create(&rows).Error)

	job := newOutboxRetentionJob(t, pkgdb.FromConn(conn), outbox.NewRepository(conn), 30)
	job.now = func() time.Time { return now }

	deleted, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)
}

func outboxRow(publishedAt *time.Time) models.OutboxEvent {
	return models.OutboxEvent{
		EventType:     enums.EventSaleSettled,
		AggregateType: enums.AggregateSale,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		PublishedAt:   publishedAt,
	}
}

func newOutboxRetentionJob(t *testing.T, db txRunner, repo outboxPurger, days int) *outboxRetentionJob {
	t.Helper()
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:        testLogger(),
		DB:            db,
		Repository:    repo,
		RetentionDays: days,
	})
	require.NoError(t, err)
	impl, ok := job.(*outboxRetentionJob)
	require.True(t, ok, "unexpected job type %T", job)
	return impl
}

type fakeOutboxPurger struct {
	cutoff time.Time
	rows   int64
	err    error
}

func (f *fakeOutboxPurger) DeletePublishedBefore(_ *gorm.DB, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.rows, nil
}

type inlineTx struct{}

func (inlineTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
