//go:build integration

package service

import (
	"context"
	"testing"
	"time"

	"LundaSync/internal/config"
	"LundaSync/internal/database"
	"LundaSync/internal/model"
	"LundaSync/internal/repository"
	"LundaSync/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newPostgresHarness 启动 postgres 容器，使用 SQL 模糊检索与 advisory lock
func newPostgresHarness(t *testing.T) *harness {
	ctx := context.Background()
	pg, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("lunda"),
		postgres.WithUsername("lunda"),
		postgres.WithPassword("lunda"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := database.Open(&config.DatabaseConfig{
		Driver:       database.DriverPostgres,
		DSN:          dsn,
		MaxOpenConns: 5,
		LogLevel:     "silent",
	}, testutils.Logger())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, testutils.Logger()))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	loc := testutils.Moscow(t)
	clock := testutils.NewClock(time.Date(2025, 6, 10, 10, 0, 0, 0, loc))
	src := &memorySource{}
	cfg := EngineConfig{
		Location:          loc,
		FuzzyBackend:      repository.FuzzySQL,
		ReconnectAttempts: 1,
		LockKey:           4242,
		Now:               clock.Now,
	}
	return &harness{
		t:     t,
		loc:   loc,
		clock: clock,
		db:    db,
		src:   src,
		svc:   NewSyncService(cfg, db, src, nil, nil, testutils.Logger()),
	}
}

func TestPostgresFullCycle(t *testing.T) {
	h := newPostgresHarness(t)
	ctx := context.Background()

	first := h.run(courtA)
	assert.Equal(t, model.RunSuccess, first.Status)
	assert.Equal(t, 2, first.PlayersCreated)

	sum := h.run(courtA, courtBFuzzy)
	assert.Equal(t, 1, sum.PendingCreated)
	tb := h.tournament("Court B", "2025-06-13T19:00")
	open := h.pendingOf(tb.ID, model.PendingOpen)
	require.Len(t, open, 1)

	candidates, err := open[0].CandidateList()
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	ivan := h.player("Ivan Petrov")
	assert.Equal(t, ivan.ID, candidates[0].PlayerID)
	assert.Equal(t, 1, candidates[0].Distance)

	out, err := h.svc.Pending().Approve(ctx, open[0].ID, ivan.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, model.PendingResolved, out.Pending.Status)

	again := h.run(courtA, courtBFuzzy)
	assert.Zero(t, again.PendingCreated)
	assert.Equal(t, 3, again.EntriesConfirmed)

	runs, err := h.svc.Store().SyncRuns.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestPostgresAdvisoryLock(t *testing.T) {
	h := newPostgresHarness(t)
	ctx := context.Background()

	lock, ok, err := database.TryRunLock(ctx, h.db, 4242)
	require.NoError(t, err)
	require.True(t, ok)

	h.src.data = snapshotOf(t, courtA)
	_, err = h.svc.Run(ctx)
	assert.ErrorIs(t, err, ErrRunInProgress)

	require.NoError(t, lock.Release(ctx))
	h.run(courtA)
}
