package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"LundaSync/internal/interfaces"
	"LundaSync/internal/interfaces/mocks"
	"LundaSync/internal/model"
	"LundaSync/internal/repository"
	"LundaSync/internal/testutils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"
)

type memorySource struct {
	data  []byte
	mtime *time.Time
	err   error
}

func (m *memorySource) Scheme() string   { return "memory" }
func (m *memorySource) Location() string { return "memory://tournaments.json" }

func (m *memorySource) Fetch(context.Context) (*interfaces.Snapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &interfaces.Snapshot{Location: m.Location(), ModTime: m.mtime, Data: m.data}, nil
}

type tourFixture struct {
	Location string
	Start    string // 为空时不写 start_datetime，记录无效
	Players  []string
}

func snapshotOf(t *testing.T, tours ...tourFixture) []byte {
	t.Helper()
	list := make([]map[string]interface{}, 0, len(tours))
	for _, tr := range tours {
		rec := map[string]interface{}{
			"tournament":   map[string]interface{}{"title": "Cup " + tr.Location, "location": tr.Location, "price": "1500 Р"},
			"participants": tr.Players,
		}
		if tr.Start != "" {
			rec["start_datetime"] = tr.Start
		}
		list = append(list, rec)
	}
	raw, err := json.Marshal(map[string]interface{}{"last_updated": "2025-06-10T09:00:00", "tournaments": list})
	require.NoError(t, err)
	return raw
}

type harness struct {
	t     *testing.T
	loc   *time.Location
	clock *testutils.Clock
	db    *gorm.DB
	src   *memorySource
	svc   *SyncService
}

func newHarness(t *testing.T, notifier interfaces.Notifier) *harness {
	loc := testutils.Moscow(t)
	clock := testutils.NewClock(time.Date(2025, 6, 10, 10, 0, 0, 0, loc))
	db := testutils.NewSQLiteDB(t)
	src := &memorySource{}
	cfg := EngineConfig{
		Location:          loc,
		FuzzyBackend:      repository.FuzzyMemory,
		ReconnectAttempts: 1,
		Now:               clock.Now,
	}
	return &harness{
		t:     t,
		loc:   loc,
		clock: clock,
		db:    db,
		src:   src,
		svc:   NewSyncService(cfg, db, src, notifier, nil, testutils.Logger()),
	}
}

// run 每次把时钟推进一小时，保证上一批次的 last_seen_at 早于本批次开始
func (h *harness) run(tours ...tourFixture) *RunSummary {
	h.t.Helper()
	h.clock.Advance(time.Hour)
	h.src.data = snapshotOf(h.t, tours...)
	sum, err := h.svc.Run(context.Background())
	require.NoError(h.t, err)
	return sum
}

func (h *harness) tournament(location, start string) *model.Tournament {
	h.t.Helper()
	startsAt, err := time.ParseInLocation("2006-01-02T15:04", start, h.loc)
	require.NoError(h.t, err)
	tr, err := h.svc.Store().Tournaments.FindByNaturalKey(context.Background(), location, startsAt)
	require.NoError(h.t, err)
	require.NotNil(h.t, tr, "赛事 %s %s 不存在", location, start)
	return tr
}

func (h *harness) player(fullName string) *model.Player {
	h.t.Helper()
	p, err := h.svc.Store().Players.FindByFullName(context.Background(), fullName)
	require.NoError(h.t, err)
	require.NotNil(h.t, p, "选手 %s 不存在", fullName)
	return p
}

func (h *harness) entries(tournamentID uint64) []*model.Entry {
	h.t.Helper()
	list, err := h.svc.Store().Entries.ListByTournament(context.Background(), tournamentID)
	require.NoError(h.t, err)
	return list
}

func (h *harness) pendingOf(tournamentID uint64, status model.PendingStatus) []*model.PendingEntry {
	h.t.Helper()
	list, _, err := h.svc.Store().Pending.List(context.Background(),
		repository.PendingFilter{TournamentID: tournamentID, Status: status}, 1, 100)
	require.NoError(h.t, err)
	return list
}

func (h *harness) count(m interface{}) int64 {
	h.t.Helper()
	var n int64
	require.NoError(h.t, h.db.Model(m).Count(&n).Error)
	return n
}

var (
	courtA = tourFixture{Location: "Court A", Start: "2025-06-12T18:00", Players: []string{"Ivan Petrov", "Anna Smirnova"}}
	courtB = tourFixture{Location: "Court B", Start: "2025-06-13T19:00", Players: []string{"Oleg Sidorov"}}
)

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)

	first := h.run(courtA)
	assert.Equal(t, model.RunSuccess, first.Status)
	assert.Equal(t, 1, first.TournamentsCreated)
	assert.Equal(t, 2, first.PlayersCreated)
	assert.Equal(t, 2, first.EntriesCreated)
	assert.Zero(t, first.PendingCreated)

	second := h.run(courtA)
	assert.Equal(t, model.RunSuccess, second.Status)
	assert.Zero(t, second.TournamentsCreated)
	assert.Equal(t, 1, second.TournamentsUpserted)
	assert.Zero(t, second.PlayersCreated)
	assert.Zero(t, second.EntriesCreated)
	assert.Equal(t, 2, second.EntriesConfirmed)
	assert.Zero(t, second.PendingCreated)
	assert.Zero(t, second.TournamentsArchived())

	assert.Equal(t, int64(1), h.count(&model.Tournament{}))
	assert.Equal(t, int64(2), h.count(&model.Player{}))
	assert.Equal(t, int64(2), h.count(&model.Entry{}))

	tr := h.tournament("Court A", "2025-06-12T18:00")
	assert.True(t, tr.Active)
	assert.Nil(t, tr.ArchivedAt)
	assert.Equal(t, int64(1500), tr.PriceRub)
	assert.Equal(t, "lunda", tr.Source)
	assert.True(t, tr.LastSeenAt.After(tr.FirstSeenAt))
}

func TestRunRecordsLedger(t *testing.T) {
	h := newHarness(t, nil)
	mtime := time.Date(2025, 6, 10, 9, 30, 0, 0, h.loc)
	h.src.mtime = &mtime

	sum := h.run(courtA, courtB)
	require.NotZero(t, sum.RunID)

	run, err := h.svc.Store().SyncRuns.GetByID(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, run.Status)
	assert.Equal(t, "memory://tournaments.json", run.SnapshotPath)
	require.NotNil(t, run.SnapshotMTime)
	assert.True(t, run.SnapshotMTime.Equal(mtime))
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, 2, run.TournamentsCreated)
	assert.Equal(t, 3, run.PlayersCreated)
	assert.Equal(t, 3, run.EntriesCreated)
	assert.Nil(t, run.ErrorSummary)

	var stats RunSummary
	require.NoError(t, json.Unmarshal(run.Stats, &stats))
	assert.Equal(t, sum.RunUUID, stats.RunUUID)
	assert.Equal(t, 2, stats.TournamentsUpserted)
}

func TestNormalizedMatchNeverPending(t *testing.T) {
	h := newHarness(t, nil)
	h.run(courtA)

	sum := h.run(tourFixture{Location: "Court A", Start: "2025-06-12T18:00", Players: []string{"ivan  PETROV", "Anna Smirnova"}})
	assert.Zero(t, sum.PendingCreated)
	assert.Zero(t, sum.PlayersCreated)
	assert.Equal(t, 2, sum.EntriesConfirmed)
	assert.Equal(t, int64(2), h.count(&model.Player{}))
}

func TestFuzzyNameGoesPending(t *testing.T) {
	h := newHarness(t, nil)
	h.run(courtA)
	ivan := h.player("Ivan Petrov")

	b := tourFixture{Location: "Court B", Start: "2025-06-13T19:00", Players: []string{"Ivan Petroov"}}
	sum := h.run(courtA, b)
	assert.Equal(t, 1, sum.PendingCreated)
	assert.Zero(t, sum.PlayersCreated)
	assert.Equal(t, int64(2), h.count(&model.Player{}), "疑似重名不能直接建选手")

	tb := h.tournament("Court B", "2025-06-13T19:00")
	assert.Empty(t, h.entries(tb.ID))

	open := h.pendingOf(tb.ID, model.PendingOpen)
	require.Len(t, open, 1)
	p := open[0]
	assert.Equal(t, "Ivan Petroov", p.RawName)
	assert.Equal(t, "ivan petroov", p.NormalizedName)
	assert.Equal(t, sum.RunID, p.SyncRunID)

	candidates, err := p.CandidateList()
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.Equal(t, ivan.ID, candidates[0].PlayerID)
	assert.Equal(t, 1, candidates[0].Distance)
	assert.Equal(t, model.ReasonFuzzy, candidates[0].Reason)
}

func TestTranslitCandidate(t *testing.T) {
	h := newHarness(t, nil)
	h.run(courtA)
	ivan := h.player("Ivan Petrov")

	b := tourFixture{Location: "Court B", Start: "2025-06-13T19:00", Players: []string{"Иван Петров"}}
	sum := h.run(courtA, b)
	assert.Equal(t, 1, sum.PendingCreated)

	open := h.pendingOf(h.tournament("Court B", "2025-06-13T19:00").ID, model.PendingOpen)
	require.Len(t, open, 1)
	candidates, err := open[0].CandidateList()
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, ivan.ID, candidates[0].PlayerID)
	assert.Equal(t, model.ReasonTranslit, candidates[0].Reason)
}

func TestPendingExpiresOnNextRun(t *testing.T) {
	h := newHarness(t, nil)
	h.run(courtA)
	b := tourFixture{Location: "Court B", Start: "2025-06-13T19:00", Players: []string{"Ivan Petroov"}}
	first := h.run(courtA, b)
	tb := h.tournament("Court B", "2025-06-13T19:00")
	old := h.pendingOf(tb.ID, model.PendingOpen)
	require.Len(t, old, 1)

	second := h.run(courtA, b)
	assert.Equal(t, 1, second.PendingExpired)
	assert.Equal(t, 1, second.PendingCreated)

	expired := h.pendingOf(tb.ID, model.PendingExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, old[0].ID, expired[0].ID)
	assert.Equal(t, first.RunID, expired[0].SyncRunID)

	open := h.pendingOf(tb.ID, model.PendingOpen)
	require.Len(t, open, 1)
	assert.Equal(t, second.RunID, open[0].SyncRunID)
	assert.NotEqual(t, old[0].ID, open[0].ID)
}

func TestAbsentTournamentArchivedAndRevived(t *testing.T) {
	h := newHarness(t, nil)
	h.run(courtA, courtB)
	tb := h.tournament("Court B", "2025-06-13T19:00")

	sum := h.run(courtA)
	assert.Equal(t, []uint64{tb.ID}, sum.AbsentArchived)
	assert.Equal(t, 1, sum.EntriesDeactivated)

	tb = h.tournament("Court B", "2025-06-13T19:00")
	assert.NotNil(t, tb.ArchivedAt)
	assert.False(t, tb.Active)
	entries := h.entries(tb.ID)
	require.Len(t, entries, 1, "缺席归档只停用，不删除")
	assert.False(t, entries[0].Active)

	revived := h.run(courtA, courtB)
	assert.Empty(t, revived.AbsentArchived)
	tb = h.tournament("Court B", "2025-06-13T19:00")
	assert.Nil(t, tb.ArchivedAt)
	assert.True(t, tb.Active)
	entries = h.entries(tb.ID)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Active)
}

func TestRemovedParticipants(t *testing.T) {
	h := newHarness(t, nil)
	full := tourFixture{Location: "Court A", Start: "2025-06-12T18:00", Players: []string{"Ivan Petrov", "Anna Smirnova", "Oleg Sidorov"}}
	h.run(full)
	ta := h.tournament("Court A", "2025-06-12T18:00")
	anna := h.player("Anna Smirnova")
	require.NoError(t, h.db.Model(&model.Entry{}).
		Where("tournament_id = ? AND player_id = ?", ta.ID, anna.ID).
		Update("payment_status", model.PaymentPaid).Error)

	sum := h.run(tourFixture{Location: "Court A", Start: "2025-06-12T18:00", Players: []string{"Ivan Petrov"}})
	assert.Equal(t, 1, sum.EntriesDeleted)
	assert.Equal(t, 1, sum.EntriesDeactivated)

	entries := h.entries(ta.ID)
	require.Len(t, entries, 2)
	byPlayer := map[uint64]*model.Entry{}
	for _, e := range entries {
		byPlayer[e.PlayerID] = e
	}
	require.Contains(t, byPlayer, anna.ID, "已支付的报名不能删除")
	assert.False(t, byPlayer[anna.ID].Active)
	assert.Equal(t, model.PaymentPaid, byPlayer[anna.ID].PaymentStatus)
	assert.True(t, byPlayer[h.player("Ivan Petrov").ID].Active)

	// 选手重新出现时报名恢复，支付状态保留
	h.run(full)
	for _, e := range h.entries(ta.ID) {
		assert.True(t, e.Active)
		if e.PlayerID == anna.ID {
			assert.Equal(t, model.PaymentPaid, e.PaymentStatus)
		}
	}
}

func TestAgedTournamentArchived(t *testing.T) {
	h := newHarness(t, nil)
	soon := tourFixture{Location: "Court C", Start: "2025-06-08T18:00", Players: []string{"Ivan Petrov"}}

	first := h.run(soon)
	assert.Empty(t, first.AgedArchived)

	h.clock.Advance(9 * time.Hour)
	second := h.run(soon)
	tc := h.tournament("Court C", "2025-06-08T18:00")
	assert.Equal(t, []uint64{tc.ID}, second.AgedArchived)
	assert.NotNil(t, tc.ArchivedAt)
}

func TestInvalidRecordMakesRunPartial(t *testing.T) {
	h := newHarness(t, nil)
	h.src.data = snapshotOf(t, courtA, tourFixture{Location: "Court X", Players: []string{"Nobody"}})
	h.clock.Advance(time.Hour)

	sum, err := h.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunPartial, sum.Status)
	assert.Equal(t, 2, sum.TournamentsSeen)
	assert.Equal(t, 1, sum.TournamentsUpserted)
	assert.Equal(t, 1, sum.TournamentsFailed)
	require.Len(t, sum.Errors, 1)

	run, err := h.svc.Store().SyncRuns.GetByID(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunPartial, run.Status)
	require.NotNil(t, run.ErrorSummary)
	assert.Contains(t, *run.ErrorSummary, "start_datetime")
}

func TestFetchFailureMarksRunFailed(t *testing.T) {
	h := newHarness(t, nil)
	h.src.err = errors.New("快照不可读")

	sum, err := h.svc.Run(context.Background())
	require.Error(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, model.RunFailed, sum.Status)

	run, err := h.svc.Store().SyncRuns.GetByID(context.Background(), sum.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, run.Status)
	require.NotNil(t, run.ErrorSummary)
	assert.Contains(t, *run.ErrorSummary, "快照不可读")
}

func TestEmptySnapshotDoesNotArchive(t *testing.T) {
	h := newHarness(t, nil)
	h.run(courtA)

	h.clock.Advance(time.Hour)
	h.src.data = []byte(`{"tournaments": {}}`)
	sum, err := h.svc.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.RunFailed, sum.Status)

	tr := h.tournament("Court A", "2025-06-12T18:00")
	assert.Nil(t, tr.ArchivedAt)
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	h := newHarness(t, nil)
	h.src.data = snapshotOf(t, courtA)

	h.svc.mu.Lock()
	_, err := h.svc.Run(context.Background())
	h.svc.mu.Unlock()
	assert.ErrorIs(t, err, ErrRunInProgress)

	_, err = h.svc.Run(context.Background())
	assert.NoError(t, err)
}

func TestRunPublishesEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	var got []interfaces.EventType
	notifier.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev interfaces.Event) error {
			got = append(got, ev.Type)
			return nil
		}).AnyTimes()

	h := newHarness(t, notifier)
	h.run(courtA)
	assert.Equal(t, []interfaces.EventType{
		interfaces.EventPlayerCreated,
		interfaces.EventPlayerCreated,
		interfaces.EventRunFinished,
	}, got)

	got = nil
	h.run(courtA, tourFixture{Location: "Court B", Start: "2025-06-13T19:00", Players: []string{"Ivan Petroov"}})
	assert.Equal(t, []interfaces.EventType{
		interfaces.EventPendingCreated,
		interfaces.EventRunFinished,
	}, got)
}

func TestRunRollsBackFailedTournament(t *testing.T) {
	h := newHarness(t, nil)
	h.run(courtA, courtB)
	tb := h.tournament("Court B", "2025-06-13T19:00")

	// 别名表缺失时每个参赛者的解析都会失败，两场赛事各自回滚
	require.NoError(t, h.db.Exec("DROP TABLE player_aliases").Error)

	h.clock.Advance(time.Hour)
	h.src.data = snapshotOf(t, courtA, courtB)
	sum, err := h.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunPartial, sum.Status)
	assert.Equal(t, 2, sum.TournamentsFailed)
	assert.Empty(t, sum.AbsentArchived, "失败的赛事仍在快照中，不能归档")

	after := h.tournament("Court B", "2025-06-13T19:00")
	assert.Nil(t, after.ArchivedAt)
	assert.True(t, after.LastSeenAt.Equal(tb.LastSeenAt), "回滚后 last_seen_at 不变")
}

// 账本建不成时 sync_run_id 为 0，遗留的待确认记录仍在下一批次过期
func TestPendingExpiresWithoutLedger(t *testing.T) {
	h := newHarness(t, nil)
	h.run(courtA)
	require.NoError(t, h.db.Exec("DROP TABLE sync_runs").Error)

	sum := h.run(courtA, courtBFuzzy)
	assert.Zero(t, sum.RunID)
	assert.Equal(t, 1, sum.PendingCreated)
	tb := h.tournament("Court B", "2025-06-13T19:00")
	open := h.pendingOf(tb.ID, model.PendingOpen)
	require.Len(t, open, 1)
	assert.Zero(t, open[0].SyncRunID)

	sum = h.run(courtA)
	assert.Zero(t, sum.RunID)
	assert.Equal(t, 1, sum.PendingExpired)
	assert.Empty(t, h.pendingOf(tb.ID, model.PendingOpen))
	assert.Len(t, h.pendingOf(tb.ID, model.PendingExpired), 1)
}
