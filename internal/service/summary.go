package service

import (
	"encoding/json"
	"strings"
	"time"

	"LundaSync/internal/interfaces"
	"LundaSync/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// RunSummary 一次同步批次的统计，结束时写入 sync_runs.stats 并作为 run.finished 事件的负载
type RunSummary struct {
	RunID         uint64              `json:"run_id"`
	RunUUID       string              `json:"run_uuid"`
	Snapshot      string              `json:"snapshot"`
	SnapshotMTime *time.Time          `json:"snapshot_mtime,omitempty"`
	Status        model.SyncRunStatus `json:"status"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    time.Time           `json:"finished_at"`
	DurationMS    int64               `json:"duration_ms"`

	TournamentsSeen     int `json:"tournaments_seen"`
	TournamentsUpserted int `json:"tournaments_upserted"`
	TournamentsCreated  int `json:"tournaments_created"`
	TournamentsFailed   int `json:"tournaments_failed"`
	PlayersCreated      int `json:"players_created"`
	EntriesCreated      int `json:"entries_created"`
	EntriesConfirmed    int `json:"entries_confirmed"`
	EntriesDeleted      int `json:"entries_deleted"`
	EntriesDeactivated  int `json:"entries_deactivated"`
	PendingCreated      int `json:"pending_created"`
	PendingRefreshed    int `json:"pending_refreshed"`
	PendingExpired      int `json:"pending_expired"`

	AgedArchived   []uint64 `json:"aged_archived,omitempty"`
	AbsentArchived []uint64 `json:"absent_archived,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// TournamentsArchived 两种清扫归档的总数
func (s *RunSummary) TournamentsArchived() int {
	return len(s.AgedArchived) + len(s.AbsentArchived)
}

func (s *RunSummary) addError(err error) {
	if err != nil {
		s.Errors = append(s.Errors, err.Error())
	}
}

func (s *RunSummary) merge(t *tournamentTally) {
	s.TournamentsUpserted++
	if t.created {
		s.TournamentsCreated++
	}
	s.PlayersCreated += t.playersCreated
	s.EntriesCreated += t.entriesCreated
	s.EntriesConfirmed += t.entriesConfirmed
	s.EntriesDeleted += t.entriesDeleted
	s.EntriesDeactivated += t.entriesDeactivated
	s.PendingCreated += t.pendingCreated
	s.PendingRefreshed += t.pendingRefreshed
}

// ErrorSummary 多条错误合成一行，没有错误返回 nil
func (s *RunSummary) ErrorSummary() *string {
	if len(s.Errors) == 0 {
		return nil
	}
	v := strings.Join(s.Errors, "; ")
	return &v
}

// apply 把统计写回账本行
func (s *RunSummary) apply(run *model.SyncRun) {
	finished := s.FinishedAt
	run.SnapshotMTime = s.SnapshotMTime
	run.Status = s.Status
	run.FinishedAt = &finished
	run.TournamentsUpserted = s.TournamentsUpserted
	run.TournamentsCreated = s.TournamentsCreated
	run.TournamentsArchived = s.TournamentsArchived()
	run.TournamentsFailed = s.TournamentsFailed
	run.PlayersCreated = s.PlayersCreated
	run.EntriesCreated = s.EntriesCreated
	run.EntriesConfirmed = s.EntriesConfirmed
	run.EntriesDeleted = s.EntriesDeleted
	run.EntriesDeactivated = s.EntriesDeactivated
	run.PendingCreated = s.PendingCreated
	run.PendingExpired = s.PendingExpired
	run.ErrorSummary = s.ErrorSummary()
	if raw, err := json.Marshal(s); err == nil {
		run.Stats = datatypes.JSON(raw)
	}
}

// Fields 结束日志用
func (s *RunSummary) Fields() logrus.Fields {
	return logrus.Fields{
		"sync_run_id":          s.RunID,
		"run_uuid":             s.RunUUID,
		"status":               s.Status,
		"duration_ms":          s.DurationMS,
		"tournaments_seen":     s.TournamentsSeen,
		"tournaments_upserted": s.TournamentsUpserted,
		"tournaments_created":  s.TournamentsCreated,
		"tournaments_failed":   s.TournamentsFailed,
		"tournaments_archived": s.TournamentsArchived(),
		"players_created":      s.PlayersCreated,
		"entries_created":      s.EntriesCreated,
		"entries_confirmed":    s.EntriesConfirmed,
		"entries_deleted":      s.EntriesDeleted,
		"entries_deactivated":  s.EntriesDeactivated,
		"pending_created":      s.PendingCreated,
		"pending_refreshed":    s.PendingRefreshed,
		"pending_expired":      s.PendingExpired,
	}
}

// tournamentTally 单场赛事事务内的计数，提交后才并入 RunSummary
type tournamentTally struct {
	tournamentID       uint64
	created            bool
	playersCreated     int
	entriesCreated     int
	entriesConfirmed   int
	entriesDeleted     int
	entriesDeactivated int
	pendingCreated     int
	pendingRefreshed   int
	events             []interfaces.Event
}
