package model

import (
	"time"

	"gorm.io/datatypes"
)

// SyncRunStatus 同步批次状态
type SyncRunStatus string

const (
	RunRunning SyncRunStatus = "running"
	RunSuccess SyncRunStatus = "success"
	RunPartial SyncRunStatus = "partial" // 部分赛事或清扫步骤失败
	RunFailed  SyncRunStatus = "failed"  // 存储不可用，中止
)

// SyncRun 每次引擎运行一行，开始时创建，结束时（包括失败）更新
type SyncRun struct {
	ID                  uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	RunUUID             string         `gorm:"column:run_uuid;type:varchar(64);uniqueIndex;not null"`
	SnapshotPath        string         `gorm:"column:snapshot_path;type:text;not null"`
	SnapshotMTime       *time.Time     `gorm:"column:snapshot_mtime"`
	Status              SyncRunStatus  `gorm:"column:status;type:varchar(16);not null"`
	StartedAt           time.Time      `gorm:"column:started_at;not null"`
	FinishedAt          *time.Time     `gorm:"column:finished_at"`
	TournamentsUpserted int            `gorm:"column:tournaments_upserted;not null"`
	TournamentsCreated  int            `gorm:"column:tournaments_created;not null"`
	TournamentsArchived int            `gorm:"column:tournaments_archived;not null"`
	TournamentsFailed   int            `gorm:"column:tournaments_failed;not null"`
	PlayersCreated      int            `gorm:"column:players_created;not null"`
	EntriesCreated      int            `gorm:"column:entries_created;not null"`
	EntriesConfirmed    int            `gorm:"column:entries_confirmed;not null"`
	EntriesDeleted      int            `gorm:"column:entries_deleted;not null"`
	EntriesDeactivated  int            `gorm:"column:entries_deactivated;not null"`
	PendingCreated      int            `gorm:"column:pending_created;not null"`
	PendingExpired      int            `gorm:"column:pending_expired;not null"`
	ErrorSummary        *string        `gorm:"column:error_summary;type:text"`
	Stats               datatypes.JSON `gorm:"column:stats"`
}

func (SyncRun) TableName() string { return "sync_runs" }
