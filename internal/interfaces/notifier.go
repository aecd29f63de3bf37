package interfaces

import (
	"context"
	"time"
)

// EventType 外发事件类型，同时作为消息 topic 的后缀
type EventType string

const (
	EventPendingCreated  EventType = "pending.created"  // 新的待确认姓名
	EventPendingResolved EventType = "pending.resolved" // 管理员处理了待确认记录
	EventPlayerCreated   EventType = "player.created"
	EventRunFinished     EventType = "run.finished"
)

// Event 发给通知渠道（机器人）的事件。投递尽力而为，失败不影响对账结果
type Event struct {
	Type         EventType   `json:"type"`
	OccurredAt   time.Time   `json:"occurred_at"`
	SyncRunID    uint64      `json:"sync_run_id,omitempty"`
	TournamentID uint64      `json:"tournament_id,omitempty"`
	PlayerID     uint64      `json:"player_id,omitempty"`
	PendingID    uint64      `json:"pending_id,omitempty"`
	Payload      interface{} `json:"payload,omitempty"`
}

// Notifier 外发事件出口
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}
