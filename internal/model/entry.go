package model

import "time"

// PaymentStatus 报名支付状态
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Entry 选手参赛记录，(tournament_id, player_id) 唯一。
// 已支付或 manual_paid 的记录永远不会被同步删除，最多置为 inactive
type Entry struct {
	ID              uint64        `gorm:"column:id;primaryKey;autoIncrement"`
	TournamentID    uint64        `gorm:"column:tournament_id;not null;uniqueIndex:uq_entry_tournament_player"`
	PlayerID        uint64        `gorm:"column:player_id;not null;uniqueIndex:uq_entry_tournament_player;index"`
	PaymentStatus   PaymentStatus `gorm:"column:payment_status;type:varchar(16);not null"`
	ManualPaid      bool          `gorm:"column:manual_paid;not null"`  // 线下收款，由管理员标记
	ManualAdded     bool          `gorm:"column:manual_added;not null"` // 管理员手动添加，不来自快照
	Active          bool          `gorm:"column:active;not null"`
	PaymentID       *string       `gorm:"column:payment_id;type:varchar(64);index"` // 支付网关写入
	ConfirmationURL *string       `gorm:"column:confirmation_url;type:text"`
	PaidAt          *time.Time    `gorm:"column:paid_at"`
	FirstSeenAt     time.Time     `gorm:"column:first_seen_at;not null"`
	LastSeenAt      time.Time     `gorm:"column:last_seen_at;not null"`
	CreatedAt       time.Time     `gorm:"column:created_at"`
	UpdatedAt       time.Time     `gorm:"column:updated_at"`
}

func (Entry) TableName() string { return "entries" }

// Protected 同步不可删除的记录
func (e *Entry) Protected() bool {
	return e.PaymentStatus == PaymentPaid || e.ManualPaid || e.ManualAdded
}
