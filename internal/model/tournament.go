package model

import (
	"time"
)

// TournamentCategory 赛事类别
type TournamentCategory string

const (
	CategoryPersonal TournamentCategory = "personal"
	CategoryTeam     TournamentCategory = "team"
)

// Tournament 赛事表。自然键 (location, starts_at) 在非重复行中唯一
type Tournament struct {
	ID                uint64             `gorm:"column:id;primaryKey;autoIncrement"`
	Title             string             `gorm:"column:title;type:varchar(256);not null"`
	Location          string             `gorm:"column:location;type:varchar(256);not null;uniqueIndex:uq_tournament_natural_key,where:is_duplicate = false"`
	StartsAt          time.Time          `gorm:"column:starts_at;not null;uniqueIndex:uq_tournament_natural_key,where:is_duplicate = false;index"`
	EndsAt            *time.Time         `gorm:"column:ends_at"`
	Organizer         string             `gorm:"column:organizer;type:varchar(256)"`
	PriceRub          int64              `gorm:"column:price_rub;not null"`
	Category          TournamentCategory `gorm:"column:category;type:varchar(16);not null"`
	Slug              string             `gorm:"column:slug;type:varchar(300);index"` // 给展示层用
	Source            string             `gorm:"column:source;type:varchar(32);not null"`
	SourceLastUpdated *string            `gorm:"column:source_last_updated;type:varchar(64)"` // 快照里的 last_updated 原文
	IsDuplicate       bool               `gorm:"column:is_duplicate;not null"`
	Active            bool               `gorm:"column:active;not null"`
	FirstSeenAt       time.Time          `gorm:"column:first_seen_at;not null"`
	LastSeenAt        time.Time          `gorm:"column:last_seen_at;not null;index"`
	ArchivedAt        *time.Time         `gorm:"column:archived_at;index"` // null = 仍在最新快照中
	CreatedAt         time.Time          `gorm:"column:created_at"`
	UpdatedAt         time.Time          `gorm:"column:updated_at"`
}

func (Tournament) TableName() string { return "tournaments" }

// IsArchived 是否已归档
func (t *Tournament) IsArchived() bool { return t.ArchivedAt != nil }
