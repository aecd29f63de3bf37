package model

import "time"

// Player 选手身份。normalized_name 唯一，display name 只允许管理员修改
type Player struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	FullName       string    `gorm:"column:full_name;type:varchar(256);uniqueIndex;not null"`
	NormalizedName string    `gorm:"column:normalized_name;type:varchar(256);uniqueIndex;not null"`
	LatinName      string    `gorm:"column:latin_name;type:varchar(256);index"` // 转写键，用于跨文字候选
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (Player) TableName() string { return "players" }

// PlayerAlias 人工确认过的 规范化名 -> 选手 映射
type PlayerAlias struct {
	ID             uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	NormalizedName string    `gorm:"column:normalized_name;type:varchar(256);uniqueIndex;not null"`
	PlayerID       uint64    `gorm:"column:player_id;not null;index"`
	ConfirmedBy    string    `gorm:"column:confirmed_by;type:varchar(128)"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (PlayerAlias) TableName() string { return "player_aliases" }
