package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// PendingStatus 待确认记录状态
type PendingStatus string

const (
	PendingOpen     PendingStatus = "pending"
	PendingApproved PendingStatus = "approved" // 别名已记录，但赛事已归档，未生成报名
	PendingResolved PendingStatus = "resolved"
	PendingRejected PendingStatus = "rejected"
	PendingSnoozed  PendingStatus = "snoozed"
	PendingExpired  PendingStatus = "expired"
)

// CandidateReason 候选来源
type CandidateReason string

const (
	ReasonFuzzy    CandidateReason = "fuzzy"
	ReasonTranslit CandidateReason = "translit"
)

// Candidate 一个可能的已有选手，Score 越小越好
type Candidate struct {
	PlayerID            uint64          `json:"player_id"`
	FullName            string          `json:"full_name"`
	NormalizedName      string          `json:"normalized_name"`
	Distance            int             `json:"distance"`
	FirstTokenDistance  int             `json:"first_token_distance"`
	SecondTokenDistance int             `json:"second_token_distance"`
	Score               int             `json:"score"`
	Reason              CandidateReason `json:"reason"`
}

// PendingEntry 需要人工判断的姓名。status=pending 时 (tournament_id, normalized_name) 唯一
type PendingEntry struct {
	ID               uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	SyncRunID        uint64         `gorm:"column:sync_run_id;not null;index"`
	TournamentID     uint64         `gorm:"column:tournament_id;not null;uniqueIndex:uq_pending_open,where:status = 'pending'"`
	RawName          string         `gorm:"column:raw_name;type:varchar(256);not null"`
	NormalizedName   string         `gorm:"column:normalized_name;type:varchar(256);not null;uniqueIndex:uq_pending_open,where:status = 'pending'"`
	Candidates       datatypes.JSON `gorm:"column:candidates;not null"`
	Status           PendingStatus  `gorm:"column:status;type:varchar(16);not null;index"`
	ResolvedPlayerID *uint64        `gorm:"column:resolved_player_id"`
	EntryID          *uint64        `gorm:"column:entry_id"`
	ResolvedBy       *string        `gorm:"column:resolved_by;type:varchar(128)"`
	ResolvedAt       *time.Time     `gorm:"column:resolved_at"`
	CreatedAt        time.Time      `gorm:"column:created_at"`
	UpdatedAt        time.Time      `gorm:"column:updated_at"`
}

func (PendingEntry) TableName() string { return "pending_entries" }

// CandidateList 解出候选列表
func (p *PendingEntry) CandidateList() ([]Candidate, error) {
	var list []Candidate
	if len(p.Candidates) == 0 {
		return list, nil
	}
	if err := json.Unmarshal(p.Candidates, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetCandidates 写入候选列表
func (p *PendingEntry) SetCandidates(list []Candidate) error {
	if list == nil {
		list = []Candidate{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	p.Candidates = datatypes.JSON(raw)
	return nil
}
