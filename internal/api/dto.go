package api

import (
	"time"

	"LundaSync/internal/model"
	"LundaSync/internal/repository"
	"LundaSync/internal/service"
)

// PendingView 待确认记录对外结构
type PendingView struct {
	ID               uint64              `json:"id"`
	SyncRunID        uint64              `json:"sync_run_id"`
	TournamentID     uint64              `json:"tournament_id"`
	RawName          string              `json:"raw_name"`
	NormalizedName   string              `json:"normalized_name"`
	Status           model.PendingStatus `json:"status"`
	Candidates       []model.Candidate   `json:"candidates"`
	ResolvedPlayerID *uint64             `json:"resolved_player_id,omitempty"`
	EntryID          *uint64             `json:"entry_id,omitempty"`
	ResolvedBy       *string             `json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time          `json:"resolved_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

func newPendingView(p *model.PendingEntry) PendingView {
	candidates, err := p.CandidateList()
	if err != nil || candidates == nil {
		candidates = []model.Candidate{}
	}
	return PendingView{
		ID:               p.ID,
		SyncRunID:        p.SyncRunID,
		TournamentID:     p.TournamentID,
		RawName:          p.RawName,
		NormalizedName:   p.NormalizedName,
		Status:           p.Status,
		Candidates:       candidates,
		ResolvedPlayerID: p.ResolvedPlayerID,
		EntryID:          p.EntryID,
		ResolvedBy:       p.ResolvedBy,
		ResolvedAt:       p.ResolvedAt,
		CreatedAt:        p.CreatedAt,
	}
}

// PendingListResult 分页结果
type PendingListResult struct {
	Items    []PendingView `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// OutcomeView 人工处理结果
type OutcomeView struct {
	Pending       PendingView `json:"pending"`
	PlayerID      uint64      `json:"player_id,omitempty"`
	PlayerCreated bool        `json:"player_created"`
	EntryID       uint64      `json:"entry_id,omitempty"`
}

func newOutcomeView(out *service.PendingOutcome) OutcomeView {
	v := OutcomeView{Pending: newPendingView(out.Pending), PlayerCreated: out.PlayerCreated}
	if out.Player != nil {
		v.PlayerID = out.Player.ID
	}
	if out.Entry != nil {
		v.EntryID = out.Entry.ID
	}
	return v
}

// TournamentView 赛事对外结构
type TournamentView struct {
	ID          uint64                   `json:"id"`
	Title       string                   `json:"title"`
	Location    string                   `json:"location"`
	Organizer   string                   `json:"organizer,omitempty"`
	StartsAt    time.Time                `json:"starts_at"`
	EndsAt      *time.Time               `json:"ends_at,omitempty"`
	PriceRub    int64                    `json:"price_rub"`
	Category    model.TournamentCategory `json:"category"`
	Slug        string                   `json:"slug"`
	Active      bool                     `json:"active"`
	LastSeenAt  time.Time                `json:"last_seen_at"`
	ArchivedAt  *time.Time               `json:"archived_at,omitempty"`
	Entries     []repository.RosterRow   `json:"entries"`
	PendingView []PendingView            `json:"pending"`
}

func newTournamentView(r *service.TournamentRoster) TournamentView {
	t := r.Tournament
	v := TournamentView{
		ID:          t.ID,
		Title:       t.Title,
		Location:    t.Location,
		Organizer:   t.Organizer,
		StartsAt:    t.StartsAt,
		EndsAt:      t.EndsAt,
		PriceRub:    t.PriceRub,
		Category:    t.Category,
		Slug:        t.Slug,
		Active:      t.Active,
		LastSeenAt:  t.LastSeenAt,
		ArchivedAt:  t.ArchivedAt,
		Entries:     r.Entries,
		PendingView: make([]PendingView, 0, len(r.Pending)),
	}
	if v.Entries == nil {
		v.Entries = []repository.RosterRow{}
	}
	for _, p := range r.Pending {
		v.PendingView = append(v.PendingView, newPendingView(p))
	}
	return v
}
