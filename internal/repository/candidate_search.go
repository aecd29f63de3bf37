package repository

import (
	"context"
	"sort"

	"LundaSync/internal/interfaces"
	"LundaSync/internal/model"
	"LundaSync/internal/utils/names"

	"gorm.io/gorm"
)

// FuzzyBackend 模糊检索实现
type FuzzyBackend string

const (
	FuzzyAuto   FuzzyBackend = "auto"
	FuzzySQL    FuzzyBackend = "sql"    // postgres fuzzystrmatch 扩展的 levenshtein()
	FuzzyMemory FuzzyBackend = "memory" // 进程内计算，任何方言可用
)

// ResolveFuzzyBackend auto 时按方言选择
func ResolveFuzzyBackend(db *gorm.DB, backend FuzzyBackend) FuzzyBackend {
	if backend == FuzzySQL || backend == FuzzyMemory {
		return backend
	}
	if db.Dialector.Name() == "postgres" {
		return FuzzySQL
	}
	return FuzzyMemory
}

// SQLCandidateSearcher 在数据库里按 levenshtein 排序取候选池。
// 扩展未安装时 postgres 返回 42883 undefined_function，调用方据此降级
type SQLCandidateSearcher struct {
	db *gorm.DB
}

func NewSQLCandidateSearcher(db *gorm.DB) *SQLCandidateSearcher {
	return &SQLCandidateSearcher{db: db}
}

type distanceRow struct {
	model.Player
	Distance int `gorm:"column:distance"`
}

func (s *SQLCandidateSearcher) Nearest(ctx context.Context, normalized string, limit int) ([]interfaces.CandidateMatch, error) {
	var rows []distanceRow
	// 在事务内调用时 gorm 用 SAVEPOINT 包裹，函数不存在导致的失败不会把外层事务置为 aborted
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// fuzzystrmatch 的 levenshtein 参数上限 255 字节
		return tx.Model(&model.Player{}).
			Select("players.*, levenshtein(left(normalized_name, 120), left(?, 120)) AS distance", normalized).
			Order("distance ASC, id ASC").
			Limit(limit).
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([]interfaces.CandidateMatch, 0, len(rows))
	for _, r := range rows {
		out = append(out, interfaces.CandidateMatch{Player: r.Player, Distance: r.Distance})
	}
	return out, nil
}

// MemoryCandidateSearcher 读出全部选手在进程内计算距离，选手量在数千级以内足够快
type MemoryCandidateSearcher struct {
	players PlayerRepository
}

func NewMemoryCandidateSearcher(db *gorm.DB) *MemoryCandidateSearcher {
	return &MemoryCandidateSearcher{players: NewPlayerRepository(db)}
}

func (s *MemoryCandidateSearcher) Nearest(ctx context.Context, normalized string, limit int) ([]interfaces.CandidateMatch, error) {
	all, err := s.players.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]interfaces.CandidateMatch, 0, len(all))
	for _, p := range all {
		out = append(out, interfaces.CandidateMatch{Player: *p, Distance: names.Distance(normalized, p.NormalizedName)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ interfaces.CandidateSearcher = (*SQLCandidateSearcher)(nil)
	_ interfaces.CandidateSearcher = (*MemoryCandidateSearcher)(nil)
)
