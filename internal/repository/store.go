package repository

import (
	"context"

	"LundaSync/internal/interfaces"

	"gorm.io/gorm"
)

// Store 一组共享同一个 *gorm.DB（或事务）的仓储
type Store struct {
	db          *gorm.DB
	backend     FuzzyBackend
	Tournaments TournamentRepository
	Players     PlayerRepository
	Aliases     AliasRepository
	Entries     EntryRepository
	Pending     PendingRepository
	SyncRuns    SyncRunRepository
	Candidates  interfaces.CandidateSearcher
}

func NewStore(db *gorm.DB, backend FuzzyBackend) *Store {
	backend = ResolveFuzzyBackend(db, backend)
	s := &Store{
		db:          db,
		backend:     backend,
		Tournaments: NewTournamentRepository(db),
		Players:     NewPlayerRepository(db),
		Aliases:     NewAliasRepository(db),
		Entries:     NewEntryRepository(db),
		Pending:     NewPendingRepository(db),
		SyncRuns:    NewSyncRunRepository(db),
	}
	if backend == FuzzySQL {
		s.Candidates = NewSQLCandidateSearcher(db)
	} else {
		s.Candidates = NewMemoryCandidateSearcher(db)
	}
	return s
}

// DB 底层连接，只给需要原生能力（锁、ping）的调用方
func (s *Store) DB() *gorm.DB { return s.db }

// Transaction 在一个事务里执行 fn，fn 返回错误时整体回滚
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx, s.backend))
	})
}
