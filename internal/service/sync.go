package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"LundaSync/internal/database"
	"LundaSync/internal/interfaces"
	"LundaSync/internal/metrics"
	"LundaSync/internal/model"
	"LundaSync/internal/repository"
	"LundaSync/internal/snapshot"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SyncService 一次同步批次的编排：读取快照、逐场对账、清扫、记账本。
// 同一时刻只允许一个批次写库：进程内互斥 + postgres advisory lock
type SyncService struct {
	cfg      EngineConfig
	db       *gorm.DB
	store    *repository.Store
	source   interfaces.SnapshotSource
	notifier interfaces.Notifier
	metrics  *metrics.Metrics
	logger   *logrus.Logger

	resolver    *Resolver
	tournaments *TournamentUpserter
	entries     *EntryUpserter
	sweeper     *Sweeper
	pending     *PendingService

	mu sync.Mutex
}

func NewSyncService(cfg EngineConfig, db *gorm.DB, source interfaces.SnapshotSource, notifier interfaces.Notifier,
	m *metrics.Metrics, logger *logrus.Logger) *SyncService {
	cfg = cfg.withDefaults()
	store := repository.NewStore(db, cfg.FuzzyBackend)
	return &SyncService{
		cfg:         cfg,
		db:          db,
		store:       store,
		source:      source,
		notifier:    notifier,
		metrics:     m,
		logger:      logger,
		resolver:    NewResolver(cfg, logger),
		tournaments: NewTournamentUpserter(cfg),
		entries:     NewEntryUpserter(cfg, logger),
		sweeper:     NewSweeper(cfg, store, logger),
		pending:     NewPendingService(cfg, store, notifier, m, logger),
	}
}

// Pending 共用同一个 store 与通知渠道的人工处理服务
func (s *SyncService) Pending() *PendingService { return s.pending }

// Store 只读查询（名单、账本）用
func (s *SyncService) Store() *repository.Store { return s.store }

// Run 执行一个完整批次。单场赛事的失败只回滚该场并计入 partial；
// 数据库重连失败时中止剩余赛事并跳过清扫，状态 failed。账本无论如何都会尝试收尾
func (s *SyncService) Run(ctx context.Context) (*RunSummary, error) {
	if !s.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	lock, ok, err := database.TryRunLock(ctx, s.db, s.cfg.LockKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			s.logger.WithError(err).Warn("释放运行锁失败")
		}
	}()

	runStart := s.cfg.now()
	sum := &RunSummary{
		RunUUID:   uuid.NewString(),
		Snapshot:  s.source.Location(),
		Status:    model.RunRunning,
		StartedAt: runStart,
	}
	log := s.logger.WithFields(logrus.Fields{"run_uuid": sum.RunUUID, "snapshot": sum.Snapshot})
	log.Info("同步批次开始")

	snap, fetchErr := s.source.Fetch(ctx)
	if fetchErr == nil {
		sum.SnapshotMTime = snap.ModTime
	}
	run := s.openLedger(ctx, sum)
	if fetchErr != nil {
		err := fmt.Errorf("读取快照失败: %w", fetchErr)
		return s.finish(ctx, run, sum, err), err
	}

	doc, err := snapshot.Parse(snap.Data)
	if err != nil {
		err = fmt.Errorf("解析快照失败: %w", err)
		return s.finish(ctx, run, sum, err), err
	}

	if err := database.EnsureAlive(ctx, s.db, s.cfg.ReconnectAttempts, s.logger); err != nil {
		err = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		return s.finish(ctx, run, sum, err), err
	}
	// 上一批次遗留的 pending 先过期，本批次再按需重新生成
	expired, err := s.pending.ExpireStale(ctx, sum.RunID, runStart)
	if err != nil {
		sum.addError(err)
	}
	sum.PendingExpired = int(expired)

	var (
		touched []uint64
		abort   error
	)
	for _, rec := range doc.Records {
		if err := ctx.Err(); err != nil {
			abort = fmt.Errorf("批次被取消: %w", err)
			break
		}
		if err := database.EnsureAlive(ctx, s.db, s.cfg.ReconnectAttempts, s.logger); err != nil {
			abort = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			break
		}
		sum.TournamentsSeen++

		t, err := snapshot.ParseRecord(rec, doc.LastUpdated, s.cfg.Location)
		if err != nil {
			sum.TournamentsFailed++
			sum.addError(err)
			s.metrics.TournamentProcessed("invalid")
			log.WithError(err).WithField("key", rec.Key).Warn("赛事记录无效，跳过")
			continue
		}

		tally, err := s.processTournament(ctx, t, sum.RunID)
		if err != nil {
			sum.TournamentsFailed++
			sum.addError(fmt.Errorf("%s: %w", t.NaturalKey(), err))
			s.metrics.TournamentProcessed("failed")
			log.WithError(err).WithField("tournament", t.NaturalKey()).Error("赛事对账失败，已回滚")
			// 失败的赛事仍在快照中，不能被缺席清扫归档
			if id := s.existingTournamentID(ctx, t); id != 0 {
				touched = append(touched, id)
			}
			continue
		}

		touched = append(touched, tally.tournamentID)
		sum.merge(tally)
		if tally.created {
			s.metrics.TournamentProcessed("created")
		} else {
			s.metrics.TournamentProcessed("updated")
		}
		s.metrics.PlayersCreated(tally.playersCreated)
		s.metrics.PendingCreated(tally.pendingCreated)
		for _, ev := range tally.events {
			s.publish(ctx, ev)
		}
	}

	if abort != nil {
		log.WithError(abort).Error("批次中止，跳过清扫")
		return s.finish(ctx, run, sum, abort), abort
	}

	s.sweep(ctx, runStart, touched, sum)
	return s.finish(ctx, run, sum, nil), nil
}

// processTournament 单场赛事一个事务：赛事 upsert、逐个解析参赛者、报名 upsert、名单外报名处理
func (s *SyncService) processTournament(ctx context.Context, rec *snapshot.Tournament, runID uint64) (*tournamentTally, error) {
	var tally *tournamentTally
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		tally = &tournamentTally{}
		t, created, err := s.tournaments.Upsert(ctx, tx, rec)
		if err != nil {
			return err
		}
		tally.tournamentID, tally.created = t.ID, created

		keep := make(map[uint64]struct{}, len(rec.Participants))
		for _, raw := range rec.Participants {
			res, err := s.resolver.Resolve(ctx, tx, raw, t.ID, runID)
			if errors.Is(err, ErrEmptyName) {
				continue
			}
			if err != nil {
				return fmt.Errorf("解析参赛者 %q 失败: %w", raw, err)
			}

			switch res.Status {
			case StatusPendingCreated:
				if res.Refreshed {
					tally.pendingRefreshed++
				} else {
					tally.pendingCreated++
					tally.events = append(tally.events, pendingEvent(res.Pending, res.Candidates, s.cfg.now()))
				}
				continue
			case StatusNewPlayerCreated:
				tally.playersCreated++
				tally.events = append(tally.events, interfaces.Event{
					Type: interfaces.EventPlayerCreated, OccurredAt: s.cfg.now(), SyncRunID: runID,
					TournamentID: t.ID, PlayerID: res.PlayerID,
					Payload: map[string]interface{}{"full_name": raw},
				})
			}

			keep[res.PlayerID] = struct{}{}
			_, isNew, err := s.entries.Upsert(ctx, tx, t.ID, res.PlayerID)
			if err != nil {
				return err
			}
			if isNew {
				tally.entriesCreated++
			} else {
				tally.entriesConfirmed++
			}
		}

		rr, err := s.entries.Reconcile(ctx, tx, t.ID, keep)
		if err != nil {
			return err
		}
		tally.entriesDeleted = len(rr.Deleted)
		tally.entriesDeactivated = len(rr.Deactivated)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tally, nil
}

func (s *SyncService) existingTournamentID(ctx context.Context, rec *snapshot.Tournament) uint64 {
	t, err := s.store.Tournaments.FindByNaturalKey(ctx, rec.Location, rec.StartsAt.In(s.cfg.Location))
	if err != nil || t == nil {
		return 0
	}
	return t.ID
}

// sweep 两步清扫。没有任何赛事成功对账时只做按时间归档，避免整库被当成缺席
func (s *SyncService) sweep(ctx context.Context, runStart time.Time, touched []uint64, sum *RunSummary) {
	if len(touched) == 0 {
		s.logger.WithField("run_uuid", sum.RunUUID).Warn("本批次没有可确认的赛事，跳过缺席清扫")
		aged, err := s.sweeper.ArchiveAged(ctx)
		sum.addError(err)
		sum.AgedArchived = aged
	} else {
		res, err := s.sweeper.Run(ctx, runStart, touched)
		sum.addError(err)
		sum.AgedArchived = res.AgedArchived
		sum.AbsentArchived = res.AbsentArchived
		sum.EntriesDeactivated += int(res.EntriesDeactivated)
	}
	s.metrics.Archived("aged", len(sum.AgedArchived))
	s.metrics.Archived("absent", len(sum.AbsentArchived))
}

// openLedger 尽力创建账本行；失败时 RunID 为 0，批次照常进行，结束时只记日志
func (s *SyncService) openLedger(ctx context.Context, sum *RunSummary) *model.SyncRun {
	run := &model.SyncRun{
		RunUUID:       sum.RunUUID,
		SnapshotPath:  sum.Snapshot,
		SnapshotMTime: sum.SnapshotMTime,
		Status:        model.RunRunning,
		StartedAt:     sum.StartedAt,
	}
	if err := s.store.SyncRuns.Create(ctx, run); err != nil {
		s.logger.WithError(err).WithField("run_uuid", sum.RunUUID).Warn("创建批次账本失败，继续执行")
		return nil
	}
	sum.RunID = run.ID
	return run
}

// finish 定状态、收尾账本、上报指标并发出 run.finished
func (s *SyncService) finish(ctx context.Context, run *model.SyncRun, sum *RunSummary, fatal error) *RunSummary {
	sum.addError(fatal)
	switch {
	case fatal != nil:
		sum.Status = model.RunFailed
	case len(sum.Errors) > 0:
		sum.Status = model.RunPartial
	default:
		sum.Status = model.RunSuccess
	}
	sum.FinishedAt = s.cfg.now()
	sum.DurationMS = sum.FinishedAt.Sub(sum.StartedAt).Milliseconds()

	log := s.logger.WithFields(sum.Fields())
	if run != nil {
		sum.apply(run)
		// 调用方的 ctx 可能已被取消，账本收尾用独立的 ctx
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := s.store.SyncRuns.Save(saveCtx, run); err != nil {
			log.WithError(err).Error("更新批次账本失败")
		}
		cancel()
	}

	s.metrics.ObserveRun(string(sum.Status), sum.FinishedAt.Sub(sum.StartedAt))
	s.publish(ctx, interfaces.Event{
		Type: interfaces.EventRunFinished, OccurredAt: sum.FinishedAt, SyncRunID: sum.RunID,
		Payload: map[string]interface{}{"summary": sum},
	})

	switch sum.Status {
	case model.RunSuccess:
		log.Info("同步批次完成")
	case model.RunPartial:
		log.WithField("errors", sum.Errors).Warn("同步批次部分失败")
	default:
		log.WithError(fatal).Error("同步批次失败")
	}
	return sum
}

func (s *SyncService) publish(ctx context.Context, ev interfaces.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.metrics.EventDropped()
		s.logger.WithError(err).WithField("event_type", ev.Type).Warn("事件发布失败")
	}
}
