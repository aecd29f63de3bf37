package api

import (
	"net/http"
	"strconv"

	"LundaSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type SyncHandler struct {
	syncService *service.SyncService
	logger      *logrus.Logger
}

func NewSyncHandler(syncService *service.SyncService, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		logger:      logger,
	}
}

// RunSync 立即执行一次同步批次
// @Summary 手动触发同步
// @Success 200 {object} service.RunSummary
// @Failure 409 {object} map[string]string
// @Router /sync/run [post]
func (h *SyncHandler) RunSync(c *gin.Context) {
	sum, err := h.syncService.Run(c.Request.Context())
	if err != nil {
		if sum == nil {
			writeError(c, h.logger, "RunSync", err)
			return
		}
		h.logger.WithError(err).WithField("run_uuid", sum.RunUUID).Error("同步失败")
		c.JSON(statusOf(err), gin.H{"error": err.Error(), "summary": sum})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// ListRuns 最近的同步批次 GET /api/sync/runs?limit=20
func (h *SyncHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.syncService.Store().SyncRuns.ListRecent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.logger, "ListRuns", err)
		return
	}
	items := make([]gin.H, 0, len(runs))
	for _, r := range runs {
		items = append(items, gin.H{
			"id":                   r.ID,
			"run_uuid":             r.RunUUID,
			"snapshot":             r.SnapshotPath,
			"status":               r.Status,
			"started_at":           r.StartedAt,
			"finished_at":          r.FinishedAt,
			"tournaments_upserted": r.TournamentsUpserted,
			"tournaments_failed":   r.TournamentsFailed,
			"tournaments_archived": r.TournamentsArchived,
			"pending_created":      r.PendingCreated,
			"error_summary":        r.ErrorSummary,
		})
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
