package api

import (
	"net/http"
	"strconv"

	"LundaSync/internal/model"
	"LundaSync/internal/repository"
	"LundaSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// PendingHandler 待确认队列的管理接口
type PendingHandler struct {
	pending *service.PendingService
	logger  *logrus.Logger
}

func NewPendingHandler(pending *service.PendingService, logger *logrus.Logger) *PendingHandler {
	return &PendingHandler{pending: pending, logger: logger}
}

// ApproveRequest POST /api/pending/:id/approve
type ApproveRequest struct {
	PlayerID uint64 `json:"player_id" binding:"required"`
}

// List 待确认列表
// GET /api/pending?status=pending&tournament_id=1&sync_run_id=2&page=1&page_size=20
func (h *PendingHandler) List(c *gin.Context) {
	filter := repository.PendingFilter{
		Status: model.PendingStatus(c.DefaultQuery("status", string(model.PendingOpen))),
	}
	if filter.Status == "all" {
		filter.Status = ""
	}
	filter.TournamentID, _ = strconv.ParseUint(c.Query("tournament_id"), 10, 64)
	filter.SyncRunID, _ = strconv.ParseUint(c.Query("sync_run_id"), 10, 64)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	list, total, err := h.pending.List(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		writeError(c, h.logger, "ListPending", err)
		return
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	result := PendingListResult{Items: make([]PendingView, 0, len(list)), Total: total, Page: page, PageSize: pageSize}
	for _, p := range list {
		result.Items = append(result.Items, newPendingView(p))
	}
	c.JSON(http.StatusOK, result)
}

// Get GET /api/pending/:id
func (h *PendingHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.pending.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "GetPending", err)
		return
	}
	c.JSON(http.StatusOK, newPendingView(p))
}

// Approve 确认为已有选手
func (h *PendingHandler) Approve(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	out, err := h.pending.Approve(c.Request.Context(), id, req.PlayerID, actorOf(c))
	h.respond(c, "ApprovePending", out, err)
}

// ApproveNew 确认为新选手 POST /api/pending/:id/approve-new
func (h *PendingHandler) ApproveNew(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := h.pending.ApproveNew(c.Request.Context(), id, actorOf(c))
	h.respond(c, "ApproveNewPending", out, err)
}

// Reject POST /api/pending/:id/reject
func (h *PendingHandler) Reject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := h.pending.Reject(c.Request.Context(), id, actorOf(c))
	h.respond(c, "RejectPending", out, err)
}

// Snooze POST /api/pending/:id/snooze
func (h *PendingHandler) Snooze(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	out, err := h.pending.Snooze(c.Request.Context(), id, actorOf(c))
	h.respond(c, "SnoozePending", out, err)
}

func (h *PendingHandler) respond(c *gin.Context, op string, out *service.PendingOutcome, err error) {
	if err != nil {
		writeError(c, h.logger, op, err)
		return
	}
	c.JSON(http.StatusOK, newOutcomeView(out))
}

// pathID 解析 :id，失败时已写回 400
func pathID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is invalid"})
		return 0, false
	}
	return id, true
}
