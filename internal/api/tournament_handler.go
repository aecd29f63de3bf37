package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"LundaSync/internal/export"
	"LundaSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TournamentHandler 赛事名单查询与导出
type TournamentHandler struct {
	rosters *service.RosterService
	loc     *time.Location
	logger  *logrus.Logger
}

func NewTournamentHandler(rosters *service.RosterService, loc *time.Location, logger *logrus.Logger) *TournamentHandler {
	return &TournamentHandler{rosters: rosters, loc: loc, logger: logger}
}

// GetRoster GET /api/tournaments/:id
func (h *TournamentHandler) GetRoster(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rosters.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "GetRoster", err)
		return
	}
	c.JSON(http.StatusOK, newTournamentView(r))
}

// ExportRoster GET /api/tournaments/:id/roster.xlsx
func (h *TournamentHandler) ExportRoster(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rosters.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "ExportRoster", err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteRoster(&buf, r.Tournament, r.Entries, h.loc); err != nil {
		writeError(c, h.logger, "ExportRoster", err)
		return
	}
	name := r.Tournament.Slug
	if name == "" {
		name = fmt.Sprintf("tournament-%d", id)
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
