package handler

import (
	"net/http"
	"strconv"

	"libtrack/internal/http-api/middleware"
	"libtrack/internal/http-api/service"

	"github.com/gin-gonic/gin"
)

type StatsHandler struct {
	svc service.StatsService
}

func NewStatsHandler(svc service.StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

func (h *StatsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.StudentSummary)
	rg.GET("/admin", middleware.RequireAdmin(), h.AdminSummary)
	rg.GET("/admin/monthly", middleware.RequireAdmin(), h.MonthlyActivity)
}

func (h *StatsHandler) StudentSummary(c *gin.Context) {
	summary, err := h.svc.StudentSummary(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *StatsHandler) AdminSummary(c *gin.Context) {
	summary, err := h.svc.AdminSummary(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *StatsHandler) MonthlyActivity(c *gin.Context) {
	months := 6
	if m := c.Query("months"); m != "" {
		if parsed, err := strconv.Atoi(m); err == nil && parsed > 0 && parsed <= 24 {
			months = parsed
		}
	}

	activity, err := h.svc.MonthlyActivity(c.Request.Context(), middleware.Actor(c), months)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"months": activity})
}
