package transport

import (
	"net/http"
	"strconv"

	"github.com/ds124wfegd/task-reminder/internal/service"

	"github.com/gin-gonic/gin"
)

type ReminderHandler struct {
	scheduler service.ReminderScheduler
}

func NewReminderHandler(scheduler service.ReminderScheduler) *ReminderHandler {
	return &ReminderHandler{scheduler: scheduler}
}

func (h *ReminderHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.Status())
}

func (h *ReminderHandler) StartScheduler(c *gin.Context) {
	if err := h.scheduler.Start(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Reminder scheduler started",
		"status":  h.scheduler.Status(),
	})
}

func (h *ReminderHandler) StopScheduler(c *gin.Context) {
	h.scheduler.Stop()

	c.JSON(http.StatusOK, gin.H{
		"message": "Reminder scheduler stopped",
		"status":  h.scheduler.Status(),
	})
}

// TriggerSweep queues an overdue sweep and returns immediately
func (h *ReminderHandler) TriggerSweep(c *gin.Context) {
	if err := h.scheduler.Sweep(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Overdue sweep queued"})
}

func (h *ReminderHandler) EvaluateTask(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	evaluation, err := h.scheduler.EvaluateTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, evaluation)
}

func (h *ReminderHandler) SendTest(c *gin.Context) {
	var req service.TestSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.scheduler.SendTest(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	if !result.Success {
		c.JSON(http.StatusBadGateway, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ReminderHandler) GetLedger(c *gin.Context) {
	records, err := h.scheduler.ListLedger(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get reminder ledger",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

func (h *ReminderHandler) PruneLedger(c *gin.Context) {
	removed, err := h.scheduler.PruneLedger(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
