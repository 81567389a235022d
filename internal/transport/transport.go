package transport

import (
	"net/http"
	"time"

	"github.com/ds124wfegd/task-reminder/internal/transport/middleware"

	"github.com/gin-gonic/gin"
)

// HealthChecks are optional dependency probes reported by /health
type HealthChecks map[string]func() error

func InitRoutes(reminderHandler *ReminderHandler, settingsHandler *SettingsHandler, requestTimeout time.Duration, checks HealthChecks) *gin.Engine {

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(requestTimeout))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		code, status := http.StatusOK, "healthy"
		dependencies := gin.H{}
		for name, check := range checks {
			if err := check(); err != nil {
				code, status = http.StatusServiceUnavailable, "degraded"
				dependencies[name] = err.Error()
				continue
			}
			dependencies[name] = "ok"
		}

		c.JSON(code, gin.H{
			"status":       status,
			"service":      "task-reminder",
			"scheduler":    reminderHandler.scheduler.Status().Running,
			"dependencies": dependencies,
			"timestamp":    time.Now().Format(time.RFC3339),
		})
	})

	// API routes
	api := router.Group("/api/v1")
	{
		// Scheduler routes
		scheduler := api.Group("/scheduler")
		{
			scheduler.GET("/status", reminderHandler.GetStatus)
			scheduler.POST("/start", reminderHandler.StartScheduler)
			scheduler.POST("/stop", reminderHandler.StopScheduler)
			scheduler.POST("/sweep", reminderHandler.TriggerSweep)
		}

		api.POST("/tasks/:id/evaluate", reminderHandler.EvaluateTask)

		// Reminder routes
		reminders := api.Group("/reminders")
		{
			reminders.POST("/test", reminderHandler.SendTest)
			reminders.GET("/ledger", reminderHandler.GetLedger)
			reminders.POST("/ledger/prune", reminderHandler.PruneLedger)
		}

		// User routes
		users := api.Group("/users")
		{
			users.GET("/:id/reminder-settings", settingsHandler.GetSettings)
			users.PUT("/:id/reminder-settings", settingsHandler.UpdateSettings)
		}
	}

	return router
}
