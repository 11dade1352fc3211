package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pathakanu/eventMemo/internal/dispatch"
	"github.com/pathakanu/eventMemo/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Scheduler is the part of scheduler.Driver the ops surface needs.
type Scheduler interface {
	State() scheduler.State
	Busy() bool
	Skipped() int64
	LastSummary() (dispatch.Summary, bool)
	TriggerNow(ctx context.Context) (dispatch.Summary, bool, error)
}

// NewRouter wires the health, stats, manual dispatch and metrics endpoints.
func NewRouter(sched Scheduler, gatherer prometheus.Gatherer, logger logrus.FieldLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"scheduler": sched.State().String(),
		})
	})

	router.GET("/stats", func(c *gin.Context) {
		last, ok := sched.LastSummary()
		body := gin.H{
			"scheduler":     sched.State().String(),
			"tick_running":  sched.Busy(),
			"ticks_skipped": sched.Skipped(),
		}
		if ok {
			body["last_tick"] = last
		}
		c.JSON(http.StatusOK, body)
	})

	router.POST("/dispatch", func(c *gin.Context) {
		summary, ran, err := sched.TriggerNow(c.Request.Context())
		switch {
		case errors.Is(err, scheduler.ErrNotRunning):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		case !ran:
			c.JSON(http.StatusConflict, gin.H{"error": "a dispatch cycle is already running"})
		default:
			c.JSON(http.StatusOK, summary)
		}
	})

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Debug("ops request")
	}
}
