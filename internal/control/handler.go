// Package control implements the immediate-run control plane: a small
// gin router exposing health and an out-of-band "run this job now" endpoint
// guarded by a shared-secret token.
package control

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/jjscheduler/sched/internal/scheduler"
)

// Handler serves the control endpoints. It only ever enqueues job ids; the
// poll loop goroutine owns every store write. token is an atomic.Value
// rather than a plain field so a config reload on the watcher goroutine can
// rotate it without racing the HTTP handler goroutines reading it.
type Handler struct {
	queue *scheduler.ImmediateQueue
	token atomic.Value // string
}

func NewHandler(queue *scheduler.ImmediateQueue, token string) *Handler {
	h := &Handler{queue: queue}
	h.token.Store(token)
	return h
}

// SetToken rotates the shared secret checked by RunImmediate. Safe to call
// from any goroutine, including a config-reload callback.
func (h *Handler) SetToken(token string) {
	h.token.Store(token)
}

func (h *Handler) currentToken() string {
	v, _ := h.token.Load().(string)
	return v
}

func (h *Handler) authorized(c *gin.Context) bool {
	token := h.currentToken()
	if token == "" {
		return true
	}
	for _, supplied := range []string{c.Query("token"), c.GetHeader("X-Token")} {
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) == 1 {
			return true
		}
	}
	return false
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) RunImmediate(c *gin.Context) {
	if !h.authorized(c) {
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "forbidden"})
		return
	}

	raw := c.Query("job_id")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing_job_id"})
		return
	}

	jobID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "bad_job_id"})
		return
	}

	if !h.queue.Enqueue(jobID) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "queue_full"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "queued": jobID})
}

// NewRouter wires the control endpoints behind request-id and metrics
// middleware, with slog-gin providing structured access logs.
func NewRouter(h *Handler, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(recordMetrics())
	r.Use(sloggin.New(logger))

	r.GET("/health", h.Health)
	r.GET("/run_immediate", h.RunImmediate)

	return r
}
