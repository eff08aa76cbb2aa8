package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/internlink/auth-service/internal/core"
)

// TokenSweeper deletes long-expired refresh records on demand. Expiry is
// already enforced lazily at redeem time; the sweep only reclaims rows.
type TokenSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type Handler struct {
	dbStats    func() sql.DBStats
	redisStats func() *redis.PoolStats
	dbPing     func(ctx context.Context) error
	redisPing  func(ctx context.Context) error
	sweeper    TokenSweeper
}

type HandlerConfig struct {
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	DBPing     func(ctx context.Context) error
	RedisPing  func(ctx context.Context) error
	Sweeper    TokenSweeper
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		dbStats:    cfg.DBStats,
		redisStats: cfg.RedisStats,
		dbPing:     cfg.DBPing,
		redisPing:  cfg.RedisPing,
		sweeper:    cfg.Sweeper,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
		r.Post("/tokens/sweep", h.SweepTokens)
	})
}

type SystemStatsResponse struct {
	Database DatabaseStatus `json:"database"`
	Redis    RedisStatus    `json:"redis"`
	Runtime  RuntimeStats   `json:"runtime"`
}

type DatabaseStatus struct {
	Healthy         bool `json:"healthy"`
	OpenConnections int  `json:"open_connections"`
	InUse           int  `json:"in_use"`
	Idle            int  `json:"idle"`
}

type RedisStatus struct {
	Healthy    bool   `json:"healthy"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc"`
	NumGC        uint32 `json:"num_gc"`
}

type SweepResponse struct {
	Deleted int64 `json:"deleted"`
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbHealthy := h.dbPing == nil || h.dbPing(ctx) == nil
	redisHealthy := h.redisPing == nil || h.redisPing(ctx) == nil

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := SystemStatsResponse{
		Database: DatabaseStatus{Healthy: dbHealthy},
		Redis:    RedisStatus{Healthy: redisHealthy},
		Runtime: RuntimeStats{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			NumCPU:       runtime.NumCPU(),
			MemAlloc:     memStats.Alloc,
			NumGC:        memStats.NumGC,
		},
	}

	if h.dbStats != nil {
		stats := h.dbStats()
		resp.Database.OpenConnections = stats.OpenConnections
		resp.Database.InUse = stats.InUse
		resp.Database.Idle = stats.Idle
	}

	if h.redisStats != nil {
		stats := h.redisStats()
		resp.Redis.TotalConns = stats.TotalConns
		resp.Redis.IdleConns = stats.IdleConns
	}

	core.OK(w, resp)
}

func (h *Handler) SweepTokens(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.sweeper.SweepExpired(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, SweepResponse{Deleted: deleted})
}
