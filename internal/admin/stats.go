// AngelaMos | 2026
// stats.go

package admin

import (
	"context"
	"net/http"
	"runtime"

	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/profile"
)

// Stats gathers membership counters for the admin dashboard.
func (d *Directory) Stats(ctx context.Context) (*MembershipStats, error) {
	roles, err := d.profiles.CountByRole(ctx)
	if err != nil {
		return nil, err
	}

	active, err := d.entitlements.CountActiveByProduct(ctx)
	if err != nil {
		return nil, err
	}

	products := make([]ProductGrantCount, 0, len(d.catalog.Products()))
	for _, p := range d.catalog.Products() {
		products = append(products, ProductGrantCount{
			ProductID:    p.ID,
			ProductName:  p.Name,
			ActiveGrants: active[p.ID],
		})
	}

	total := 0
	for _, n := range roles {
		total += n
	}

	return &MembershipStats{
		TotalUsers: total,
		Members:    roles[profile.RoleMember],
		Admins:     roles[profile.RoleAdmin],
		Products:   products,
	}, nil
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	membership, err := h.directory.Stats(ctx)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	dbHealthy := true
	if h.dbPing != nil {
		if err := h.dbPing(ctx); err != nil {
			dbHealthy = false
		}
	}

	redisHealthy := true
	if h.redisPing != nil {
		if err := h.redisPing(ctx); err != nil {
			redisHealthy = false
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	core.PrivateNoStore(w)
	core.OK(w, SystemStatsResponse{
		Membership: *membership,
		Database: DatabaseStatus{
			Healthy: dbHealthy,
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: redisHealthy,
			Stats:   h.getRedisStats(),
		},
		Runtime: RuntimeStats{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			MemAlloc:     memStats.Alloc,
			NumGC:        memStats.NumGC,
		},
	})
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
	}
}

type MembershipStats struct {
	TotalUsers int                 `json:"total_users"`
	Members    int                 `json:"members"`
	Admins     int                 `json:"admins"`
	Products   []ProductGrantCount `json:"products"`
}

type ProductGrantCount struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	ActiveGrants int    `json:"active_grants"`
}

type SystemStatsResponse struct {
	Membership MembershipStats `json:"membership"`
	Database   DatabaseStatus  `json:"database"`
	Redis      RedisStatus     `json:"redis"`
	Runtime    RuntimeStats    `json:"runtime"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
