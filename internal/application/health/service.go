package health

import (
	"context"
	"encoding/json"
	"runtime"
	"strconv"
	"time"

	"cleanup-backend/internal/domain"
	"cleanup-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// DBPinger is optional for health check. If nil, database is reported as disconnected.
type DBPinger interface {
	Ping() error
}

// GormPinger pings the pool behind a gorm handle.
type GormPinger struct {
	DB *gorm.DB
}

func (g GormPinger) Ping() error {
	sqlDB, err := g.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

type CollectResult struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Recovery     *RecoveryInfo        `json:"recovery,omitempty"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64  `json:"uptimeSeconds"`
	HeapMB        int    `json:"heapMb"`
	Goroutines    int    `json:"goroutines"`
	GoVersion     string `json:"goVersion"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime interface{} `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

// RecoveryInfo counts recovery tasks still waiting and those needing manual reconciliation.
type RecoveryInfo struct {
	Pending int64 `json:"pending"`
	Failed  int64 `json:"failed"`
}

type DepStatus struct {
	Status string      `json:"status"`
	PingMs interface{} `json:"pingMs"`
}

// Collector gathers health data from Redis and the database.
type Collector struct {
	Rdb *redis.Client
	DB  DBPinger
	// Tasks, when set, is queried for the recovery backlog.
	Tasks *gorm.DB
}

func (h *Collector) Collect(ctx context.Context) CollectResult {
	result := CollectResult{Dependencies: make(map[string]DepStatus)}

	dbStatus, dbPing := "disconnected", (*int64)(nil)
	if h.DB != nil {
		start := time.Now()
		if err := h.DB.Ping(); err == nil {
			ms := time.Since(start).Milliseconds()
			dbPing, dbStatus = &ms, "connected"
		} else {
			dbStatus = "error"
		}
	}
	result.Dependencies["database"] = DepStatus{Status: dbStatus, PingMs: dbPing}

	redisStatus, redisPing := "disconnected", (*int64)(nil)
	stats := TrafficInfo{AvgResponseTime: 0, SuccessRate: "100"}
	startTimeMs := time.Now().UnixMilli()
	if h.Rdb != nil {
		start := time.Now()
		if err := h.Rdb.Ping(ctx).Err(); err == nil {
			ms := time.Since(start).Milliseconds()
			redisPing, redisStatus = &ms, "connected"
			startTimeMs = h.traffic(ctx, &stats, startTimeMs)
		} else {
			redisStatus = "error"
		}
	}
	result.Dependencies["redis"] = DepStatus{Status: redisStatus, PingMs: redisPing}
	result.Traffic = stats

	if h.Tasks != nil && dbStatus == "connected" {
		var info RecoveryInfo
		h.Tasks.WithContext(ctx).Model(&domain.RecoveryTask{}).Where("status = ?", domain.RecoveryTaskPending).Count(&info.Pending)
		h.Tasks.WithContext(ctx).Model(&domain.RecoveryTask{}).Where("status = ?", domain.RecoveryTaskFailed).Count(&info.Failed)
		result.Recovery = &info
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := (time.Now().UnixMilli() - startTimeMs) / 1000
	if uptime < 0 {
		uptime = 0
	}
	result.Runtime = RuntimeInfo{
		UptimeSeconds: uptime,
		HeapMB:        int(m.HeapInuse / 1024 / 1024),
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
	}

	result.Status = "issue"
	if dbStatus == "connected" && redisStatus == "connected" {
		result.Status = "ok"
	}
	return result
}

// traffic fills stats from the HealthMarker counters and returns the recorded start time.
func (h *Collector) traffic(ctx context.Context, stats *TrafficInfo, startTimeMs int64) int64 {
	vals, _ := h.Rdb.MGet(ctx, middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime,
		middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq).Result()
	str := func(i int) string {
		if i < len(vals) {
			if s, ok := vals[i].(string); ok {
				return s
			}
		}
		return ""
	}

	if s := str(4); s != "" {
		if t, err := strconv.ParseInt(s, 10, 64); err == nil {
			startTimeMs = t
		}
	} else {
		h.Rdb.Set(ctx, middleware.KeyStartTime, startTimeMs, 0)
	}

	stats.TotalRequests, _ = strconv.Atoi(str(0))
	stats.FailedCount, _ = strconv.Atoi(str(1))
	stats.SuccessCount = stats.TotalRequests - stats.FailedCount
	if stats.TotalRequests > 0 {
		stats.SuccessRate = strconv.FormatFloat(float64(stats.SuccessCount)/float64(stats.TotalRequests)*100, 'f', 1, 64)
	}
	timeSum, _ := strconv.ParseFloat(str(2), 64)
	if count, _ := strconv.Atoi(str(3)); count > 0 {
		stats.AvgResponseTime = strconv.FormatFloat(timeSum/float64(count), 'f', 2, 64)
	}
	if s := str(5); s != "" {
		var last map[string]interface{}
		_ = json.Unmarshal([]byte(s), &last)
		stats.LastRequest = last
	}
	return startTimeMs
}
