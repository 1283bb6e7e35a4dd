package health

import (
	"context"
	"errors"
	"testing"

	"cleanup-backend/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type downPinger struct{}

func (downPinger) Ping() error { return errors.New("down") }

func TestCollect_NothingConfigured(t *testing.T) {
	result := (&Collector{}).Collect(context.Background())
	assert.Equal(t, "issue", result.Status)
	assert.Equal(t, "disconnected", result.Dependencies["database"].Status)
	assert.Equal(t, "disconnected", result.Dependencies["redis"].Status)
	assert.Nil(t, result.Recovery)
	assert.Equal(t, 0, result.Traffic.TotalRequests)
}

func TestCollect_Traffic(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	c := &Collector{Rdb: rdb, DB: downPinger{}}
	result := c.Collect(ctx)
	assert.Equal(t, "connected", result.Dependencies["redis"].Status)
	assert.Equal(t, "error", result.Dependencies["database"].Status)
	assert.Equal(t, "100", result.Traffic.SuccessRate)

	require.NoError(t, rdb.Set(ctx, "health:payments:req_total", "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:payments:req_errors", "2", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:payments:res_time_total", "150.5", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:payments:res_count", "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:payments:last_request", `{"path":"/payments/holds"}`, 0).Err())

	result = c.Collect(ctx)
	assert.Equal(t, 10, result.Traffic.TotalRequests)
	assert.Equal(t, 8, result.Traffic.SuccessCount)
	assert.Equal(t, "80.0", result.Traffic.SuccessRate)
	assert.Equal(t, "15.05", result.Traffic.AvgResponseTime)
	assert.Equal(t, "/payments/holds", result.Traffic.LastRequest.(map[string]interface{})["path"])
}

func TestCollect_RecoveryBacklog(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.RecoveryTask{}))
	for _, status := range []domain.RecoveryTaskStatus{domain.RecoveryTaskPending, domain.RecoveryTaskPending, domain.RecoveryTaskFailed, domain.RecoveryTaskDone} {
		require.NoError(t, db.Create(&domain.RecoveryTask{Kind: "compensate_donation", SubjectID: uuid.New(), Status: status}).Error)
	}

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	result := (&Collector{Rdb: rdb, DB: GormPinger{DB: db}, Tasks: db}).Collect(context.Background())
	assert.Equal(t, "ok", result.Status)
	require.NotNil(t, result.Recovery)
	assert.Equal(t, int64(2), result.Recovery.Pending)
	assert.Equal(t, int64(1), result.Recovery.Failed)
}
