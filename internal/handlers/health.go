package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/dencamenew/vsuet-attendance/pkg/response"
)

// Health returns a readiness payload covering the Redis and roster backends.
func Health(rdb *redis.Client, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := requestContext(c)
		status := http.StatusOK
		checks := gin.H{}

		if err := rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "ok"
		}

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		response.Success(c, status, gin.H{"status": overall, "checks": checks})
	}
}
