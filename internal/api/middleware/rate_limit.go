package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/pinify/pinify-backend/internal/config"
	"github.com/pinify/pinify-backend/internal/utils"
	"github.com/pinify/pinify-backend/pkg/logger"
)

func RateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	rate := limiter.Rate{
		Period: time.Second,
		Limit:  int64(cfg.RateLimitRPS),
	}

	store := memory.NewStore()
	instance := limiter.New(store, rate, limiter.WithTrustForwardHeader(true))

	return mgin.NewMiddleware(instance,
		mgin.WithKeyGetter(func(c *gin.Context) string {
			return fmt.Sprintf("%s:%s", c.ClientIP(), c.Request.URL.Path)
		}),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			logger.WithFields(logger.Fields{"ip": c.ClientIP(), "path": c.Request.URL.Path}).Warn("rate limit reached")
			utils.SendError(c, http.StatusTooManyRequests, "Too many requests, slow down", nil)
		}),
	)
}
