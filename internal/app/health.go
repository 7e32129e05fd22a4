package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prperemyshlev/auth-engine/internal/service"
)

const healthCheckTimeout = 2 * time.Second

type HealthChecker struct {
	infra  Infrastructure
	engine service.AuthEngine
}

func NewHealthChecker(infra Infrastructure, engine service.AuthEngine) *HealthChecker {
	return &HealthChecker{
		infra:  infra,
		engine: engine,
	}
}

func (h *HealthChecker) check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	errs := make(chan error, 3)

	go func() {
		errs <- h.infra.Postgres().Ping(ctx)
	}()

	go func() {
		errs <- h.infra.Redis().Ping(ctx)
	}()

	go func() {
		errs <- h.engine.Health(ctx)
	}()

	return errors.Join(<-errs, <-errs, <-errs)
}

func (h *HealthChecker) Handler(c *gin.Context) {
	if err := h.check(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "fail",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "pass",
	})
}
