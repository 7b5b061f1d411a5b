package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/db"
	"github.com/siddharth270/ConvergenceSSNZB/internal/platform/llm"
)

const (
	serviceTitle      = "Clinical Scribe API"
	healthDisclaimer  = "For documentation assistance only - not for medical diagnosis"
	serviceDisclaimer = "For documentation assistance only - requires clinician review"
)

const llmPingTimeout = 5 * time.Second

// pinger is satisfied by llm.Client.
type pinger interface {
	Ping(ctx context.Context) error
}

// llmStatus is "connected" when the provider answers, "error" when it
// answers with a failure status and "disconnected" when it cannot be reached.
func llmStatus(ctx context.Context, p pinger) string {
	ctx, cancel := context.WithTimeout(ctx, llmPingTimeout)
	defer cancel()
	err := p.Ping(ctx)
	if err == nil {
		return db.StatusConnected
	}
	var ue *llm.UpstreamError
	if errors.As(err, &ue) && ue.StatusCode != 0 {
		return db.StatusError
	}
	return db.StatusDisconnected
}

func healthHandler(client pinger, store db.Pinger, model string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		return c.JSON(http.StatusOK, map[string]string{
			"status":          "healthy",
			"service":         serviceTitle,
			"version":         version,
			"llm_status":      llmStatus(ctx, client),
			"llm_model":       model,
			"database_status": db.Status(ctx, store),
			"disclaimer":      healthDisclaimer,
		})
	}
}

func rootHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"message":    serviceTitle,
			"version":    version,
			"health":     "/health",
			"disclaimer": serviceDisclaimer,
		})
	}
}
