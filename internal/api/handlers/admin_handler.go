package handlers

import (
	"net/http"

	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"

	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	sweeper domain.ExpiryScheduler
	clock   domain.Clock
	log     logger.Logger
}

func NewAdminHandler(sweeper domain.ExpiryScheduler, clock domain.Clock, log logger.Logger) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, clock: clock, log: log}
}

// Sweep runs one expiry pass regardless of leadership.
func (h *AdminHandler) Sweep(c echo.Context) error {
	expired, err := h.sweeper.SweepExpired(c.Request().Context(), h.clock.Now())
	if err != nil {
		h.log.Error("Manual sweep finished with errors", "expired", expired, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"expired": expired,
			"error":   err.Error(),
		})
	}

	h.log.Info("Manual sweep finished", "expired", expired)
	return c.JSON(http.StatusOK, map[string]int{"expired": expired})
}
