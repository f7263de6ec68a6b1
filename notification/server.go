package notification

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RegisterRoutes mounts the notification-log HTTP surface used by remote
// followers, grounded in audit-service/internal/handler.RegisterRoutes:
// one read-only GET route per resource, errors logged and turned into a
// JSON error body rather than propagated to the client.
func RegisterRoutes(e *echo.Echo, log *LocalNotificationLog, logger *zap.Logger) {
	e.GET("/log/:section_id", getSectionHandler(log, logger))
}

func getSectionHandler(log *LocalNotificationLog, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		sectionID := c.Param("section_id")
		section, err := log.Section(c.Request().Context(), sectionID)
		if err != nil {
			logger.Error("notification log section request failed",
				zap.String("section_id", sectionID), zap.Error(err))
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, toWire(section))
	}
}
