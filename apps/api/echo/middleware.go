package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
)

// roleMiddleware only lets through users having one of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if usr.HasAnyRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return roleMiddleware(user.RoleGeneralCoordinator)
}

// maintenanceMiddleware rejects the users not allowed in while maintenance is enabled.
func maintenanceMiddleware(sp settings.Provider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			s := sp.Current()
			if !s.CanAccessDuringMaintenance(usr) {
				return echo.NewHTTPError(http.StatusServiceUnavailable, s.Maintenance.Message)
			}
			return next(ctx)
		}
	}
}
