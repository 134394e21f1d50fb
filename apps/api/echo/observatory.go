package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/observatory"
)

type observatoryAPI struct {
	svc *observatory.Service
}

func registerObservatoryAPI(g *echo.Group, svc *observatory.Service) {
	api := observatoryAPI{svc: svc}
	moderatorOnly := moderatorMiddleware(svc)

	g.GET("/feed", api.feed)
	g.GET("/config", api.config, adminMiddleware())
	g.PUT("/config", api.updateConfig, adminMiddleware())

	eg := g.Group("/entries")
	eg.GET("", api.query, moderatorOnly)
	eg.POST("", api.create)
	eg.GET("/:id", api.retrieve)
	eg.PUT("/:id", api.update, moderatorOnly)
	eg.DELETE("/:id", api.destroy, moderatorOnly)
	eg.POST("/:id/publish", api.publish, moderatorOnly)
	eg.POST("/:id/reject", api.reject, moderatorOnly)
}

func (api *observatoryAPI) feed(ctx echo.Context) error {
	entries, err := api.svc.Feed(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying feed")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *observatoryAPI) config(ctx echo.Context) error {
	conf, err := api.svc.Config(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	return ctx.JSON(http.StatusOK, maskObservatoryConfig(conf))
}

func (api *observatoryAPI) updateConfig(ctx echo.Context) error {
	var data observatory.Config
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Config")
	}
	conf, err := api.svc.UpdateConfig(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating config")
	}
	return ctx.JSON(http.StatusOK, maskObservatoryConfig(conf))
}

func (api *observatoryAPI) query(ctx echo.Context) error {
	entries, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying entries")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(entries))
}

func (api *observatoryAPI) create(ctx echo.Context) error {
	var data observatory.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}
	e, err := api.svc.AddEntry(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding entry")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *observatoryAPI) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reqCtx := ctx.Request().Context()
	e, err := api.svc.Get(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding entry")
	}
	// unpublished entries are only visible to their author & the moderators
	if e.Status != observatory.StatusPublished && e.CreatedBy != usr.ID {
		conf, err := api.svc.Config(reqCtx)
		if err != nil {
			return errors.Wrap(err, "loading config")
		}
		if !usr.IsGeneralCoordinator() && !core.ContainsString(conf.Moderators, usr.ID) {
			return errHttpNotFound
		}
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *observatoryAPI) update(ctx echo.Context) error {
	var data observatory.UpdateEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateEntry")
	}
	e, err := api.svc.UpdateEntry(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating entry")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *observatoryAPI) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteEntry(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting entry")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *observatoryAPI) publish(ctx echo.Context) error {
	e, err := api.svc.PublishEntry(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "publishing entry")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *observatoryAPI) reject(ctx echo.Context) error {
	var data RejectRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectRequest")
	}
	e, err := api.svc.RejectEntry(ctx.Request().Context(), ctx.Param("id"), data.Notes)
	if err != nil {
		return errors.Wrap(err, "rejecting entry")
	}
	return ctx.JSON(http.StatusOK, e)
}

// moderatorMiddleware lets through the general coordinators & the configured moderators.
func moderatorMiddleware(svc *observatory.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if usr.IsGeneralCoordinator() {
				return next(ctx)
			}
			conf, err := svc.Config(ctx.Request().Context())
			if err != nil {
				return errors.Wrap(err, "loading config")
			}
			if core.ContainsString(conf.Moderators, usr.ID) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

type RejectRequest struct {
	Notes string `json:"notes"`
}

// ConfigResponse never carries the API key back. Sending it empty on update keeps the stored one.
type ConfigResponse struct {
	observatory.Config
	HasOpenAIAPIKey bool `json:"has_openai_api_key"`
}

func maskObservatoryConfig(conf observatory.Config) ConfigResponse {
	resp := ConfigResponse{Config: conf, HasOpenAIAPIKey: conf.OpenAIAPIKey != ""}
	resp.OpenAIAPIKey = ""
	return resp
}
