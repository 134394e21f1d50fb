package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core/assistant"
)

type assistantAPI struct {
	svc *assistant.Service
}

func registerAssistantAPI(g *echo.Group, svc *assistant.Service) {
	api := assistantAPI{svc: svc}
	coordinatorOnly := roleMiddleware(coordinators...)

	g.GET("/templates/:type", api.templates, coordinatorOnly)
	g.POST("/generate", api.generate, coordinatorOnly)
}

func (api *assistantAPI) templates(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, assistant.Templates(assistant.OutputType(ctx.Param("type"))))
}

func (api *assistantAPI) generate(ctx echo.Context) error {
	var data assistant.Request
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Request")
	}
	res, err := api.svc.Generate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "generating content")
	}
	return ctx.JSON(http.StatusOK, res)
}
