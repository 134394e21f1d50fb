package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/message"
)

type messageAPI struct {
	svc      *message.Service
	validate *validator.Validate
}

func registerMessageAPI(g *echo.Group, svc *message.Service, validate *validator.Validate) {
	api := messageAPI{svc: svc, validate: validate}

	g.GET("", api.inbox)
	g.POST("", api.send)
	g.GET("/unread", api.unread)
	g.POST("/:id/read", api.markRead)
}

func (api *messageAPI) inbox(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	msgs, err := api.svc.Inbox(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying inbox")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(msgs))
}

func (api *messageAPI) send(ctx echo.Context) error {
	var data message.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	data.RecipientID = core.CleanString(data.RecipientID)
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	data.SenderID = usr.ID

	msg, err := api.svc.Send(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *messageAPI) unread(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	count, err := api.svc.UnreadCount(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "counting unread messages")
	}
	return ctx.JSON(http.StatusOK, UnreadResponse{Count: count})
}

func (api *messageAPI) markRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	msg, err := api.svc.MarkRead(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking message as read")
	}
	return ctx.JSON(http.StatusOK, msg)
}

type UnreadResponse struct {
	Count int `json:"count"`
}
