package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core/meeting"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
)

var errMeetingNotFoundInCtx = errors.New("meeting object not found in echo.Context")

type meetingAPI struct {
	svc      *meeting.Service
	settings settings.Provider
	validate *validator.Validate
}

func registerMeetingAPI(g *echo.Group, svc *meeting.Service, sp settings.Provider, validate *validator.Validate) {
	api := meetingAPI{svc: svc, settings: sp, validate: validate}

	g.POST("", api.schedule)
	g.GET("", api.query)
	g.GET("/upcoming", api.upcoming)
	g.GET("/mine", api.mine)
	g.GET("/users/:id", api.byUser, adminMiddleware())
	g.GET("/invitations/pending", api.pendingInvitations)
	g.POST("/invitations/:id/respond", api.respond)

	g.GET("/:id", api.retrieve)
	g.GET("/:id/invitations", api.invitations)

	// organizer endpoints
	og := g.Group("/:id", organizerOrAdminMiddleware(svc))
	og.PUT("", api.update)
	og.DELETE("", api.destroy)
	og.POST("/cancel", api.cancel)
	og.POST("/start", api.start)
	og.POST("/end", api.end)
	og.POST("/reminders", api.remind)
	og.POST("/invitations", api.sendInvitations)
}

// policy returns the meeting policy of the current settings, nil when meetings were never configured.
func (api *meetingAPI) policy() *settings.MeetingSettings {
	return api.settings.Current().Meetings
}

func (api *meetingAPI) schedule(ctx echo.Context) error {
	var data meeting.ScheduleMeeting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScheduleMeeting")
	}
	organizer, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = data.Validate(api.validate, api.policy(), organizer); err != nil {
		return err
	}

	base, instances, err := api.svc.Schedule(ctx.Request().Context(), data.NewMeeting, data.Recurrence)
	if err != nil {
		return errors.Wrap(err, "scheduling meeting")
	}
	return ctx.JSON(http.StatusCreated, ScheduleResponse{Meeting: base, Instances: instances})
}

func (api *meetingAPI) query(ctx echo.Context) error {
	meetings, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing meetings")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(meetings))
}

func (api *meetingAPI) upcoming(ctx echo.Context) error {
	meetings, err := api.svc.UpcomingMeetings(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying upcoming meetings")
	}
	return ctx.JSON(http.StatusOK, meetings)
}

func (api *meetingAPI) mine(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	meetings, err := api.svc.MeetingsByUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying user meetings")
	}
	return ctx.JSON(http.StatusOK, meetings)
}

func (api *meetingAPI) byUser(ctx echo.Context) error {
	meetings, err := api.svc.MeetingsByUser(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying user meetings")
	}
	return ctx.JSON(http.StatusOK, meetings)
}

func (api *meetingAPI) pendingInvitations(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	invs, err := api.svc.PendingInvitations(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying pending invitations")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(invs))
}

func (api *meetingAPI) respond(ctx echo.Context) error {
	var data meeting.InvitationResponse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to InvitationResponse")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	reqCtx := ctx.Request().Context()
	inv, err := api.svc.GetInvitation(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding invitation")
	}
	// only the invitee answers their invitation
	if inv.UserID != usr.ID {
		return errHttpForbidden
	}

	if inv, err = api.svc.Respond(reqCtx, inv.ID, data); err != nil {
		return errors.Wrap(err, "responding to invitation")
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *meetingAPI) retrieve(ctx echo.Context) error {
	m, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding meeting")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *meetingAPI) invitations(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	if _, err := api.svc.Get(reqCtx, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "finding meeting")
	}
	invs, err := api.svc.Invitations(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying invitations")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(invs))
}

func (api *meetingAPI) update(ctx echo.Context) error {
	m, ok := ctx.Get("object").(meeting.Meeting)
	if !ok {
		return errors.Wrap(errMeetingNotFoundInCtx, "retrieving object from context")
	}

	var data meeting.UpdateMeeting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMeeting")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = data.Validate(api.validate, m, api.policy(), usr); err != nil {
		return err
	}

	if m, err = api.svc.Update(ctx.Request().Context(), m.ID, data); err != nil {
		return errors.Wrap(err, "updating meeting")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *meetingAPI) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting meeting")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *meetingAPI) cancel(ctx echo.Context) error {
	var data meeting.CancelMeeting
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CancelMeeting")
	}
	m, err := api.svc.Cancel(ctx.Request().Context(), ctx.Param("id"), data.Reason)
	if err != nil {
		return errors.Wrap(err, "cancelling meeting")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *meetingAPI) start(ctx echo.Context) error {
	url, err := api.svc.Start(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting meeting")
	}
	return ctx.JSON(http.StatusOK, StartResponse{URL: url})
}

func (api *meetingAPI) end(ctx echo.Context) error {
	if err := api.svc.End(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "ending meeting")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *meetingAPI) remind(ctx echo.Context) error {
	deliveries, err := api.svc.Remind(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "sending reminders")
	}
	return ctx.JSON(http.StatusOK, newDeliveryResponses(deliveries))
}

func (api *meetingAPI) sendInvitations(ctx echo.Context) error {
	var data meeting.SendInvitations
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendInvitations")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	invs, err := api.svc.SendInvitations(ctx.Request().Context(), ctx.Param("id"), data.UserIDs)
	if err != nil {
		return errors.Wrap(err, "sending invitations")
	}
	return ctx.JSON(http.StatusCreated, invs)
}

// organizerOrAdminMiddleware loads the meeting into the context when the user organizes it or is a general coordinator.
func organizerOrAdminMiddleware(svc *meeting.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			m, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == meeting.ErrNotFound && ctx.Request().Method == http.MethodDelete {
					// deleting an unknown meeting is a no-op
					return next(ctx)
				}
				return errors.Wrap(err, "finding meeting")
			}
			if m.Organizer != usr.ID && !usr.HasRole(user.RoleGeneralCoordinator) {
				return errHttpForbidden
			}
			ctx.Set("object", m)
			return next(ctx)
		}
	}
}

type (
	ScheduleResponse struct {
		Meeting   meeting.Meeting   `json:"meeting"`
		Instances []meeting.Meeting `json:"instances"`
	}

	StartResponse struct {
		URL string `json:"meeting_url"`
	}

	DeliveryResponse struct {
		Recipient    string       `json:"recipient"`
		Kind         meeting.Kind `json:"kind"`
		MessageError string       `json:"message_error,omitempty"`
		EmailError   string       `json:"email_error,omitempty"`
	}
)

func newDeliveryResponses(deliveries []meeting.Delivery) []DeliveryResponse {
	resp := make([]DeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		dr := DeliveryResponse{Recipient: d.Recipient, Kind: d.Kind}
		if d.MessageErr != nil {
			dr.MessageError = d.MessageErr.Error()
		}
		if d.EmailErr != nil {
			dr.EmailError = d.EmailErr.Error()
		}
		resp = append(resp, dr)
	}
	return resp
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
