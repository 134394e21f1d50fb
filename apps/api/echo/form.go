package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/form"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
)

// coordinators manage the forms & read every response.
var coordinators = []string{user.RoleGeneralCoordinator, user.RoleSubnetCoordinator}

type formAPI struct {
	svc      *form.Service
	settings settings.Provider
}

func registerFormAPI(g *echo.Group, svc *form.Service, sp settings.Provider) {
	api := formAPI{svc: svc, settings: sp}
	coordinatorOnly := roleMiddleware(coordinators...)

	g.GET("", api.query)
	g.POST("", api.create, coordinatorOnly)
	g.GET("/assigned", api.assigned)
	g.POST("/sync", api.sync)

	g.GET("/responses/:id", api.retrieveResponse)
	g.PUT("/responses/:id", api.updateResponse)
	g.POST("/responses/:id/report", api.generateReport, coordinatorOnly)

	g.GET("/:id", api.retrieve)
	g.PUT("/:id", api.update, coordinatorOnly)
	g.DELETE("/:id", api.destroy, coordinatorOnly)
	g.GET("/:id/can-respond", api.canRespond)
	g.GET("/:id/responses", api.responses)
	g.POST("/:id/responses", api.addResponse)
	g.GET("/:id/responses/mine", api.myResponse)
	g.GET("/:id/report-template", api.reportTemplate, coordinatorOnly)
	g.PUT("/:id/report-template", api.setReportTemplate, coordinatorOnly)
	g.GET("/:id/reports", api.reports, coordinatorOnly)
}

func isCoordinator(usr user.User) bool {
	return usr.HasAnyRole(coordinators...)
}

// academicYear returns the requested academic year, defaulting to the active one.
func (api *formAPI) academicYear(ctx echo.Context) string {
	if year := core.CleanString(ctx.QueryParam("academic_year_id")); year != "" {
		return year
	}
	return api.settings.Current().AcademicYear
}

func (api *formAPI) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var forms []form.Form
	if isCoordinator(usr) {
		forms, err = api.svc.List(ctx.Request().Context())
	} else {
		forms, err = api.svc.FormsByRole(ctx.Request().Context(), usr.MainRole(), api.academicYear(ctx))
	}
	if err != nil {
		return errors.Wrap(err, "querying forms")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(forms))
}

func (api *formAPI) assigned(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	forms, err := api.svc.FormsByRole(ctx.Request().Context(), usr.MainRole(), api.academicYear(ctx))
	if err != nil {
		return errors.Wrap(err, "querying assigned forms")
	}
	return ctx.JSON(http.StatusOK, forms)
}

func (api *formAPI) sync(ctx echo.Context) error {
	drafts, err := api.svc.SyncResponses(ctx.Request().Context(), api.academicYear(ctx))
	if err != nil {
		return errors.Wrap(err, "syncing responses")
	}
	return ctx.JSON(http.StatusOK, drafts)
}

func (api *formAPI) create(ctx echo.Context) error {
	var data form.NewForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewForm")
	}
	f, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating form")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *formAPI) retrieve(ctx echo.Context) error {
	f, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding form")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *formAPI) update(ctx echo.Context) error {
	var data form.NewForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewForm")
	}
	f, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating form")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *formAPI) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting form")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *formAPI) canRespond(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ok, err := api.svc.CanUserRespond(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "checking response permission")
	}
	return ctx.JSON(http.StatusOK, CanRespondResponse{CanRespond: ok})
}

func (api *formAPI) responses(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reqCtx := ctx.Request().Context()
	if _, err = api.svc.Get(reqCtx, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "finding form")
	}

	var responses []form.Response
	if isCoordinator(usr) {
		responses, err = api.svc.ResponsesByForm(reqCtx, ctx.Param("id"))
	} else {
		responses, err = api.svc.ResponsesByUser(reqCtx, usr.ID, ctx.Param("id"))
	}
	if err != nil {
		return errors.Wrap(err, "querying responses")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(responses))
}

func (api *formAPI) myResponse(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	r, err := api.svc.ResponseByUserAndForm(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding response")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *formAPI) addResponse(ctx echo.Context) error {
	var data form.NewResponse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResponse")
	}
	r, err := api.svc.AddResponse(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding response")
	}
	return ctx.JSON(http.StatusCreated, r)
}

func (api *formAPI) retrieveResponse(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	r, err := api.svc.GetResponse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding response")
	}
	if r.UserID != usr.ID && !isCoordinator(usr) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *formAPI) updateResponse(ctx echo.Context) error {
	var data form.NewResponse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResponse")
	}
	r, err := api.svc.UpdateResponse(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating response")
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *formAPI) reportTemplate(ctx echo.Context) error {
	tmpl, err := api.svc.ReportTemplate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding report template")
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

func (api *formAPI) setReportTemplate(ctx echo.Context) error {
	var data form.NewReportTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReportTemplate")
	}
	tmpl, err := api.svc.SetReportTemplate(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting report template")
	}
	return ctx.JSON(http.StatusOK, tmpl)
}

func (api *formAPI) generateReport(ctx echo.Context) error {
	report, err := api.svc.GenerateReport(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "generating report")
	}
	return ctx.JSON(http.StatusCreated, report)
}

func (api *formAPI) reports(ctx echo.Context) error {
	reports, err := api.svc.Reports(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying reports")
	}
	return ctx.JSON(http.StatusOK, emptyIfNil(reports))
}

type CanRespondResponse struct {
	CanRespond bool `json:"can_respond"`
}
