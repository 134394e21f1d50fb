package tests

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/redinnovafp/backend/apps/api/echo"
	"github.com/redinnovafp/backend/core/form"
	"github.com/redinnovafp/backend/core/user"
	emailsvc "github.com/redinnovafp/backend/services/email"
)

func newFormBody(t *testing.T, status form.Status, mutate ...func(nf *form.NewForm)) []byte {
	nf := form.NewForm{
		Title:              "Memoria de innovación",
		Status:             status,
		AcceptingResponses: true,
		AssignedRoles:      []string{user.RoleManager},
		AcademicYearID:     "2030-2031",
		Fields: []form.Field{
			{ID: "project", Label: "Proyecto", Type: "text", Required: true},
			{ID: "summary", Label: "Resumen", Type: "textarea"},
		},
	}
	for _, fn := range mutate {
		fn(&nf)
	}
	return marshalObj(t, nf)
}

func (app *testApp) createForm(t *testing.T, token string, body []byte) form.Form {
	rec := app.do(http.MethodPost, "/v1/forms", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var f form.Form
	decode(t, rec, &f)
	return f
}

func Test_formAPI_manage(t *testing.T) {
	app := setup(t)
	coordinator := app.createUser(t, "Eva", "eva", user.RoleSubnetCoordinator)
	manager := app.createUser(t, "Ana", "ana", user.RoleManager)
	coordToken, mgrToken := app.token(t, coordinator), app.token(t, manager)

	published := app.createForm(t, coordToken, newFormBody(t, form.StatusPublished))
	assert.Equal(t, coordinator.ID, published.CreatedBy)
	app.createForm(t, coordToken, newFormBody(t, form.StatusDraft))

	tests := []httpTest{
		{name: "only coordinators create", method: http.MethodPost, path: "/v1/forms", token: mgrToken, body: newFormBody(t, form.StatusDraft), wantCode: http.StatusForbidden},
		{
			name: "invalid status", method: http.MethodPost, path: "/v1/forms", token: coordToken,
			body: newFormBody(t, "abierto"), wantCode: http.StatusBadRequest,
		},
		{
			name: "duplicate field ids", method: http.MethodPost, path: "/v1/forms", token: coordToken,
			body: newFormBody(t, form.StatusDraft, func(nf *form.NewForm) {
				nf.Fields = append(nf.Fields, form.Field{ID: "project", Label: "Otro", Type: "text"})
			}),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"fields": "duplicate field id \"project\""}`),
		},
		{name: "unknown form", path: "/v1/forms/unknown", token: coordToken, wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "form not found"})},
		{name: "only coordinators delete", method: http.MethodDelete, path: "/v1/forms/" + published.ID, token: mgrToken, wantCode: http.StatusForbidden},
	}
	app.run(t, tests)

	t.Run("coordinators list every form", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/forms", coordToken)
		var forms []form.Form
		decode(t, rec, &forms)
		assert.Len(t, forms, 2)
	})

	t.Run("managers list their published forms", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/forms", mgrToken)
		var forms []form.Form
		decode(t, rec, &forms)
		require.Len(t, forms, 1)
		assert.Equal(t, published.ID, forms[0].ID)

		rec = app.do(http.MethodGet, "/v1/forms/assigned?academic_year_id=2029-2030", mgrToken)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/forms/"+published.ID, coordToken)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = app.do(http.MethodGet, "/v1/forms/"+published.ID, coordToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_formAPI_respond(t *testing.T) {
	app := setup(t)
	coordinator := app.createUser(t, "Eva", "eva", user.RoleGeneralCoordinator)
	manager := app.createUser(t, "Ana", "ana", user.RoleManager)
	other := app.createUser(t, "Luis", "luis", user.RoleSubnetCoordinator)
	coordToken, mgrToken := app.token(t, coordinator), app.token(t, manager)

	open := app.createForm(t, coordToken, newFormBody(t, form.StatusPublished))
	closed := app.createForm(t, coordToken, newFormBody(t, form.StatusClosed))
	notAccepting := func(nf *form.NewForm) { nf.AcceptingResponses = false }
	closedNotAccepting := app.createForm(t, coordToken, newFormBody(t, form.StatusClosed, notAccepting))
	paused := app.createForm(t, coordToken, newFormBody(t, form.StatusPublished, notAccepting))
	draft := app.createForm(t, coordToken, newFormBody(t, form.StatusDraft))

	submit := []byte(`{"responses": {"project": "Aula del futuro", "summary": "IA aplicada"}, "status": "enviado"}`)
	tests := []httpTest{
		{
			name: "closed", method: http.MethodPost, path: "/v1/forms/" + closed.ID + "/responses", token: mgrToken, body: submit,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "the form is closed"}),
		},
		{
			name: "closed & not accepting", method: http.MethodPost, path: "/v1/forms/" + closedNotAccepting.ID + "/responses", token: mgrToken, body: submit,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "the form is closed"}),
		},
		{
			name: "not accepting", method: http.MethodPost, path: "/v1/forms/" + paused.ID + "/responses", token: mgrToken, body: submit,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "the form is not accepting responses"}),
		},
		{
			name: "not published", method: http.MethodPost, path: "/v1/forms/" + draft.ID + "/responses", token: mgrToken, body: submit,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "the form is not published"}),
		},
		{
			name: "role not assigned", method: http.MethodPost, path: "/v1/forms/" + open.ID + "/responses", token: app.token(t, other), body: submit,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "you do not have permission to respond to this form"}),
		},
		{
			name: "required field", method: http.MethodPost, path: "/v1/forms/" + open.ID + "/responses", token: mgrToken,
			body:     []byte(`{"responses": {"summary": "IA aplicada"}, "status": "enviado"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"project": "this field is required"}`),
		},
		{
			name: "unknown field", method: http.MethodPost, path: "/v1/forms/" + open.ID + "/responses", token: mgrToken,
			body:     []byte(`{"responses": {"budget": 1000}, "status": "borrador"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"budget": "unknown field"}`),
		},
		{name: "can respond", path: "/v1/forms/" + open.ID + "/can-respond", token: mgrToken, wantData: []byte(`{"can_respond": true}`)},
		{name: "submit", method: http.MethodPost, path: "/v1/forms/" + open.ID + "/responses", token: mgrToken, body: submit, wantCode: http.StatusCreated},
		{
			name: "already responded", method: http.MethodPost, path: "/v1/forms/" + open.ID + "/responses", token: mgrToken, body: submit,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "you have already responded to this form"}),
		},
		{name: "cannot respond twice", path: "/v1/forms/" + open.ID + "/can-respond", token: mgrToken, wantData: []byte(`{"can_respond": false}`)},
	}
	app.run(t, tests)

	var mine form.Response
	t.Run("mine", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/forms/"+open.ID+"/responses/mine", mgrToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &mine)
		assert.Equal(t, manager.ID, mine.UserID)
		assert.Equal(t, user.RoleManager, mine.UserRole)
		assert.Equal(t, "2030-2031", mine.AcademicYearID)
		assert.Equal(t, 1, mine.Version)
		assert.True(t, mine.IsSubmitted())
	})

	t.Run("submitted responses are final", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/forms/responses/"+mine.ID, mgrToken, submit)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "submitted responses cannot be modified"}`, rec.Body.String())
	})

	t.Run("responses visibility", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/forms/responses/"+mine.ID, app.token(t, other))
		assert.Equal(t, http.StatusOK, rec.Code, "coordinators read every response")

		outsider := app.createUser(t, "Pepe", "pepe", user.RoleManager)
		rec = app.do(http.MethodGet, "/v1/forms/responses/"+mine.ID, app.token(t, outsider))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = app.do(http.MethodGet, "/v1/forms/"+open.ID+"/responses", app.token(t, outsider))
		assert.JSONEq(t, `[]`, rec.Body.String())

		rec = app.do(http.MethodGet, "/v1/forms/"+open.ID+"/responses", coordToken)
		var all []form.Response
		decode(t, rec, &all)
		assert.Len(t, all, 1)
	})
}

func Test_formAPI_sync(t *testing.T) {
	app := setup(t)
	coordinator := app.createUser(t, "Eva", "eva", user.RoleGeneralCoordinator)
	manager := app.createUser(t, "Ana", "ana", user.RoleManager)
	coordToken, mgrToken := app.token(t, coordinator), app.token(t, manager)

	open := app.createForm(t, coordToken, newFormBody(t, form.StatusPublished, func(nf *form.NewForm) {
		nf.AllowResponseModification = true
	}))

	rec := app.do(http.MethodPost, "/v1/forms/sync?academic_year_id=2030-2031", mgrToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var drafts []form.Response
	decode(t, rec, &drafts)
	require.Len(t, drafts, 1)
	assert.Equal(t, open.ID, drafts[0].FormID)
	assert.Equal(t, form.ResponseDraft, drafts[0].Status)

	t.Run("idempotent", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/forms/sync?academic_year_id=2030-2031", mgrToken)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("no active academic year", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/forms/sync", mgrToken)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("submit the draft", func(t *testing.T) {
		body := []byte(`{"responses": {"project": "Aula del futuro"}, "status": "enviado"}`)
		rec := app.do(http.MethodPut, "/v1/forms/responses/"+drafts[0].ID, app.token(t, coordinator), body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "only the owner updates")

		rec = app.do(http.MethodPut, "/v1/forms/responses/"+drafts[0].ID, mgrToken, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var r form.Response
		decode(t, rec, &r)
		assert.Equal(t, 2, r.Version)
		assert.True(t, r.IsSubmitted())
	})
}

func Test_formAPI_reports(t *testing.T) {
	app := setup(t)
	coordinator := app.createUser(t, "Eva", "eva", user.RoleGeneralCoordinator)
	manager := app.createUser(t, "Ana", "ana", user.RoleManager)
	coordToken, mgrToken := app.token(t, coordinator), app.token(t, manager)
	f := app.createForm(t, coordToken, newFormBody(t, form.StatusPublished))

	tests := []httpTest{
		{name: "no template yet", path: "/v1/forms/" + f.ID + "/report-template", token: coordToken, wantCode: http.StatusNotFound},
		{
			name: "unknown mapping", method: http.MethodPut, path: "/v1/forms/" + f.ID + "/report-template", token: coordToken,
			body:     []byte(`{"fields": ["titulo"], "mappings": {"titulo": "budget"}}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"mappings": "unknown form field \"budget\""}`),
		},
		{
			name: "set template", method: http.MethodPut, path: "/v1/forms/" + f.ID + "/report-template", token: coordToken,
			body: []byte(`{"file_name": "memoria.docx", "fields": ["titulo", "fecha"], "mappings": {"titulo": "project"}, "auto_generate": true}`),
		},
		{name: "managers cannot read templates", path: "/v1/forms/" + f.ID + "/report-template", token: mgrToken, wantCode: http.StatusForbidden},
	}
	app.run(t, tests)

	rec := app.do(http.MethodPost, "/v1/forms/"+f.ID+"/responses", mgrToken, []byte(`{"responses": {"project": "Aula del futuro"}, "status": "enviado"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var r form.Response
	decode(t, rec, &r)

	t.Run("auto generated on submission", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/forms/"+f.ID+"/reports", coordToken)
		var reports []form.Report
		decode(t, rec, &reports)
		require.Len(t, reports, 1)
		assert.Equal(t, r.ID, reports[0].ResponseID)
		assert.Equal(t, map[string]string{"titulo": "Aula del futuro", "fecha": ""}, reports[0].Values)
	})

	t.Run("report emailed to the responder", func(t *testing.T) {
		sent := emailsvc.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, manager.Email, sent[0].To[0].Address)
		assert.Equal(t, "Informe generado: "+f.Title, sent[0].Subject)
		assert.Contains(t, sent[0].TextContent, f.Title)

		require.Len(t, sent[0].Attachments, 1)
		at := sent[0].Attachments[0]
		assert.Equal(t, "informe-"+r.ID+".txt", at.Filename)
		assert.Equal(t, "text/plain; charset=utf-8", at.ContentType)
		content, err := base64.StdEncoding.DecodeString(at.Content.String())
		require.NoError(t, err)
		assert.Equal(t, "titulo: Aula del futuro\nfecha: \n", string(content))
	})

	t.Run("generate on demand", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/forms/responses/"+r.ID+"/report", coordToken)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = app.do(http.MethodGet, "/v1/forms/"+f.ID+"/reports", coordToken)
		var reports []form.Report
		decode(t, rec, &reports)
		assert.Len(t, reports, 2)
		assert.Len(t, emailsvc.Sent(), 2)
	})

	t.Run("can respond reflects the form", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/forms/"+f.ID+"/can-respond", mgrToken)
		var resp echoapi.CanRespondResponse
		decode(t, rec, &resp)
		assert.False(t, resp.CanRespond)
	})
}
