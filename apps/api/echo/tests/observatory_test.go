package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/redinnovafp/backend/apps/api/echo"
	"github.com/redinnovafp/backend/core/observatory"
	"github.com/redinnovafp/backend/core/user"
)

const newEntryJSON = `{"subnet_id": "norte", "type": "technology", "title": "Gafas de realidad virtual", "description": "Uso de RV en talleres"}`

func (app *testApp) addEntry(t *testing.T, token string) observatory.Entry {
	rec := app.do(http.MethodPost, "/v1/observatory/entries", token, []byte(newEntryJSON))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var e observatory.Entry
	decode(t, rec, &e)
	return e
}

func Test_observatoryAPI_moderation(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "Eva", "eva", user.RoleGeneralCoordinator)
	author := app.createUser(t, "Ana", "ana", user.RoleManager)
	moderator := app.createUser(t, "Luis", "luis", user.RoleSubnetCoordinator)
	outsider := app.createUser(t, "Pepe", "pepe", user.RoleManager)
	adminToken, authorToken, modToken := app.token(t, admin), app.token(t, author), app.token(t, moderator)

	e := app.addEntry(t, authorToken)
	assert.Equal(t, observatory.StatusPending, e.Status)
	assert.Equal(t, author.ID, e.CreatedBy)
	assert.Empty(t, e.AIContent, "AI disabled by default")

	tests := []httpTest{
		{
			name: "invalid type", method: http.MethodPost, path: "/v1/observatory/entries", token: authorToken,
			body:     []byte(`{"subnet_id": "norte", "type": "other", "title": "X", "description": "Y"}`),
			wantCode: http.StatusBadRequest,
		},
		{name: "pending entries are hidden from the feed", path: "/v1/observatory/feed", token: authorToken, wantData: []byte(`[]`)},
		{name: "author reads the pending entry", path: "/v1/observatory/entries/" + e.ID, token: authorToken},
		{name: "outsiders do not", path: "/v1/observatory/entries/" + e.ID, token: app.token(t, outsider), wantCode: http.StatusNotFound},
		{name: "not a moderator yet", method: http.MethodPost, path: "/v1/observatory/entries/" + e.ID + "/publish", token: modToken, wantCode: http.StatusForbidden},
		{name: "only admins read the config", path: "/v1/observatory/config", token: modToken, wantCode: http.StatusForbidden},
		{
			name: "add a moderator", method: http.MethodPut, path: "/v1/observatory/config", token: adminToken,
			body: marshalObj(t, observatory.Config{Enabled: true, Moderators: []string{moderator.ID}, OpenAIAPIKey: "sk-test"}),
			wantData: marshalObj(t, echoapi.ConfigResponse{
				Config:          observatory.Config{Enabled: true, Moderators: []string{moderator.ID}},
				HasOpenAIAPIKey: true,
			}),
		},
		{name: "moderators list every entry", path: "/v1/observatory/entries", token: modToken},
		{name: "publish", method: http.MethodPost, path: "/v1/observatory/entries/" + e.ID + "/publish", token: modToken},
		{name: "unknown entry", method: http.MethodPost, path: "/v1/observatory/entries/unknown/publish", token: modToken, wantCode: http.StatusNotFound},
	}
	app.run(t, tests)

	t.Run("published entries reach the feed", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/observatory/feed", app.token(t, outsider))
		var feed []observatory.Entry
		decode(t, rec, &feed)
		require.Len(t, feed, 1)
		assert.Equal(t, moderator.ID, feed[0].ReviewedBy)
		assert.NotNil(t, feed[0].PublishedAt)
	})

	t.Run("reject", func(t *testing.T) {
		e := app.addEntry(t, authorToken)
		rec := app.do(http.MethodPost, "/v1/observatory/entries/"+e.ID+"/reject", adminToken, []byte(`{"notes": " Duplicada "}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var rejected observatory.Entry
		decode(t, rec, &rejected)
		assert.Equal(t, observatory.StatusRejected, rejected.Status)
		assert.Equal(t, "Duplicada", rejected.ReviewNotes)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			rec := app.do(http.MethodDelete, "/v1/observatory/entries/"+e.ID, modToken)
			assert.Equal(t, http.StatusNoContent, rec.Code)
		}
	})
}

func Test_observatoryAPI_ai(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "Eva", "eva", user.RoleGeneralCoordinator)
	author := app.createUser(t, "Ana", "ana", user.RoleManager)
	adminToken := app.token(t, admin)

	body := marshalObj(t, observatory.Config{Enabled: true, AIEnabled: true, AutoPublish: true, OpenAIAPIKey: "sk-test"})
	rec := app.do(http.MethodPut, "/v1/observatory/config", adminToken, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("enriched & auto published", func(t *testing.T) {
		e := app.addEntry(t, app.token(t, author))
		assert.Equal(t, observatory.StatusPublished, e.Status)
		assert.Equal(t, "Resumen de la innovación", e.AISummary)
		assert.Equal(t, []string{"IA", "FP"}, e.AITags)

		require.Len(t, app.ai.Completions, 1)
		assert.Equal(t, "sk-test", app.ai.Completions[0].APIKey)
		assert.Contains(t, app.ai.Completions[0].User, "Gafas de realidad virtual")
	})

	t.Run("empty key keeps the stored one", func(t *testing.T) {
		body := marshalObj(t, observatory.Config{Enabled: true, AIEnabled: true})
		rec := app.do(http.MethodPut, "/v1/observatory/config", adminToken, body)
		var conf echoapi.ConfigResponse
		decode(t, rec, &conf)
		assert.True(t, conf.HasOpenAIAPIKey)
		assert.Empty(t, conf.OpenAIAPIKey)
	})

	t.Run("disabled", func(t *testing.T) {
		rec := app.do(http.MethodPut, "/v1/observatory/config", adminToken, []byte(`{"enabled": false}`))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = app.do(http.MethodPost, "/v1/observatory/entries", app.token(t, author), []byte(newEntryJSON))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error": "the observatory is disabled"}`, rec.Body.String())
	})
}
