package assistant_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redinnovafp/backend/core/assistant"
	"github.com/redinnovafp/backend/core/form"
	"github.com/redinnovafp/backend/core/settings"
	"github.com/redinnovafp/backend/core/user"
	aisvc "github.com/redinnovafp/backend/services/ai"
	inmemdb "github.com/redinnovafp/backend/storage/database/inmem"
	testutil "github.com/redinnovafp/backend/tests"
)

func TestTemplates(t *testing.T) {
	reports := assistant.Templates(assistant.OutputReport)
	require.Len(t, reports, 2)
	assert.Equal(t, "Análisis General", reports[0].Name)
	assert.Len(t, assistant.Templates(assistant.OutputDashboard), 2)
	assert.Empty(t, assistant.Templates("slides"))

	reports[0].Name = "changed"
	assert.Equal(t, "Análisis General", assistant.Templates(assistant.OutputReport)[0].Name)
}

func TestService_Generate(t *testing.T) {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)
	validate, _ := testutil.NewValidator()

	forms := form.NewService(inmemdb.NewFormRepository(inmemdb.Open()), nil, nil, validate, logger)
	ctx := user.NewContext(context.Background(), user.User{ID: "c", Name: "Olga", Roles: []string{user.RoleGeneralCoordinator}})
	f, err := forms.Create(ctx, form.NewForm{
		Title:  "Memoria anual",
		Status: form.StatusPublished,
		Fields: []form.Field{{ID: "project", Label: "Proyecto", Type: "text"}},
	})
	require.NoError(t, err)

	withKey := settings.Defaults()
	withKey.OpenAIAPIKey = "sk-app"
	ai := &aisvc.CompleterMock{Content: "# Informe"}
	svc := assistant.NewService(forms, ai, settings.Static(withKey), validate, logger)

	req := assistant.Request{
		OutputType: assistant.OutputReport,
		Prompt:     "  Resume las memorias  ",
		FormIDs:    []string{f.ID},
		Files: []assistant.DataFile{{
			Name:    "centros.csv",
			Records: []map[string]interface{}{{"zona": "norte", "centro": "CIFP Txurdinaga"}},
		}},
	}
	res, err := svc.Generate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, assistant.OutputReport, res.Type)
	assert.Equal(t, "# Informe", res.Content)
	assert.False(t, res.Timestamp.IsZero())

	require.Len(t, ai.Completions, 1)
	c := ai.Completions[0]
	assert.Equal(t, "sk-app", c.APIKey)
	assert.Contains(t, c.System, "informes")
	assert.Contains(t, c.User, "Instrucciones: Resume las memorias")
	assert.Contains(t, c.User, `"formulario": "Memoria anual"`)
	assert.Contains(t, c.User, `"respuestas": 0`)
	assert.Contains(t, c.User, "\"campos\": [\n      \"centro\",\n      \"zona\"\n    ]")
	assert.Contains(t, c.User, "Genera el informe en formato Markdown.")

	t.Run("invalid request", func(t *testing.T) {
		_, err := svc.Generate(ctx, assistant.Request{OutputType: "slides", Prompt: "x"})
		assert.Error(t, err)
		_, err = svc.Generate(ctx, assistant.Request{OutputType: assistant.OutputDashboard, Prompt: " "})
		assert.Error(t, err)
	})

	t.Run("unknown form", func(t *testing.T) {
		_, err := svc.Generate(ctx, assistant.Request{OutputType: assistant.OutputDashboard, Prompt: "x", FormIDs: []string{"unknown"}})
		assert.ErrorIs(t, err, form.ErrFormNotFound)
	})

	t.Run("completion failure", func(t *testing.T) {
		ai.Err = errors.New("quota exceeded")
		defer func() { ai.Err = nil }()
		_, err := svc.Generate(ctx, assistant.Request{OutputType: assistant.OutputDashboard, Prompt: "x"})
		assert.ErrorIs(t, err, assistant.ErrGeneration)
	})

	t.Run("no api key", func(t *testing.T) {
		svc := assistant.NewService(forms, ai, settings.Static(settings.Defaults()), validate, logger)
		_, err := svc.Generate(ctx, assistant.Request{OutputType: assistant.OutputReport, Prompt: "x"})
		assert.ErrorIs(t, err, assistant.ErrAPIKeyMissing)
	})
}
