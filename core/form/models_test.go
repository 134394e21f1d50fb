package form

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/user"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

var testForm = Form{
	ID:    "f1",
	Title: "Memoria anual",
	Fields: []Field{
		{ID: "project", Label: "Proyecto", Type: "text", Required: true},
		{ID: "topics", Label: "Temas", Type: "multiselect", Required: true, Options: []string{"IA", "FP"}},
		{ID: "summary", Label: "Resumen", Type: "textarea"},
	},
}

func TestNewForm_Validate(t *testing.T) {
	validate := newValidator()

	valid := func(mutate func(nf *NewForm)) NewForm {
		nf := NewForm{
			Title:         "  Memoria anual ",
			Status:        StatusDraft,
			AssignedRoles: []string{" " + user.RoleManager, ""},
			Fields:        append([]Field{}, testForm.Fields...),
		}
		if mutate != nil {
			mutate(&nf)
		}
		return nf
	}

	t.Run("valid", func(t *testing.T) {
		nf := valid(nil)
		require.NoError(t, nf.Validate(validate))
		assert.Equal(t, "Memoria anual", nf.Title)
		assert.Equal(t, []string{user.RoleManager}, nf.AssignedRoles)
	})

	tests := []struct {
		name   string
		mutate func(nf *NewForm)
	}{
		{name: "blank title", mutate: func(nf *NewForm) { nf.Title = " " }},
		{name: "unknown status", mutate: func(nf *NewForm) { nf.Status = "archivado" }},
		{name: "unknown role", mutate: func(nf *NewForm) { nf.AssignedRoles = []string{"alumno"} }},
		{name: "unknown field type", mutate: func(nf *NewForm) { nf.Fields[0].Type = "slider" }},
		{name: "field without label", mutate: func(nf *NewForm) { nf.Fields[0].Label = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nf := valid(tt.mutate)
			assert.Error(t, nf.Validate(validate))
		})
	}

	t.Run("duplicate field id", func(t *testing.T) {
		nf := valid(func(nf *NewForm) { nf.Fields[2].ID = "project" })
		want := core.NewValidationError(nil, core.FieldError{Field: "fields", Error: `duplicate field id "project"`})
		assert.Equal(t, want, nf.Validate(validate))
	})
}

func TestNewResponse_Validate(t *testing.T) {
	validate := newValidator()

	tests := []struct {
		name    string
		nr      NewResponse
		wantErr error
	}{
		{name: "empty draft", nr: NewResponse{Status: ResponseDraft}},
		{name: "partial draft", nr: NewResponse{Status: ResponseDraft, Values: map[string]interface{}{"summary": "..."}}},
		{
			name:    "unknown field",
			nr:      NewResponse{Status: ResponseDraft, Values: map[string]interface{}{"budget": 10.0}},
			wantErr: core.NewValidationError(nil, core.FieldError{Field: "budget", Error: "unknown field"}),
		},
		{
			name: "required fields on submission",
			nr:   NewResponse{Status: ResponseSubmitted, Values: map[string]interface{}{"project": "  ", "topics": []interface{}{}}},
			wantErr: core.NewValidationError(nil,
				core.FieldError{Field: "project", Error: "this field is required"},
				core.FieldError{Field: "topics", Error: "this field is required"},
			),
		},
		{name: "submitted", nr: NewResponse{Status: ResponseSubmitted, Values: map[string]interface{}{"project": "Aula IA", "topics": []interface{}{"IA"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nr.Validate(validate, testForm)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, tt.nr.Values)
		})
	}

	t.Run("unknown status", func(t *testing.T) {
		nr := NewResponse{Status: "archivado"}
		assert.Error(t, nr.Validate(validate, testForm))
	})
}

func TestNewReportTemplate_Validate(t *testing.T) {
	validate := newValidator()

	nrt := NewReportTemplate{Fields: []string{" proyecto ", "resumen"}, Mappings: map[string]string{"proyecto": "project"}}
	require.NoError(t, nrt.Validate(validate, testForm))
	assert.Equal(t, []string{"proyecto", "resumen"}, nrt.Fields)

	nrt = NewReportTemplate{Fields: []string{"proyecto"}, Mappings: map[string]string{"centro": "school"}}
	want := core.NewValidationError(nil,
		core.FieldError{Field: "mappings", Error: `unknown template field "centro"`},
		core.FieldError{Field: "mappings", Error: `unknown form field "school"`},
	)
	assert.Equal(t, want, nrt.Validate(validate, testForm))

	nrt = NewReportTemplate{}
	assert.Error(t, nrt.Validate(validate, testForm))
}

func Test_formatValue(t *testing.T) {
	tests := []struct {
		name string
		v    interface{}
		want string
	}{
		{name: "nil", want: ""},
		{name: "string", v: "Aula IA", want: "Aula IA"},
		{name: "true", v: true, want: "Sí"},
		{name: "false", v: false, want: "No"},
		{name: "integer", v: 12.0, want: "12"},
		{name: "decimal", v: 12.5, want: "12.5"},
		{name: "list", v: []interface{}{"IA", 3.0, true}, want: "IA, 3, Sí"},
		{name: "other", v: 7, want: "7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.v))
		})
	}
}

func TestForm_helpers(t *testing.T) {
	f := testForm
	f.AssignedRoles = []string{user.RoleManager}
	assert.True(t, f.IsAssignedTo(user.RoleManager))
	assert.False(t, f.IsAssignedTo(user.RoleGeneralCoordinator))

	fld, ok := f.Field("summary")
	assert.True(t, ok)
	assert.Equal(t, "Resumen", fld.Label)
	_, ok = f.Field("budget")
	assert.False(t, ok)

	filter := ResponseFilter{FormID: "f1"}
	assert.True(t, filter.Match(Response{FormID: "f1", UserID: "u"}))
	assert.False(t, filter.Match(Response{FormID: "f2"}))
}

func TestReport_Text(t *testing.T) {
	r := Report{ResponseID: "r1", Values: map[string]string{"titulo": "Aula del futuro", "centro": "IES Sur"}}
	assert.Equal(t, "centro: IES Sur\ntitulo: Aula del futuro\nfecha: \n", r.Text([]string{"centro", "titulo", "fecha"}))
	assert.Empty(t, r.Text(nil))
	assert.Equal(t, "informe-r1.txt", r.FileName())
}
