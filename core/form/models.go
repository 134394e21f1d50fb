package form

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/redinnovafp/backend/core"
)

type Status string

// Form statuses
const (
	StatusDraft     Status = "borrador"
	StatusPublished Status = "publicado"
	StatusClosed    Status = "cerrado"
)

type ResponseStatus string

// Response statuses
const (
	ResponseDraft     ResponseStatus = "borrador"
	ResponseSubmitted ResponseStatus = "enviado"
)

type (
	Field struct {
		ID       string   `json:"id" validate:"required,notblank"`
		Label    string   `json:"label" validate:"required,notblank"`
		Type     string   `json:"type" validate:"required,oneof=text textarea number date select multiselect checkbox radio file"`
		Required bool     `json:"required"`
		Options  []string `json:"options,omitempty"`
	}

	Form struct {
		ID                        string    `json:"id"`
		Title                     string    `json:"title"`
		Description               string    `json:"description"`
		Status                    Status    `json:"status"`
		AcceptingResponses        bool      `json:"accepting_responses"`
		AllowMultipleResponses    bool      `json:"allow_multiple_responses"`
		AllowResponseModification bool      `json:"allow_response_modification"`
		AssignedRoles             []string  `json:"assigned_roles"`
		AcademicYearID            string    `json:"academic_year_id"`
		Fields                    []Field   `json:"fields"`
		CreatedBy                 string    `json:"created_by"`
		CreatedByName             string    `json:"created_by_name"`
		CreatedAt                 time.Time `json:"created_at"`
		UpdatedAt                 time.Time `json:"updated_at"`
	}

	// NewForm is also used to replace a form on update.
	NewForm struct {
		Title                     string   `json:"title" validate:"required,notblank"`
		Description               string   `json:"description"`
		Status                    Status   `json:"status" validate:"required,oneof=borrador publicado cerrado"`
		AcceptingResponses        bool     `json:"accepting_responses"`
		AllowMultipleResponses    bool     `json:"allow_multiple_responses"`
		AllowResponseModification bool     `json:"allow_response_modification"`
		AssignedRoles             []string `json:"assigned_roles" validate:"omitempty,allroles"`
		AcademicYearID            string   `json:"academic_year_id"`
		Fields                    []Field  `json:"fields" validate:"dive"`
	}

	Response struct {
		ID             string                 `json:"id"`
		FormID         string                 `json:"form_id"`
		UserID         string                 `json:"user_id"`
		UserName       string                 `json:"user_name"`
		UserRole       string                 `json:"user_role"`
		AcademicYearID string                 `json:"academic_year_id"`
		Values         map[string]interface{} `json:"responses"`
		Status         ResponseStatus         `json:"status"`
		Timestamp      time.Time              `json:"response_timestamp"`
		LastModified   time.Time              `json:"last_modified_timestamp"`
		Version        int                    `json:"version"`
	}

	NewResponse struct {
		Values map[string]interface{} `json:"responses"`
		Status ResponseStatus         `json:"status" validate:"required,oneof=borrador enviado"`
	}

	ResponseFilter struct {
		FormID string
		UserID string
	}

	ReportTemplate struct {
		FormID       string            `json:"form_id"`
		FileName     string            `json:"file_name"`
		File         []byte            `json:"file"`
		Fields       []string          `json:"fields"`
		Mappings     map[string]string `json:"mappings"` // template field -> form field id
		AutoGenerate bool              `json:"auto_generate"`
	}

	NewReportTemplate struct {
		FileName     string            `json:"file_name"`
		File         []byte            `json:"file"`
		Fields       []string          `json:"fields" validate:"required,min=1,dive,notblank"`
		Mappings     map[string]string `json:"mappings"`
		AutoGenerate bool              `json:"auto_generate"`
	}

	Report struct {
		ID          string            `json:"id"`
		FormID      string            `json:"form_id"`
		ResponseID  string            `json:"response_id"`
		Values      map[string]string `json:"values"`
		GeneratedAt time.Time         `json:"generated_at"`
	}
)

// Text renders the report values one per line, in the template fields order.
func (r Report) Text(fields []string) string {
	var b strings.Builder
	for _, fld := range fields {
		fmt.Fprintf(&b, "%s: %s\n", fld, r.Values[fld])
	}
	return b.String()
}

func (r Report) FileName() string {
	return "informe-" + r.ResponseID + ".txt"
}

func (f Form) IsAssignedTo(role string) bool {
	return core.ContainsString(f.AssignedRoles, role)
}

// Field returns the form field with the given id.
func (f Form) Field(id string) (Field, bool) {
	for _, fld := range f.Fields {
		if fld.ID == id {
			return fld, true
		}
	}
	return Field{}, false
}

func (r Response) IsSubmitted() bool { return r.Status == ResponseSubmitted }

func (filter ResponseFilter) Match(r Response) bool {
	return (filter.FormID == "" || r.FormID == filter.FormID) &&
		(filter.UserID == "" || r.UserID == filter.UserID)
}

func (nf *NewForm) Validate(validate *validator.Validate) error {
	nf.Title = core.CleanString(nf.Title)
	nf.Description = core.CleanString(nf.Description)
	nf.AssignedRoles = core.CleanStrings(nf.AssignedRoles)
	if err := validate.Struct(nf); err != nil {
		return err
	}

	seen := make(map[string]bool, len(nf.Fields))
	for _, fld := range nf.Fields {
		if seen[fld.ID] {
			return core.NewValidationError(nil, core.FieldError{Field: "fields", Error: fmt.Sprintf("duplicate field id %q", fld.ID)})
		}
		seen[fld.ID] = true
	}
	return nil
}

func (nf NewForm) apply(f Form) Form {
	f.Title = nf.Title
	f.Description = nf.Description
	f.Status = nf.Status
	f.AcceptingResponses = nf.AcceptingResponses
	f.AllowMultipleResponses = nf.AllowMultipleResponses
	f.AllowResponseModification = nf.AllowResponseModification
	f.AssignedRoles = append([]string{}, nf.AssignedRoles...)
	f.AcademicYearID = nf.AcademicYearID
	f.Fields = append([]Field{}, nf.Fields...)
	return f
}

// Validate checks nr values against the fields of f. Required fields are only enforced on submission.
func (nr *NewResponse) Validate(validate *validator.Validate, f Form) error {
	if err := validate.Struct(nr); err != nil {
		return err
	}
	if nr.Values == nil {
		nr.Values = make(map[string]interface{})
	}

	var fields []core.FieldError
	for id := range nr.Values {
		if _, ok := f.Field(id); !ok {
			fields = append(fields, core.FieldError{Field: id, Error: "unknown field"})
		}
	}
	if nr.Status == ResponseSubmitted {
		for _, fld := range f.Fields {
			if fld.Required && isBlank(nr.Values[fld.ID]) {
				fields = append(fields, core.FieldError{Field: fld.ID, Error: "this field is required"})
			}
		}
	}
	if len(fields) > 0 {
		return core.NewValidationError(nil, fields...)
	}
	return nil
}

func (nrt *NewReportTemplate) Validate(validate *validator.Validate, f Form) error {
	nrt.Fields = core.CleanStrings(nrt.Fields)
	if err := validate.Struct(nrt); err != nil {
		return err
	}

	var fields []core.FieldError
	for tmplField, formField := range nrt.Mappings {
		if !core.ContainsString(nrt.Fields, tmplField) {
			fields = append(fields, core.FieldError{Field: "mappings", Error: fmt.Sprintf("unknown template field %q", tmplField)})
		}
		if _, ok := f.Field(formField); !ok {
			fields = append(fields, core.FieldError{Field: "mappings", Error: fmt.Sprintf("unknown form field %q", formField)})
		}
	}
	if len(fields) > 0 {
		return core.NewValidationError(nil, fields...)
	}
	return nil
}

func isBlank(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []interface{}:
		return len(val) == 0
	}
	return false
}

// formatValue renders a response value for a report.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "Sí"
		}
		return "No"
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%f", val), "0"), ".")
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, formatValue(item))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}
