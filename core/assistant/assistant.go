package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/form"
	"github.com/redinnovafp/backend/core/settings"
)

type OutputType string

// Output types
const (
	OutputReport    OutputType = "report"
	OutputDashboard OutputType = "dashboard"
)

var (
	NowFunc = time.Now // mockable

	ErrAPIKeyMissing = core.NewValidationError(errors.New("the OpenAI API key is not configured"))
	// ErrGeneration hides the completion failure from API clients.
	ErrGeneration = errors.New("error generating the content")

	systemPrompts = map[OutputType]string{
		OutputReport:    "Eres un experto en análisis de datos y generación de informes. Tu tarea es analizar los datos proporcionados y generar un informe detallado y profesional.",
		OutputDashboard: "Eres un experto en visualización de datos y diseño de dashboards. Tu tarea es analizar los datos y proponer un dashboard efectivo y útil.",
	}
	closingInstructions = map[OutputType]string{
		OutputReport:    "Genera el informe en formato Markdown.",
		OutputDashboard: "Genera la especificación del dashboard en formato JSON.",
	}

	templates = map[OutputType][]Template{
		OutputReport: {
			{
				Name:     "Análisis General",
				Template: "Analiza los datos proporcionados y genera un informe detallado que incluya:\n\n1. Resumen ejecutivo\n2. Principales hallazgos\n3. Tendencias identificadas\n4. Conclusiones y recomendaciones",
			},
			{
				Name:     "Comparativa",
				Template: "Realiza un análisis comparativo de los datos, destacando:\n\n1. Similitudes y diferencias\n2. Patrones relevantes\n3. Áreas de mejora\n4. Mejores prácticas identificadas",
			},
		},
		OutputDashboard: {
			{
				Name:     "KPIs",
				Template: "Analiza los datos y sugiere un dashboard con los siguientes elementos:\n\n1. KPIs principales\n2. Gráficos relevantes\n3. Tablas de datos importantes\n4. Filtros recomendados",
			},
			{
				Name:     "Tendencias",
				Template: "Diseña un dashboard enfocado en tendencias que incluya:\n\n1. Gráficos de evolución temporal\n2. Indicadores de cambio\n3. Predicciones\n4. Análisis comparativo",
			},
		},
	}
)

type (
	Template struct {
		Name     string `json:"name"`
		Template string `json:"template"`
	}

	// DataFile is an additional tabular file uploaded along the forms.
	DataFile struct {
		Name    string                   `json:"name" validate:"required,notblank"`
		Records []map[string]interface{} `json:"data"`
	}

	Request struct {
		OutputType OutputType `json:"output_type" validate:"required,oneof=report dashboard"`
		Prompt     string     `json:"prompt" validate:"required,notblank"`
		FormIDs    []string   `json:"form_ids"`
		Files      []DataFile `json:"files" validate:"dive"`
	}

	Result struct {
		Type      OutputType `json:"type"`
		Content   string     `json:"content"`
		Timestamp time.Time  `json:"timestamp"`
	}

	// FormSource loads the forms & responses summarized in the prompt.
	FormSource interface {
		Get(ctx context.Context, id string) (form.Form, error)
		ResponsesByForm(ctx context.Context, formID string) ([]form.Response, error)
	}

	Service struct {
		forms    FormSource
		ai       core.Completer
		settings settings.Provider
		validate *validator.Validate
		logger   core.Logger
	}

	formSummary struct {
		Form      string   `json:"formulario"`
		Fields    []string `json:"campos"`
		Responses int      `json:"respuestas"`
	}

	fileSummary struct {
		File    string   `json:"archivo"`
		Records int      `json:"registros"`
		Fields  []string `json:"campos"`
	}
)

// Templates returns the built-in prompt templates of the output type.
func Templates(t OutputType) []Template {
	return append([]Template{}, templates[t]...)
}

func NewService(forms FormSource, ai core.Completer, sp settings.Provider, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{forms: forms, ai: ai, settings: sp, validate: validate, logger: logger}
}

func (req *Request) Validate(validate *validator.Validate) error {
	req.Prompt = core.CleanString(req.Prompt)
	req.FormIDs = core.CleanStrings(req.FormIDs)
	return validate.Struct(req)
}

// Generate asks the completion model for a report or a dashboard built from the requested data.
func (svc *Service) Generate(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(svc.validate); err != nil {
		return Result{}, err
	}
	apiKey := svc.settings.Current().OpenAIAPIKey
	if apiKey == "" {
		return Result{}, ErrAPIKeyMissing
	}

	userPrompt, err := svc.userPrompt(ctx, req)
	if err != nil {
		return Result{}, err
	}
	content, err := svc.ai.Complete(ctx, core.Completion{
		APIKey: apiKey,
		System: systemPrompts[req.OutputType],
		User:   userPrompt,
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("generating %s: %v", req.OutputType, err), err)
		return Result{}, ErrGeneration
	}
	return Result{Type: req.OutputType, Content: content, Timestamp: NowFunc().UTC()}, nil
}

func (svc *Service) userPrompt(ctx context.Context, req Request) (string, error) {
	forms := make([]formSummary, 0, len(req.FormIDs))
	for _, id := range req.FormIDs {
		f, err := svc.forms.Get(ctx, id)
		if err != nil {
			return "", err
		}
		responses, err := svc.forms.ResponsesByForm(ctx, id)
		if err != nil {
			return "", err
		}
		labels := make([]string, 0, len(f.Fields))
		for _, fld := range f.Fields {
			labels = append(labels, fld.Label)
		}
		forms = append(forms, formSummary{Form: f.Title, Fields: labels, Responses: len(responses)})
	}

	files := make([]fileSummary, 0, len(req.Files))
	for _, file := range req.Files {
		fields := []string{}
		if len(file.Records) > 0 {
			for k := range file.Records[0] {
				fields = append(fields, k)
			}
			sort.Strings(fields)
		}
		files = append(files, fileSummary{File: file.Name, Records: len(file.Records), Fields: fields})
	}

	formsJSON, err := json.MarshalIndent(forms, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding forms")
	}
	filesJSON, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encoding files")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Instrucciones: %s\n\n", req.Prompt)
	b.WriteString("Datos disponibles:\n\n")
	fmt.Fprintf(&b, "Formularios:\n%s\n\n", formsJSON)
	fmt.Fprintf(&b, "Archivos adicionales:\n%s\n\n", filesJSON)
	b.WriteString(closingInstructions[req.OutputType])
	return b.String(), nil
}
