package form

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/user"
)

var (
	NowFunc = time.Now // mockable

	ErrFormNotFound     = errors.New("form not found")
	ErrResponseNotFound = errors.New("response not found")
	ErrTemplateNotFound = errors.New("report template not found")
	ErrUnauthenticated  = errors.New("user not authenticated")

	// validation errors
	ErrFormClosed             = core.NewValidationError(errors.New("the form is closed"))
	ErrFormNotPublished       = core.NewValidationError(errors.New("the form is not published"))
	ErrNotAcceptingResponses  = core.NewValidationError(errors.New("the form is not accepting responses"))
	ErrNoPermission           = core.NewValidationError(errors.New("you do not have permission to respond to this form"))
	ErrAlreadyResponded       = core.NewValidationError(errors.New("you have already responded to this form"))
	ErrModificationNotAllowed = core.NewValidationError(errors.New("submitted responses cannot be modified"))
)

type (
	Repository interface {
		CreateForm(ctx context.Context, f Form) (Form, error)
		GetFormByID(ctx context.Context, id string) (Form, error)
		QueryAllForms(ctx context.Context) ([]Form, error)
		UpdateForm(ctx context.Context, f Form) (Form, error)
		DeleteForm(ctx context.Context, id string) error

		CreateResponse(ctx context.Context, r Response) (Response, error)
		GetResponseByID(ctx context.Context, id string) (Response, error)
		QueryResponses(ctx context.Context, filter ResponseFilter) ([]Response, error)
		UpdateResponse(ctx context.Context, r Response) (Response, error)
		DeleteResponsesByForm(ctx context.Context, formID string) error

		SaveReportTemplate(ctx context.Context, tmpl ReportTemplate) error
		GetReportTemplate(ctx context.Context, formID string) (ReportTemplate, error)
		DeleteReportTemplate(ctx context.Context, formID string) error

		CreateReport(ctx context.Context, r Report) (Report, error)
		QueryReports(ctx context.Context, formID string) ([]Report, error)
		DeleteReportsByForm(ctx context.Context, formID string) error
	}

	// UserDirectory resolves the responders reports are emailed to.
	UserDirectory interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		mu       sync.Mutex // serializes mutations
		repo     Repository
		users    UserDirectory
		mailer   core.EmailService
		validate *validator.Validate
		logger   core.Logger
	}

	reportMailData struct {
		Form        string
		Responder   string
		GeneratedAt string
	}
)

func NewService(repo Repository, users UserDirectory, mailer core.EmailService, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{repo: repo, users: users, mailer: mailer, validate: validate, logger: logger}
}

// Create stores the form on behalf of the authenticated user then syncs its draft responses.
func (svc *Service) Create(ctx context.Context, nf NewForm) (Form, error) {
	usr, ok := user.FromContext(ctx)
	if !ok {
		return Form{}, ErrUnauthenticated
	}
	if err := nf.Validate(svc.validate); err != nil {
		return Form{}, err
	}

	now := NowFunc().UTC()
	f := nf.apply(Form{
		ID:            uuid.New().String(),
		CreatedBy:     usr.ID,
		CreatedByName: usr.FullName(),
		CreatedAt:     now,
		UpdatedAt:     now,
	})

	svc.mu.Lock()
	f, err := svc.repo.CreateForm(ctx, f)
	svc.mu.Unlock()
	if err != nil {
		return Form{}, errors.Wrap(err, "creating form")
	}

	if f.AcademicYearID != "" {
		if _, err = svc.SyncResponses(ctx, f.AcademicYearID); err != nil {
			svc.logger.Warn(fmt.Sprintf("form %s: syncing responses: %v", f.ID, err), err)
		}
	}
	return f, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Form, error) {
	return svc.repo.GetFormByID(ctx, id)
}

// List returns the forms, newest first.
func (svc *Service) List(ctx context.Context) ([]Form, error) {
	forms, err := svc.repo.QueryAllForms(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying forms")
	}
	sort.SliceStable(forms, func(i, j int) bool { return forms[i].CreatedAt.After(forms[j].CreatedAt) })
	return forms, nil
}

// Update replaces the editable attributes of the form.
func (svc *Service) Update(ctx context.Context, id string, nf NewForm) (Form, error) {
	if err := nf.Validate(svc.validate); err != nil {
		return Form{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	f, err := svc.repo.GetFormByID(ctx, id)
	if err != nil {
		return Form{}, err
	}
	f = nf.apply(f)
	f.UpdatedAt = NowFunc().UTC()
	if f, err = svc.repo.UpdateForm(ctx, f); err != nil {
		return Form{}, errors.Wrap(err, "updating form")
	}
	return f, nil
}

// Delete removes the form with its responses, report template & reports.
func (svc *Service) Delete(ctx context.Context, id string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if err := svc.repo.DeleteResponsesByForm(ctx, id); err != nil {
		return errors.Wrap(err, "deleting responses")
	}
	if err := svc.repo.DeleteReportsByForm(ctx, id); err != nil {
		return errors.Wrap(err, "deleting reports")
	}
	if err := svc.repo.DeleteReportTemplate(ctx, id); err != nil && errors.Cause(err) != ErrTemplateNotFound {
		return errors.Wrap(err, "deleting report template")
	}
	if err := svc.repo.DeleteForm(ctx, id); err != nil && errors.Cause(err) != ErrFormNotFound {
		return errors.Wrap(err, "deleting form")
	}
	return nil
}

// AddResponse records the authenticated user's response to the form.
func (svc *Service) AddResponse(ctx context.Context, formID string, nr NewResponse) (Response, error) {
	usr, ok := user.FromContext(ctx)
	if !ok {
		return Response{}, ErrUnauthenticated
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	f, err := svc.repo.GetFormByID(ctx, formID)
	if err != nil {
		return Response{}, err
	}
	switch {
	case f.Status == StatusClosed:
		return Response{}, ErrFormClosed
	case f.Status != StatusPublished:
		return Response{}, ErrFormNotPublished
	case !f.AcceptingResponses:
		return Response{}, ErrNotAcceptingResponses
	}
	if len(f.AssignedRoles) > 0 && !usr.HasAnyRole(f.AssignedRoles...) {
		return Response{}, ErrNoPermission
	}
	if !f.AllowMultipleResponses {
		submitted, err := svc.hasSubmitted(ctx, usr.ID, f.ID)
		if err != nil {
			return Response{}, err
		}
		if submitted {
			return Response{}, ErrAlreadyResponded
		}
	}
	if err = nr.Validate(svc.validate, f); err != nil {
		return Response{}, err
	}

	now := NowFunc().UTC()
	r := Response{
		ID:             uuid.New().String(),
		FormID:         f.ID,
		UserID:         usr.ID,
		UserName:       usr.FullName(),
		UserRole:       usr.MainRole(),
		AcademicYearID: f.AcademicYearID,
		Values:         nr.Values,
		Status:         nr.Status,
		Timestamp:      now,
		LastModified:   now,
		Version:        1,
	}
	if r, err = svc.repo.CreateResponse(ctx, r); err != nil {
		return Response{}, errors.Wrap(err, "creating response")
	}
	svc.autoGenerate(ctx, f, r)
	return r, nil
}

// UpdateResponse replaces the values of one of the authenticated user's responses.
func (svc *Service) UpdateResponse(ctx context.Context, id string, nr NewResponse) (Response, error) {
	usr, ok := user.FromContext(ctx)
	if !ok {
		return Response{}, ErrUnauthenticated
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, err := svc.repo.GetResponseByID(ctx, id)
	if err != nil {
		return Response{}, err
	}
	if r.UserID != usr.ID {
		return Response{}, ErrNoPermission
	}
	f, err := svc.repo.GetFormByID(ctx, r.FormID)
	if err != nil {
		return Response{}, err
	}
	if f.Status == StatusClosed {
		return Response{}, ErrFormClosed
	}
	if !f.AllowResponseModification && r.IsSubmitted() {
		return Response{}, ErrModificationNotAllowed
	}
	if err = nr.Validate(svc.validate, f); err != nil {
		return Response{}, err
	}

	now := NowFunc().UTC()
	r.Values = nr.Values
	if nr.Status == ResponseSubmitted && !r.IsSubmitted() {
		r.Timestamp = now
	}
	r.Status = nr.Status
	r.LastModified = now
	r.Version++
	if r, err = svc.repo.UpdateResponse(ctx, r); err != nil {
		return Response{}, errors.Wrap(err, "updating response")
	}
	svc.autoGenerate(ctx, f, r)
	return r, nil
}

func (svc *Service) GetResponse(ctx context.Context, id string) (Response, error) {
	return svc.repo.GetResponseByID(ctx, id)
}

// FormsByRole returns the published forms assigned to role, limited to academicYearID when set.
func (svc *Service) FormsByRole(ctx context.Context, role, academicYearID string) ([]Form, error) {
	forms, err := svc.List(ctx)
	if err != nil {
		return nil, err
	}
	assigned := make([]Form, 0)
	for _, f := range forms {
		if f.Status != StatusPublished || !f.IsAssignedTo(role) {
			continue
		}
		if academicYearID != "" && f.AcademicYearID != academicYearID {
			continue
		}
		assigned = append(assigned, f)
	}
	return assigned, nil
}

func (svc *Service) ResponsesByForm(ctx context.Context, formID string) ([]Response, error) {
	return svc.queryResponses(ctx, ResponseFilter{FormID: formID})
}

func (svc *Service) ResponsesByUser(ctx context.Context, userID, formID string) ([]Response, error) {
	return svc.queryResponses(ctx, ResponseFilter{FormID: formID, UserID: userID})
}

// ResponseByUserAndForm returns the latest response of userID to formID.
func (svc *Service) ResponseByUserAndForm(ctx context.Context, userID, formID string) (Response, error) {
	responses, err := svc.ResponsesByUser(ctx, userID, formID)
	if err != nil {
		return Response{}, err
	}
	if len(responses) == 0 {
		return Response{}, ErrResponseNotFound
	}
	return responses[len(responses)-1], nil
}

// CanUserRespond reports whether usr may add a response to the form right now.
func (svc *Service) CanUserRespond(ctx context.Context, usr user.User, formID string) (bool, error) {
	f, err := svc.repo.GetFormByID(ctx, formID)
	if err != nil {
		return false, err
	}
	if f.Status != StatusPublished || !f.AcceptingResponses {
		return false, nil
	}
	if len(f.AssignedRoles) > 0 && !usr.HasAnyRole(f.AssignedRoles...) {
		return false, nil
	}
	if f.AllowMultipleResponses {
		return true, nil
	}
	submitted, err := svc.hasSubmitted(ctx, usr.ID, f.ID)
	if err != nil {
		return false, err
	}
	return !submitted, nil
}

// SyncResponses creates a draft response for every published form of academicYearID assigned to the
// authenticated user's role that the user has not responded yet. It returns the drafts created.
func (svc *Service) SyncResponses(ctx context.Context, academicYearID string) ([]Response, error) {
	usr, ok := user.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	academicYearID = core.CleanString(academicYearID)
	if academicYearID == "" {
		return []Response{}, nil
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	forms, err := svc.repo.QueryAllForms(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying forms")
	}
	role := usr.MainRole()
	now := NowFunc().UTC()

	created := make([]Response, 0)
	for _, f := range forms {
		if f.Status != StatusPublished || f.AcademicYearID != academicYearID || !f.IsAssignedTo(role) {
			continue
		}
		existing, err := svc.repo.QueryResponses(ctx, ResponseFilter{FormID: f.ID, UserID: usr.ID})
		if err != nil {
			return nil, errors.Wrap(err, "querying responses")
		}
		if len(existing) > 0 {
			continue
		}
		r, err := svc.repo.CreateResponse(ctx, Response{
			ID:             uuid.New().String(),
			FormID:         f.ID,
			UserID:         usr.ID,
			UserName:       usr.FullName(),
			UserRole:       role,
			AcademicYearID: academicYearID,
			Values:         map[string]interface{}{},
			Status:         ResponseDraft,
			Timestamp:      now,
			LastModified:   now,
			Version:        1,
		})
		if err != nil {
			return nil, errors.Wrap(err, "creating draft response")
		}
		created = append(created, r)
	}
	return created, nil
}

// SetReportTemplate replaces the report template of the form.
func (svc *Service) SetReportTemplate(ctx context.Context, formID string, nrt NewReportTemplate) (ReportTemplate, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	f, err := svc.repo.GetFormByID(ctx, formID)
	if err != nil {
		return ReportTemplate{}, err
	}
	if err = nrt.Validate(svc.validate, f); err != nil {
		return ReportTemplate{}, err
	}

	tmpl := ReportTemplate{
		FormID:       f.ID,
		FileName:     core.CleanString(nrt.FileName),
		File:         nrt.File,
		Fields:       nrt.Fields,
		Mappings:     nrt.Mappings,
		AutoGenerate: nrt.AutoGenerate,
	}
	if tmpl.Mappings == nil {
		tmpl.Mappings = map[string]string{}
	}
	if err = svc.repo.SaveReportTemplate(ctx, tmpl); err != nil {
		return ReportTemplate{}, errors.Wrap(err, "saving report template")
	}
	return tmpl, nil
}

func (svc *Service) ReportTemplate(ctx context.Context, formID string) (ReportTemplate, error) {
	return svc.repo.GetReportTemplate(ctx, formID)
}

// GenerateReport renders the response through the report template of its form.
func (svc *Service) GenerateReport(ctx context.Context, responseID string) (Report, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, err := svc.repo.GetResponseByID(ctx, responseID)
	if err != nil {
		return Report{}, err
	}
	f, err := svc.repo.GetFormByID(ctx, r.FormID)
	if err != nil {
		return Report{}, err
	}
	tmpl, err := svc.repo.GetReportTemplate(ctx, r.FormID)
	if err != nil {
		return Report{}, err
	}
	return svc.generate(ctx, f, tmpl, r)
}

// Reports returns the reports generated for the form, oldest first.
func (svc *Service) Reports(ctx context.Context, formID string) ([]Report, error) {
	reports, err := svc.repo.QueryReports(ctx, formID)
	if err != nil {
		return nil, errors.Wrap(err, "querying reports")
	}
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].GeneratedAt.Before(reports[j].GeneratedAt) })
	return reports, nil
}

func (svc *Service) generate(ctx context.Context, f Form, tmpl ReportTemplate, r Response) (Report, error) {
	values := make(map[string]string, len(tmpl.Fields))
	for _, tmplField := range tmpl.Fields {
		values[tmplField] = ""
		if formField, ok := tmpl.Mappings[tmplField]; ok {
			values[tmplField] = formatValue(r.Values[formField])
		}
	}
	report, err := svc.repo.CreateReport(ctx, Report{
		ID:          uuid.New().String(),
		FormID:      r.FormID,
		ResponseID:  r.ID,
		Values:      values,
		GeneratedAt: NowFunc().UTC(),
	})
	if err != nil {
		return Report{}, errors.Wrap(err, "creating report")
	}
	svc.mailReport(ctx, f, tmpl, r, report)
	return report, nil
}

// mailReport sends the report to its responder as a text attachment, errors are logged.
func (svc *Service) mailReport(ctx context.Context, f Form, tmpl ReportTemplate, r Response, report Report) {
	if svc.mailer == nil || svc.users == nil {
		return
	}
	usr, err := svc.users.GetByID(ctx, r.UserID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("report %s: resolving responder %s: %v", report.ID, r.UserID, err), err, core.LogFields{"form": f.ID, "report": report.ID})
		return
	}
	if usr.Email == "" {
		return
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Informe generado: " + f.Title,
		TemplateName: "form_report",
		TemplateData: reportMailData{
			Form:        f.Title,
			Responder:   usr.FullName(),
			GeneratedAt: report.GeneratedAt.Format("02/01/2006 15:04"),
		},
	}
	if err = msg.Attach(strings.NewReader(report.Text(tmpl.Fields)), report.FileName(), "text/plain; charset=utf-8"); err != nil {
		svc.logger.Error(fmt.Sprintf("report %s: attaching: %v", report.ID, err), err, core.LogFields{"form": f.ID, "report": report.ID})
		return
	}
	svc.mailer.SendMessages(msg)
}

// autoGenerate generates a report of the submitted response when the form template asks for it.
// Failures are logged, the response is kept.
func (svc *Service) autoGenerate(ctx context.Context, f Form, r Response) {
	if !r.IsSubmitted() {
		return
	}
	tmpl, err := svc.repo.GetReportTemplate(ctx, f.ID)
	if err != nil {
		if errors.Cause(err) != ErrTemplateNotFound {
			svc.logger.Error(fmt.Sprintf("form %s: loading report template: %v", f.ID, err), err)
		}
		return
	}
	if !tmpl.AutoGenerate {
		return
	}
	if _, err = svc.generate(ctx, f, tmpl, r); err != nil {
		svc.logger.Error(fmt.Sprintf("form %s: generating report of response %s: %v", f.ID, r.ID, err), err, core.LogFields{"form": f.ID, "response": r.ID})
	}
}

func (svc *Service) hasSubmitted(ctx context.Context, userID, formID string) (bool, error) {
	responses, err := svc.repo.QueryResponses(ctx, ResponseFilter{FormID: formID, UserID: userID})
	if err != nil {
		return false, errors.Wrap(err, "querying responses")
	}
	for _, r := range responses {
		if r.IsSubmitted() {
			return true, nil
		}
	}
	return false, nil
}

func (svc *Service) queryResponses(ctx context.Context, filter ResponseFilter) ([]Response, error) {
	responses, err := svc.repo.QueryResponses(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying responses")
	}
	sort.SliceStable(responses, func(i, j int) bool { return responses[i].Timestamp.Before(responses[j].Timestamp) })
	return responses, nil
}
