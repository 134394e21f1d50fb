package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/redinnovafp/backend/core/form"
)

type formRepository struct {
	docs documents
}

var _ form.Repository = (*formRepository)(nil)

func NewFormRepository(db *sqlx.DB) form.Repository {
	return &formRepository{docs: documents{db: db}}
}

// trap maps errNoDocument to notFound
func trap(err, notFound error) error {
	if err == errNoDocument {
		return notFound
	}
	return err
}

func (repo formRepository) CreateForm(ctx context.Context, f form.Form) (form.Form, error) {
	return f, repo.docs.upsert(ctx, kindForm, documentKey{id: f.ID, ownerID: f.CreatedBy}, f)
}

func (repo formRepository) GetFormByID(ctx context.Context, id string) (form.Form, error) {
	var f form.Form
	if err := repo.docs.get(ctx, kindForm, id, &f); err != nil {
		return form.Form{}, trap(err, form.ErrFormNotFound)
	}
	return f, nil
}

func (repo formRepository) QueryAllForms(ctx context.Context) ([]form.Form, error) {
	forms := make([]form.Form, 0)
	err := repo.docs.list(ctx, kindForm, "", "", func(data types.JSONText) error {
		var f form.Form
		if err := data.Unmarshal(&f); err != nil {
			return err
		}
		forms = append(forms, f)
		return nil
	})
	return forms, err
}

func (repo formRepository) UpdateForm(ctx context.Context, f form.Form) (form.Form, error) {
	return f, trap(repo.docs.update(ctx, kindForm, f.ID, f), form.ErrFormNotFound)
}

func (repo formRepository) DeleteForm(ctx context.Context, id string) error {
	deleted, err := repo.docs.delete(ctx, kindForm, id)
	if err == nil && !deleted {
		return form.ErrFormNotFound
	}
	return err
}

func (repo formRepository) CreateResponse(ctx context.Context, r form.Response) (form.Response, error) {
	return r, repo.docs.upsert(ctx, kindFormResponse, documentKey{id: r.ID, parentID: r.FormID, ownerID: r.UserID}, r)
}

func (repo formRepository) GetResponseByID(ctx context.Context, id string) (form.Response, error) {
	var r form.Response
	if err := repo.docs.get(ctx, kindFormResponse, id, &r); err != nil {
		return form.Response{}, trap(err, form.ErrResponseNotFound)
	}
	return r, nil
}

func (repo formRepository) QueryResponses(ctx context.Context, filter form.ResponseFilter) ([]form.Response, error) {
	responses := make([]form.Response, 0)
	err := repo.docs.list(ctx, kindFormResponse, filter.FormID, filter.UserID, func(data types.JSONText) error {
		var r form.Response
		if err := data.Unmarshal(&r); err != nil {
			return err
		}
		responses = append(responses, r)
		return nil
	})
	return responses, err
}

func (repo formRepository) UpdateResponse(ctx context.Context, r form.Response) (form.Response, error) {
	return r, trap(repo.docs.update(ctx, kindFormResponse, r.ID, r), form.ErrResponseNotFound)
}

func (repo formRepository) DeleteResponsesByForm(ctx context.Context, formID string) error {
	return repo.docs.deleteByParent(ctx, kindFormResponse, formID)
}

func (repo formRepository) SaveReportTemplate(ctx context.Context, tmpl form.ReportTemplate) error {
	return repo.docs.upsert(ctx, kindReportTemplate, documentKey{id: tmpl.FormID, parentID: tmpl.FormID}, tmpl)
}

func (repo formRepository) GetReportTemplate(ctx context.Context, formID string) (form.ReportTemplate, error) {
	var tmpl form.ReportTemplate
	if err := repo.docs.get(ctx, kindReportTemplate, formID, &tmpl); err != nil {
		return form.ReportTemplate{}, trap(err, form.ErrTemplateNotFound)
	}
	return tmpl, nil
}

func (repo formRepository) DeleteReportTemplate(ctx context.Context, formID string) error {
	deleted, err := repo.docs.delete(ctx, kindReportTemplate, formID)
	if err == nil && !deleted {
		return form.ErrTemplateNotFound
	}
	return err
}

func (repo formRepository) CreateReport(ctx context.Context, r form.Report) (form.Report, error) {
	return r, repo.docs.upsert(ctx, kindReport, documentKey{id: r.ID, parentID: r.FormID}, r)
}

func (repo formRepository) QueryReports(ctx context.Context, formID string) ([]form.Report, error) {
	reports := make([]form.Report, 0)
	err := repo.docs.list(ctx, kindReport, formID, "", func(data types.JSONText) error {
		var r form.Report
		if err := data.Unmarshal(&r); err != nil {
			return err
		}
		reports = append(reports, r)
		return nil
	})
	return reports, err
}

func (repo formRepository) DeleteReportsByForm(ctx context.Context, formID string) error {
	return repo.docs.deleteByParent(ctx, kindReport, formID)
}
