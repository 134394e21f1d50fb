package inmemdb

import (
	"context"

	"github.com/redinnovafp/backend/core/form"
)

type formRepository struct {
	db *DB
}

var _ form.Repository = (*formRepository)(nil)

func NewFormRepository(db *DB) form.Repository {
	return &formRepository{db: db}
}

func (repo *formRepository) CreateForm(_ context.Context, f form.Form) (form.Form, error) {
	repo.db.form.upsert(f.ID, f)
	return f, repo.db.changed(FormStorage)
}

func (repo *formRepository) GetFormByID(_ context.Context, id string) (form.Form, error) {
	if f, ok := repo.db.form.get(id); ok {
		return f, nil
	}
	return form.Form{}, form.ErrFormNotFound
}

func (repo *formRepository) QueryAllForms(_ context.Context) ([]form.Form, error) {
	return repo.db.form.filter(nil), nil
}

func (repo *formRepository) UpdateForm(_ context.Context, f form.Form) (form.Form, error) {
	if !repo.db.form.update(f.ID, f) {
		return form.Form{}, form.ErrFormNotFound
	}
	return f, repo.db.changed(FormStorage)
}

func (repo *formRepository) DeleteForm(_ context.Context, id string) error {
	if !repo.db.form.delete(id) {
		return form.ErrFormNotFound
	}
	return repo.db.changed(FormStorage)
}

func (repo *formRepository) CreateResponse(_ context.Context, r form.Response) (form.Response, error) {
	repo.db.response.upsert(r.ID, r)
	return r, repo.db.changed(FormStorage)
}

func (repo *formRepository) GetResponseByID(_ context.Context, id string) (form.Response, error) {
	if r, ok := repo.db.response.get(id); ok {
		return r, nil
	}
	return form.Response{}, form.ErrResponseNotFound
}

func (repo *formRepository) QueryResponses(_ context.Context, filter form.ResponseFilter) ([]form.Response, error) {
	return repo.db.response.filter(filter.Match), nil
}

func (repo *formRepository) UpdateResponse(_ context.Context, r form.Response) (form.Response, error) {
	if !repo.db.response.update(r.ID, r) {
		return form.Response{}, form.ErrResponseNotFound
	}
	return r, repo.db.changed(FormStorage)
}

func (repo *formRepository) DeleteResponsesByForm(_ context.Context, formID string) error {
	if repo.db.response.deleteWhere(func(r form.Response) bool { return r.FormID == formID }) == 0 {
		return nil
	}
	return repo.db.changed(FormStorage)
}

func (repo *formRepository) SaveReportTemplate(_ context.Context, tmpl form.ReportTemplate) error {
	repo.db.template.upsert(tmpl.FormID, tmpl)
	return repo.db.changed(FormStorage)
}

func (repo *formRepository) GetReportTemplate(_ context.Context, formID string) (form.ReportTemplate, error) {
	if tmpl, ok := repo.db.template.get(formID); ok {
		return tmpl, nil
	}
	return form.ReportTemplate{}, form.ErrTemplateNotFound
}

func (repo *formRepository) DeleteReportTemplate(_ context.Context, formID string) error {
	if !repo.db.template.delete(formID) {
		return form.ErrTemplateNotFound
	}
	return repo.db.changed(FormStorage)
}

func (repo *formRepository) CreateReport(_ context.Context, r form.Report) (form.Report, error) {
	repo.db.report.upsert(r.ID, r)
	return r, repo.db.changed(FormStorage)
}

func (repo *formRepository) QueryReports(_ context.Context, formID string) ([]form.Report, error) {
	return repo.db.report.filter(func(r form.Report) bool { return r.FormID == formID }), nil
}

func (repo *formRepository) DeleteReportsByForm(_ context.Context, formID string) error {
	if repo.db.report.deleteWhere(func(r form.Report) bool { return r.FormID == formID }) == 0 {
		return nil
	}
	return repo.db.changed(FormStorage)
}
