package observatory

import (
	"context"
	"fmt"
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

type Type string

// Entry types
const (
	TypeMethodology Type = "methodology"
	TypeTechnology  Type = "technology"
	TypePedagogy    Type = "pedagogy"
	TypeBusiness    Type = "business"
)

type Status string

// Entry statuses
const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusRejected  Status = "rejected"
)

const DefaultPrompt = "Analiza la siguiente innovación educativa y genera un resumen y tags relevantes."

var (
	NowFunc = time.Now // mockable

	DefaultTags = []string{"IA", "Innovación", "FP"}

	ErrNotFound        = errors.New("observatory entry not found")
	ErrConfigNotFound  = errors.New("observatory config not found")
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrDisabled        = core.NewValidationError(errors.New("the observatory is disabled"))
)

type (
	Entry struct {
		ID          string     `json:"id"`
		SubnetID    string     `json:"subnet_id"`
		Type        Type       `json:"type"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		URL         string     `json:"url"`
		Status      Status     `json:"status"`
		AIContent   string     `json:"ai_content,omitempty"`
		AISummary   string     `json:"ai_summary,omitempty"`
		AITags      []string   `json:"ai_tags,omitempty"`
		CreatedBy   string     `json:"created_by"`
		ReviewedBy  string     `json:"reviewed_by,omitempty"`
		ReviewNotes string     `json:"review_notes,omitempty"`
		CreatedAt   time.Time  `json:"created_at"`
		UpdatedAt   time.Time  `json:"updated_at"`
		PublishedAt *time.Time `json:"published_at,omitempty"`
	}

	NewEntry struct {
		SubnetID    string `json:"subnet_id" validate:"required,notblank"`
		Type        Type   `json:"type" validate:"required,oneof=methodology technology pedagogy business"`
		Title       string `json:"title" validate:"required,notblank"`
		Description string `json:"description" validate:"required,notblank"`
		URL         string `json:"url" validate:"omitempty,url"`
	}

	UpdateEntry struct {
		SubnetID    *string `json:"subnet_id" validate:"omitempty,notblank"`
		Type        *Type   `json:"type" validate:"omitempty,oneof=methodology technology pedagogy business"`
		Title       *string `json:"title" validate:"omitempty,notblank"`
		Description *string `json:"description" validate:"omitempty,notblank"`
		URL         *string `json:"url" validate:"omitempty,url"`
	}

	Config struct {
		Enabled        bool     `json:"enabled"`
		AIEnabled      bool     `json:"ai_enabled"`
		AutoPublish    bool     `json:"auto_publish"`
		Moderators     []string `json:"moderators"`
		OpenAIAPIKey   string   `json:"openai_api_key,omitempty"`
		PromptTemplate string   `json:"prompt_template,omitempty"`
	}

	Repository interface {
		CreateEntry(ctx context.Context, e Entry) (Entry, error)
		GetEntryByID(ctx context.Context, id string) (Entry, error)
		QueryAllEntries(ctx context.Context) ([]Entry, error)
		UpdateEntry(ctx context.Context, e Entry) (Entry, error)
		DeleteEntry(ctx context.Context, id string) error

		// GetConfig returns ErrConfigNotFound when the config was never saved.
		GetConfig(ctx context.Context) (Config, error)
		SaveConfig(ctx context.Context, conf Config) error
	}

	Service struct {
		mu       sync.Mutex
		repo     Repository
		ai       core.Completer
		validate *validator.Validate
		logger   core.Logger
	}
)

func DefaultConfig() Config {
	return Config{Enabled: true, Moderators: []string{}}
}

func (ne *NewEntry) Validate(validate *validator.Validate) error {
	ne.SubnetID = core.CleanString(ne.SubnetID)
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	ne.URL = core.CleanString(ne.URL)
	return validate.Struct(ne)
}

func (ue *UpdateEntry) Validate(validate *validator.Validate) error {
	for _, s := range []*string{ue.SubnetID, ue.Title, ue.Description, ue.URL} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(ue)
}

func NewService(repo Repository, ai core.Completer, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{repo: repo, ai: ai, validate: validate, logger: logger}
}

// Config returns the stored config or DefaultConfig.
func (svc *Service) Config(ctx context.Context) (Config, error) {
	conf, err := svc.repo.GetConfig(ctx)
	if err != nil {
		if errors.Cause(err) == ErrConfigNotFound {
			return DefaultConfig(), nil
		}
		return Config{}, errors.Wrap(err, "loading observatory config")
	}
	return conf, nil
}

// UpdateConfig replaces the config. An empty API key keeps the stored one.
func (svc *Service) UpdateConfig(ctx context.Context, conf Config) (Config, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	curr, err := svc.Config(ctx)
	if err != nil {
		return Config{}, err
	}
	if conf.OpenAIAPIKey == "" {
		conf.OpenAIAPIKey = curr.OpenAIAPIKey
	}
	conf.Moderators = core.CleanStrings(conf.Moderators)
	if conf.Moderators == nil {
		conf.Moderators = []string{}
	}
	conf.PromptTemplate = core.CleanString(conf.PromptTemplate)
	if err = svc.repo.SaveConfig(ctx, conf); err != nil {
		return Config{}, errors.Wrap(err, "saving observatory config")
	}
	return conf, nil
}

// AddEntry stores a new entry, enriched with AI generated content when enabled.
// AI failures never prevent the entry from being stored.
func (svc *Service) AddEntry(ctx context.Context, ne NewEntry) (Entry, error) {
	usr, ok := user.FromContext(ctx)
	if !ok {
		return Entry{}, ErrUnauthenticated
	}
	if err := ne.Validate(svc.validate); err != nil {
		return Entry{}, err
	}
	conf, err := svc.Config(ctx)
	if err != nil {
		return Entry{}, err
	}
	if !conf.Enabled {
		return Entry{}, ErrDisabled
	}

	now := NowFunc().UTC()
	e := Entry{
		ID:          uuid.New().String(),
		SubnetID:    ne.SubnetID,
		Type:        ne.Type,
		Title:       ne.Title,
		Description: ne.Description,
		URL:         ne.URL,
		Status:      StatusPending,
		CreatedBy:   usr.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if conf.AutoPublish {
		e.Status = StatusPublished
		e.PublishedAt = &now
	}

	if conf.AIEnabled && conf.OpenAIAPIKey != "" {
		content, err := svc.ai.Complete(ctx, core.Completion{
			APIKey: conf.OpenAIAPIKey,
			System: promptOrDefault(conf.PromptTemplate),
			User:   fmt.Sprintf("Título: %s\nDescripción: %s\nTipo: %s", e.Title, e.Description, e.Type),
		})
		if err != nil {
			svc.logger.Error(fmt.Sprintf("generating AI content for observatory entry %q: %v", e.Title, err), err, usr)
		} else {
			e.AIContent = content
			e.AISummary, e.AITags = parseAIContent(content)
		}
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if e, err = svc.repo.CreateEntry(ctx, e); err != nil {
		return Entry{}, errors.Wrap(err, "creating observatory entry")
	}
	return e, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Entry, error) {
	return svc.repo.GetEntryByID(ctx, id)
}

// List returns every entry, newest first.
func (svc *Service) List(ctx context.Context) ([]Entry, error) {
	entries, err := svc.repo.QueryAllEntries(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying observatory entries")
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

// Feed returns the published entries, most recently published first.
func (svc *Service) Feed(ctx context.Context) ([]Entry, error) {
	entries, err := svc.repo.QueryAllEntries(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying observatory entries")
	}
	feed := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Status == StatusPublished {
			feed = append(feed, e)
		}
	}
	sort.SliceStable(feed, func(i, j int) bool { return publishedAt(feed[i]).After(publishedAt(feed[j])) })
	return feed, nil
}

func (svc *Service) UpdateEntry(ctx context.Context, id string, ue UpdateEntry) (Entry, error) {
	if err := ue.Validate(svc.validate); err != nil {
		return Entry{}, err
	}
	return svc.mutate(ctx, id, func(e *Entry) {
		if ue.SubnetID != nil {
			e.SubnetID = *ue.SubnetID
		}
		if ue.Type != nil {
			e.Type = *ue.Type
		}
		if ue.Title != nil {
			e.Title = *ue.Title
		}
		if ue.Description != nil {
			e.Description = *ue.Description
		}
		if ue.URL != nil {
			e.URL = *ue.URL
		}
	})
}

// DeleteEntry removes the entry. Deleting an unknown entry is a no-op.
func (svc *Service) DeleteEntry(ctx context.Context, id string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if err := svc.repo.DeleteEntry(ctx, id); err != nil && errors.Cause(err) != ErrNotFound {
		return errors.Wrap(err, "deleting observatory entry")
	}
	return nil
}

// PublishEntry publishes the entry on behalf of the authenticated reviewer.
func (svc *Service) PublishEntry(ctx context.Context, id string) (Entry, error) {
	reviewer, ok := user.FromContext(ctx)
	if !ok {
		return Entry{}, ErrUnauthenticated
	}
	return svc.mutate(ctx, id, func(e *Entry) {
		now := NowFunc().UTC()
		e.Status = StatusPublished
		e.PublishedAt = &now
		e.ReviewedBy = reviewer.ID
	})
}

// RejectEntry rejects the entry on behalf of the authenticated reviewer.
func (svc *Service) RejectEntry(ctx context.Context, id, notes string) (Entry, error) {
	reviewer, ok := user.FromContext(ctx)
	if !ok {
		return Entry{}, ErrUnauthenticated
	}
	return svc.mutate(ctx, id, func(e *Entry) {
		e.Status = StatusRejected
		e.ReviewedBy = reviewer.ID
		e.ReviewNotes = core.CleanString(notes)
	})
}

func (svc *Service) mutate(ctx context.Context, id string, fn func(e *Entry)) (Entry, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	e, err := svc.repo.GetEntryByID(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	fn(&e)
	e.UpdatedAt = NowFunc().UTC()
	if e, err = svc.repo.UpdateEntry(ctx, e); err != nil {
		return Entry{}, errors.Wrap(err, "updating observatory entry")
	}
	return e, nil
}

func promptOrDefault(prompt string) string {
	if prompt = core.CleanString(prompt); prompt != "" {
		return prompt
	}
	return DefaultPrompt
}

// parseAIContent returns the first non-empty line as summary & the tags listed on a "Tags:" line.
func parseAIContent(content string) (string, []string) {
	var summary string
	var tags []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if summary == "" {
			summary = line
		}
		if len(line) > 5 && strings.EqualFold(line[:5], "tags:") {
			tags = core.CleanStrings(strings.Split(line[5:], ","))
		}
	}
	if len(tags) == 0 {
		tags = append([]string{}, DefaultTags...)
	}
	return summary, tags
}

func publishedAt(e Entry) time.Time {
	if e.PublishedAt != nil {
		return *e.PublishedAt
	}
	return e.UpdatedAt
}
