package templates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/bookwell/outlooksync/internal/booking/domain"
	"github.com/google/uuid"
)

// Template entry names. A language-specific variant carries the
// language as suffix, e.g. "mail_subject_de".
const (
	EntrySubject = "mail_subject"
	EntryBody    = "mail_body"
)

// ErrTemplateNotFound is returned when neither the language-specific
// nor the plain entry exists.
var ErrTemplateNotFound = errors.New("template entry not found")

// Store provides raw template text per tenant. Missing entries are
// reported as "", nil.
type Store interface {
	Get(ctx context.Context, tenantID uuid.UUID, templateID, entry string) (string, error)
}

// Renderer renders tenant notification templates. Placeholders use Go
// template syntax over a flat string map, e.g. {{.number}}.
type Renderer struct {
	store Store
}

// NewRenderer creates a template renderer.
func NewRenderer(store Store) *Renderer {
	return &Renderer{store: store}
}

// RenderSubject renders the subject entry of a template.
func (r *Renderer) RenderSubject(ctx context.Context, tenantID uuid.UUID, templateID, language string, data map[string]string) (string, error) {
	return r.render(ctx, tenantID, templateID, EntrySubject, language, data)
}

// RenderBody renders the body entry of a template.
func (r *Renderer) RenderBody(ctx context.Context, tenantID uuid.UUID, templateID, language string, data map[string]string) (string, error) {
	return r.render(ctx, tenantID, templateID, EntryBody, language, data)
}

// render resolves the entry text, preferring the language-specific
// variant, and executes it against the data map.
func (r *Renderer) render(ctx context.Context, tenantID uuid.UUID, templateID, entry, language string, data map[string]string) (string, error) {
	text, err := r.lookup(ctx, tenantID, templateID, entry, language)
	if err != nil {
		return "", err
	}

	tmpl, err := template.New(entry).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s/%s: %w", templateID, entry, err)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render template %s/%s: %w", templateID, entry, err)
	}
	return out.String(), nil
}

func (r *Renderer) lookup(ctx context.Context, tenantID uuid.UUID, templateID, entry, language string) (string, error) {
	if language != "" {
		text, err := r.store.Get(ctx, tenantID, templateID, entry+"_"+language)
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}
	}
	text, err := r.store.Get(ctx, tenantID, templateID, entry)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, templateID, entry)
	}
	return text, nil
}

// SettingsStore reads template text from the tenant settings table,
// keyed as template.<id>.<entry>.
type SettingsStore struct {
	settings domain.SettingsRepository
}

// NewSettingsStore creates a template store backed by tenant settings.
func NewSettingsStore(settings domain.SettingsRepository) *SettingsStore {
	return &SettingsStore{settings: settings}
}

// Get returns the raw template text, or "" when the entry is unset.
func (s *SettingsStore) Get(ctx context.Context, tenantID uuid.UUID, templateID, entry string) (string, error) {
	return s.settings.Get(ctx, tenantID, "template."+templateID+"."+entry)
}

// StaticStore serves templates from a fixed map. Used in tests and
// development setups.
type StaticStore struct {
	entries map[string]string
}

// NewStaticStore creates a static template store. Keys are
// "<templateID>/<entry>".
func NewStaticStore(entries map[string]string) *StaticStore {
	return &StaticStore{entries: entries}
}

// Get returns the raw template text, or "" when the entry is unset.
func (s *StaticStore) Get(_ context.Context, _ uuid.UUID, templateID, entry string) (string, error) {
	return s.entries[templateID+"/"+entry], nil
}
