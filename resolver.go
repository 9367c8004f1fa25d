package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

// Enricher is a best-effort text-completion capability used to generate
// missing metadata. The resolver never trusts the response structure.
type Enricher interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// suggestion is the shape the enricher is asked to produce
type suggestion struct {
	Slug    string
	Summary string
}

// MetadataResolver resolves a record's slug and summary through a tiered
// fallback chain: the value already on the record, then the enrichment
// provider, then deterministic derivation from the title. The derived tier
// cannot fail, so resolution always yields a usable slug.
type MetadataResolver struct {
	enricher  Enricher
	workspace Workspace
	maxChars  int
}

// NewMetadataResolver creates a resolver with the given collaborators.
// maxChars bounds the body excerpt sent to the enricher.
func NewMetadataResolver(enricher Enricher, workspace Workspace, maxChars int) *MetadataResolver {
	if maxChars < minContentMaxChars {
		maxChars = minContentMaxChars
	}
	return &MetadataResolver{
		enricher:  enricher,
		workspace: workspace,
		maxChars:  maxChars,
	}
}

// Resolve never fails: worst case the slug is derived from the title and the
// summary stays empty. Existing values always win over enriched ones, and the
// winning slug is normalized so it is safe for paths.
func (r *MetadataResolver) Resolve(ctx context.Context, rec Record, body string) ResolvedMetadata {
	meta := ResolvedMetadata{
		Slug:          rec.Slug,
		Summary:       rec.Summary,
		SlugSource:    SourceExisting,
		SummarySource: SourceExisting,
	}

	if meta.Slug == "" || meta.Summary == "" {
		if got, ok := r.enrich(ctx, rec, body); ok {
			persist := map[string]string{}
			if meta.Slug == "" && got.Slug != "" {
				meta.Slug = got.Slug
				meta.SlugSource = SourceEnriched
				persist["Slug"] = got.Slug
			}
			if meta.Summary == "" && got.Summary != "" {
				meta.Summary = got.Summary
				meta.SummarySource = SourceEnriched
				persist["Summary"] = got.Summary
			}
			if len(persist) > 0 && r.workspace != nil {
				if err := r.workspace.UpdateFields(ctx, rec.ID, persist); err != nil {
					log.Printf("  ✗ Persisting enriched metadata for %s: %v", rec.ID, err)
				}
			}
		}
	}

	if meta.Slug == "" {
		meta.Slug = rec.Title
		meta.SlugSource = SourceDerived
	}
	if meta.Summary == "" {
		meta.SummarySource = SourceDerived
	}

	// Whatever tier won, the slug must be filesystem-safe. Normalization is
	// idempotent, so an already-clean value round-trips unchanged.
	meta.Slug = normalizeSlug(meta.Slug, rec.PublishDate)

	return meta
}

// enrich makes one provider call and parses the response defensively. Any
// failure is logged and reported as "nothing", never raised.
func (r *MetadataResolver) enrich(ctx context.Context, rec Record, body string) (suggestion, bool) {
	if r.enricher == nil {
		return suggestion{}, false
	}

	excerpt := body
	if len(excerpt) > r.maxChars {
		excerpt = excerpt[:r.maxChars] + "..."
	}
	prompt := fmt.Sprintf("Title: %s\n\nBody excerpt:\n%s", rec.Title, excerpt)

	raw, err := r.enricher.Complete(ctx, prompt)
	if err != nil {
		log.Printf("  ✗ Enrichment failed for %q: %v", rec.Title, err)
		return suggestion{}, false
	}

	got, err := parseSuggestion(raw)
	if err != nil {
		log.Printf("  ✗ Enrichment response unusable for %q: %v", rec.Title, err)
		return suggestion{}, false
	}
	return got, true
}

// parseSuggestion extracts the first balanced {...} span from the response
// and requires string slug and summary keys. Extraneous wrapping text around
// the object is tolerated; anything else is a failure.
func parseSuggestion(raw string) (suggestion, error) {
	span, err := extractJSONObject(raw)
	if err != nil {
		return suggestion{}, err
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return suggestion{}, fmt.Errorf("parsing response JSON: %w", err)
	}

	slug, ok := fields["slug"].(string)
	if !ok {
		return suggestion{}, fmt.Errorf("response missing string %q key", "slug")
	}
	summary, ok := fields["summary"].(string)
	if !ok {
		return suggestion{}, fmt.Errorf("response missing string %q key", "summary")
	}

	return suggestion{
		Slug:    strings.TrimSpace(slug),
		Summary: strings.TrimSpace(summary),
	}, nil
}

// extractJSONObject finds the first balanced top-level JSON object in text,
// tracking string literals so braces inside values don't unbalance the scan.
func extractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", fmt.Errorf("unbalanced JSON object in response")
}

// AnthropicEnricher implements Enricher with a structured-output prompt
// against the Anthropic API.
type AnthropicEnricher struct {
	apiKey   string
	settings EnrichmentSettings
}

// NewAnthropicEnricher creates an enricher using the given API key and settings
func NewAnthropicEnricher(apiKey string, settings EnrichmentSettings) *AnthropicEnricher {
	return &AnthropicEnricher{apiKey: apiKey, settings: settings}
}

// Complete sends one completion request and returns the raw response text.
func (e *AnthropicEnricher) Complete(ctx context.Context, prompt string) (string, error) {
	settings := types.RequestSettings{
		Model:       e.settings.Model,
		MaxTokens:   e.settings.MaxTokens,
		Temperature: e.settings.Temperature,
	}

	response, err := anthropic.PromptWithSettings(
		strings.TrimSpace(enricherSystemPrompt),
		prompt,
		strings.TrimSpace(enricherSchema),
		e.apiKey,
		settings,
	)
	if err != nil {
		return "", fmt.Errorf("enrichment request: %w", err)
	}

	if len(response.Content) == 0 {
		return "", fmt.Errorf("no content in enrichment response")
	}
	return response.Content[0].Text, nil
}
