package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// thumbnail is the front matter image reference
type thumbnail struct {
	Path string `yaml:"path"`
	Alt  string `yaml:"alt"`
}

// frontMatter is the fixed-key Jekyll front matter block. Field order here is
// the serialization order.
type frontMatter struct {
	Title      string    `yaml:"title"`
	Date       string    `yaml:"date"`
	Categories []string  `yaml:"categories"`
	Tags       []string  `yaml:"tags"`
	Pin        bool      `yaml:"pin"`
	Math       bool      `yaml:"math"`
	Mermaid    bool      `yaml:"mermaid"`
	Toc        bool      `yaml:"toc"`
	Comments   bool      `yaml:"comments"`
	Summary    string    `yaml:"summary"`
	Image      thumbnail `yaml:"image"`
}

// Publisher runs the publication pipeline: it pulls pending records from the
// workspace and drives each one through render, metadata resolution, asset
// rehosting, document write and the status flip. Records are processed
// sequentially and one record's failure never aborts the run.
type Publisher struct {
	workspace Workspace
	renderer  BodyRenderer
	resolver  *MetadataResolver
	rehoster  *AssetRehoster
	settings  *Settings
	dryRun    bool
}

// NewPublisher creates a publisher with explicit collaborators
func NewPublisher(workspace Workspace, renderer BodyRenderer, resolver *MetadataResolver, rehoster *AssetRehoster, settings *Settings) *Publisher {
	return &Publisher{
		workspace: workspace,
		renderer:  renderer,
		resolver:  resolver,
		rehoster:  rehoster,
		settings:  settings,
	}
}

// SetDryRun makes the publisher render and resolve without writing documents,
// downloading assets or flipping statuses.
func (p *Publisher) SetDryRun(dryRun bool) {
	p.dryRun = dryRun
}

// Run processes every record currently pending publication.
func (p *Publisher) Run(ctx context.Context) (*RunSummary, error) {
	records, err := p.workspace.Query(ctx, p.settings.PendingStatus)
	if err != nil {
		return nil, fmt.Errorf("querying pending records: %w", err)
	}

	log.Printf("Processing %d pending records...", len(records))

	summary := &RunSummary{}
	for i, rec := range records {
		log.Printf("[%d/%d] Processing: %s", i+1, len(records), rec.Title)
		result := p.publishRecord(ctx, rec)
		summary.Results = append(summary.Results, result)

		switch result.Status {
		case PublishSuccess:
			summary.Succeeded++
			if len(result.Degraded) > 0 {
				summary.Degraded++
				log.Printf("✓ Generated (degraded): %s (%d issues)", result.Filename, len(result.Degraded))
			} else {
				log.Printf("✓ Generated: %s", result.Filename)
			}
		case PublishFailed:
			summary.Failed++
			log.Printf("✗ Failed %s: %v", rec.Title, result.Err)
		}
	}

	log.Printf("Done: %d succeeded, %d failed, %d degraded", summary.Succeeded, summary.Failed, summary.Degraded)
	return summary, nil
}

// publishRecord drives one record to a terminal state. Only a body render
// failure is fatal; everything downstream degrades instead.
func (p *Publisher) publishRecord(ctx context.Context, rec Record) PublishResult {
	result := PublishResult{RecordID: rec.ID, Title: rec.Title}

	log.Printf("  → Rendering body...")
	body, err := p.renderer.RenderBody(ctx, rec)
	if err != nil {
		result.Status = PublishFailed
		result.Err = fmt.Errorf("rendering body: %w", err)
		return result
	}

	log.Printf("  → Resolving metadata...")
	meta := p.resolver.Resolve(ctx, rec, body)
	debugLog("slug=%s (%s) summary source=%s", meta.Slug, meta.SlugSource, meta.SummarySource)

	if !p.dryRun {
		log.Printf("  → Rehosting assets...")
		var assets []RehostedAsset
		body, assets = p.rehoster.Rehost(ctx, body, meta.Slug)
		for _, asset := range assets {
			if asset.Err != nil {
				result.Degraded = append(result.Degraded, fmt.Sprintf("asset %s: %v", asset.OriginalURL, asset.Err))
			}
		}
	}

	filename := p.documentPath(rec, meta.Slug)
	result.Filename = filename

	if !p.dryRun {
		log.Printf("  → Saving to: %s", filename)
		if err := p.writeDocument(filename, rec, meta, body); err != nil {
			result.Status = PublishFailed
			result.Err = err
			return result
		}

		if rec.HasStatus {
			update := map[string]string{"Status": p.settings.PublishedStatus}
			if err := p.workspace.UpdateFields(ctx, rec.ID, update); err != nil {
				// The document exists and the path is deterministic, so the
				// next run reprocesses this record and overwrites it.
				result.Degraded = append(result.Degraded, fmt.Sprintf("status update: %v", err))
				log.Printf("  ✗ Status update failed for %s: %v", rec.ID, err)
			}
		}
	}

	result.Status = PublishSuccess
	return result
}

// documentPath is a pure function of the publish date and slug. Records
// sharing both will overwrite each other, matching the overwrite-on-rerun
// semantics.
func (p *Publisher) documentPath(rec Record, slug string) string {
	name := fmt.Sprintf("%s-%s.md", rec.PublishDate.Format("2006-01-02"), slug)
	return filepath.Join(p.settings.OutputDirectory, name)
}

// writeDocument assembles front matter and body and writes the file,
// overwriting silently.
func (p *Publisher) writeDocument(filename string, rec Record, meta ResolvedMetadata, body string) error {
	fm := p.buildFrontMatter(rec, meta)

	fmBytes, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("marshaling front matter: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	content := fmt.Sprintf("---\n%s---\n\n%s", fmBytes, body)
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filename, err)
	}
	return nil
}

func (p *Publisher) buildFrontMatter(rec Record, meta ResolvedMetadata) frontMatter {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	category := rec.Category
	if category == "" {
		category = p.settings.DefaultCategory
	}

	return frontMatter{
		Title:      rec.Title,
		Date:       fmt.Sprintf("%s 00:00:00 %s", rec.PublishDate.Format("2006-01-02"), p.settings.TimezoneOffset),
		Categories: []string{category},
		Tags:       tags,
		Pin:        false,
		Math:       true,
		Mermaid:    true,
		Toc:        true,
		Comments:   true,
		Summary:    meta.Summary,
		Image:      thumbnail{Path: p.settings.DefaultThumbnail, Alt: "thumbnail"},
	}
}
