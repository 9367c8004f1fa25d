package main

import "time"

// Record is one content item pulled from the Notion workspace, with property
// aliases already resolved and defaults applied.
type Record struct {
	ID          string
	Title       string
	PublishDate time.Time
	Slug        string
	Summary     string
	Category    string
	Tags        []string
	Status      string
	HasStatus   bool
	SourceURL   string
}

// MetadataSource identifies which fallback tier produced a resolved value
type MetadataSource string

const (
	SourceExisting MetadataSource = "existing"
	SourceEnriched MetadataSource = "enriched"
	SourceDerived  MetadataSource = "derived"
)

// ResolvedMetadata is the outcome of slug/summary resolution for one record.
// Slug is always non-empty and filesystem-safe.
type ResolvedMetadata struct {
	Slug          string
	Summary       string
	SlugSource    MetadataSource
	SummarySource MetadataSource
}

// RehostedAsset records the outcome of one image occurrence during rehosting.
// LocalPath is empty when Err is set; the original URL was left in place.
type RehostedAsset struct {
	OriginalURL string
	LocalPath   string
	Err         error
}

// PublishStatus represents the outcome of publishing one record
type PublishStatus string

const (
	PublishSuccess PublishStatus = "success"
	PublishFailed  PublishStatus = "failed"
)

// PublishResult tracks the outcome of processing each record
type PublishResult struct {
	RecordID string
	Title    string
	Filename string
	Status   PublishStatus
	Degraded []string
	Err      error
}

// RunSummary aggregates the outcomes of one pipeline run.
type RunSummary struct {
	Results   []PublishResult
	Succeeded int
	Failed    int
	Degraded  int
}
