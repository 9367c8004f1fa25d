package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// Workspace is the source-store capability the pipeline depends on: fetch
// records matching a status and update named fields of a record.
type Workspace interface {
	Query(ctx context.Context, status string) ([]Record, error)
	UpdateFields(ctx context.Context, recordID string, fields map[string]string) error
}

// Property aliases, in priority order. Pages authored in different templates
// expose the same field under different names; the first alias present wins.
var (
	titleAliases     = []string{"Name", "Title"}
	dateAliases      = []string{"Date", "Published"}
	slugAliases      = []string{"Slug"}
	summaryAliases   = []string{"Summary", "Description"}
	tagsAliases      = []string{"Tags"}
	categoryAliases  = []string{"Category"}
	statusAliases    = []string{"Status"}
	sourceURLAliases = []string{"Source URL", "URL"}
)

// NotionWorkspace adapts a Notion database to the Workspace interface.
type NotionWorkspace struct {
	client     *notionapi.Client
	databaseID notionapi.DatabaseID
	pageSize   int
}

// NewNotionWorkspace creates a workspace backed by a Notion database
func NewNotionWorkspace(apiKey, databaseID string) *NotionWorkspace {
	return &NotionWorkspace{
		client:     notionapi.NewClient(notionapi.Token(apiKey)),
		databaseID: notionapi.DatabaseID(databaseID),
		pageSize:   100,
	}
}

// Query returns every record whose status property equals status, following
// pagination cursors until the result set is complete.
func (w *NotionWorkspace) Query(ctx context.Context, status string) ([]Record, error) {
	var records []Record
	var cursor notionapi.Cursor

	for {
		resp, err := w.client.Database.Query(ctx, w.databaseID, &notionapi.DatabaseQueryRequest{
			Filter: notionapi.PropertyFilter{
				Property: "Status",
				Status:   &notionapi.StatusFilterCondition{Equals: status},
			},
			StartCursor: cursor,
			PageSize:    w.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("querying database %s: %w", w.databaseID, err)
		}

		for i := range resp.Results {
			records = append(records, recordFromPage(&resp.Results[i]))
		}

		if !resp.HasMore {
			return records, nil
		}
		cursor = resp.NextCursor
	}
}

// UpdateFields applies a partial update to the page. The Status key maps to
// the page's status property; every other key is written as rich text.
func (w *NotionWorkspace) UpdateFields(ctx context.Context, recordID string, fields map[string]string) error {
	props := notionapi.Properties{}
	for name, value := range fields {
		if name == "Status" {
			props[name] = notionapi.StatusProperty{
				Status: notionapi.Status{Name: value},
			}
			continue
		}
		props[name] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{Text: &notionapi.Text{Content: value}},
			},
		}
	}

	_, err := w.client.Page.Update(ctx, notionapi.PageID(recordID), &notionapi.PageUpdateRequest{
		Properties: props,
	})
	if err != nil {
		return fmt.Errorf("updating page %s: %w", recordID, err)
	}
	return nil
}

// recordFromPage resolves property aliases and defaults into a Record.
func recordFromPage(page *notionapi.Page) Record {
	rec := Record{
		ID:          page.ID.String(),
		Title:       "No Title",
		PublishDate: time.Now(),
		Category:    "General",
		Tags:        []string{},
	}

	if title := firstTitle(page.Properties, titleAliases); title != "" {
		rec.Title = title
	}
	if date, ok := firstDate(page.Properties, dateAliases); ok {
		rec.PublishDate = date
	}
	rec.Slug = firstRichText(page.Properties, slugAliases)
	rec.Summary = firstRichText(page.Properties, summaryAliases)
	if category := firstSelect(page.Properties, categoryAliases); category != "" {
		rec.Category = category
	}
	if tags, ok := firstMultiSelect(page.Properties, tagsAliases); ok {
		rec.Tags = tags
	}
	if status, ok := firstStatus(page.Properties, statusAliases); ok {
		rec.Status = status
		rec.HasStatus = true
	}
	rec.SourceURL = firstURL(page.Properties, sourceURLAliases)

	return rec
}

func firstTitle(props notionapi.Properties, aliases []string) string {
	for _, name := range aliases {
		if p, ok := props[name].(*notionapi.TitleProperty); ok {
			if text := plainText(p.Title); text != "" {
				return text
			}
		}
	}
	// Last resort: a title-typed property under any other name.
	for _, prop := range props {
		if p, ok := prop.(*notionapi.TitleProperty); ok {
			if text := plainText(p.Title); text != "" {
				return text
			}
		}
	}
	return ""
}

func firstRichText(props notionapi.Properties, aliases []string) string {
	for _, name := range aliases {
		if p, ok := props[name].(*notionapi.RichTextProperty); ok {
			if text := plainText(p.RichText); text != "" {
				return text
			}
		}
	}
	return ""
}

func firstDate(props notionapi.Properties, aliases []string) (time.Time, bool) {
	for _, name := range aliases {
		if p, ok := props[name].(*notionapi.DateProperty); ok {
			if p.Date != nil && p.Date.Start != nil {
				return time.Time(*p.Date.Start), true
			}
		}
	}
	return time.Time{}, false
}

func firstSelect(props notionapi.Properties, aliases []string) string {
	for _, name := range aliases {
		if p, ok := props[name].(*notionapi.SelectProperty); ok {
			if p.Select.Name != "" {
				return p.Select.Name
			}
		}
	}
	return ""
}

func firstMultiSelect(props notionapi.Properties, aliases []string) ([]string, bool) {
	for _, name := range aliases {
		if p, ok := props[name].(*notionapi.MultiSelectProperty); ok {
			tags := make([]string, 0, len(p.MultiSelect))
			for _, opt := range p.MultiSelect {
				tags = append(tags, opt.Name)
			}
			return tags, true
		}
	}
	return nil, false
}

func firstStatus(props notionapi.Properties, aliases []string) (string, bool) {
	for _, name := range aliases {
		if p, ok := props[name].(*notionapi.StatusProperty); ok {
			return p.Status.Name, true
		}
	}
	return "", false
}

func firstURL(props notionapi.Properties, aliases []string) string {
	for _, name := range aliases {
		if p, ok := props[name].(*notionapi.URLProperty); ok && p.URL != "" {
			return p.URL
		}
	}
	return ""
}

// plainText flattens rich text runs into one string
func plainText(runs []notionapi.RichText) string {
	var b strings.Builder
	for _, run := range runs {
		if run.PlainText != "" {
			b.WriteString(run.PlainText)
		} else if run.Text != nil {
			b.WriteString(run.Text.Content)
		}
	}
	return strings.TrimSpace(b.String())
}
