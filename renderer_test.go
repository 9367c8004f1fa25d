package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBlockClient serves block children from a map, pageSize blocks at a time
type fakeBlockClient struct {
	children map[notionapi.BlockID][]notionapi.Block
	pageSize int
	err      error
}

func (f *fakeBlockClient) GetChildren(_ context.Context, id notionapi.BlockID, pagination *notionapi.Pagination) (*notionapi.GetChildrenResponse, error) {
	if f.err != nil {
		return nil, f.err
	}

	blocks := f.children[id]
	start := 0
	if pagination != nil && pagination.StartCursor != "" {
		start, _ = strconv.Atoi(string(pagination.StartCursor))
	}

	size := f.pageSize
	if size == 0 {
		size = len(blocks) - start
	}
	end := start + size
	if end >= len(blocks) {
		return &notionapi.GetChildrenResponse{Results: blocks[start:]}, nil
	}
	return &notionapi.GetChildrenResponse{
		Results:    blocks[start:end],
		HasMore:    true,
		NextCursor: strconv.Itoa(end),
	}, nil
}

func textBlock(texts ...string) []notionapi.RichText {
	var runs []notionapi.RichText
	for _, t := range texts {
		runs = append(runs, notionapi.RichText{PlainText: t})
	}
	return runs
}

func TestRenderBodyBlocks(t *testing.T) {
	blocks := &fakeBlockClient{children: map[notionapi.BlockID][]notionapi.Block{
		"page-1": {
			&notionapi.Heading1Block{Heading1: notionapi.Heading{RichText: textBlock("Intro")}},
			&notionapi.ParagraphBlock{Paragraph: notionapi.Paragraph{RichText: textBlock("First paragraph.")}},
			&notionapi.Heading2Block{Heading2: notionapi.Heading{RichText: textBlock("Details")}},
			&notionapi.BulletedListItemBlock{BulletedListItem: notionapi.ListItem{RichText: textBlock("one")}},
			&notionapi.BulletedListItemBlock{BulletedListItem: notionapi.ListItem{RichText: textBlock("two")}},
			&notionapi.NumberedListItemBlock{NumberedListItem: notionapi.ListItem{RichText: textBlock("first")}},
			&notionapi.NumberedListItemBlock{NumberedListItem: notionapi.ListItem{RichText: textBlock("second")}},
			&notionapi.ToDoBlock{ToDo: notionapi.ToDo{RichText: textBlock("ship it"), Checked: true}},
			&notionapi.QuoteBlock{Quote: notionapi.Quote{RichText: textBlock("wise words")}},
			&notionapi.CodeBlock{Code: notionapi.Code{RichText: textBlock("fmt.Println(\"hi\")"), Language: "go"}},
			&notionapi.DividerBlock{},
			&notionapi.ImageBlock{Image: notionapi.Image{
				Caption: textBlock("a chart"),
				File:    &notionapi.FileObject{URL: "https://secure.notion-static.com/chart.png"},
			}},
			&notionapi.BookmarkBlock{Bookmark: notionapi.Bookmark{URL: "https://example.com"}},
		},
	}}

	renderer := NewNotionRenderer(blocks)
	body, err := renderer.RenderBody(context.Background(), Record{ID: "page-1"})
	require.NoError(t, err)

	assert.Contains(t, body, "# Intro\n\n")
	assert.Contains(t, body, "First paragraph.\n\n")
	assert.Contains(t, body, "## Details\n\n")
	assert.Contains(t, body, "- one\n- two\n")
	assert.Contains(t, body, "1. first\n2. second\n")
	assert.Contains(t, body, "- [x] ship it\n")
	assert.Contains(t, body, "> wise words\n\n")
	assert.Contains(t, body, "```go\nfmt.Println(\"hi\")\n```\n")
	assert.Contains(t, body, "---\n\n")
	assert.Contains(t, body, "![a chart](https://secure.notion-static.com/chart.png)")
	assert.Contains(t, body, "[https://example.com](https://example.com)")
}

func TestRenderBodyAnnotations(t *testing.T) {
	blocks := &fakeBlockClient{children: map[notionapi.BlockID][]notionapi.Block{
		"page-1": {
			&notionapi.ParagraphBlock{Paragraph: notionapi.Paragraph{RichText: []notionapi.RichText{
				{PlainText: "bold", Annotations: &notionapi.Annotations{Bold: true}},
				{PlainText: " and "},
				{PlainText: "code", Annotations: &notionapi.Annotations{Code: true}},
				{PlainText: "link", Href: "https://example.com"},
			}}},
		},
	}}

	renderer := NewNotionRenderer(blocks)
	body, err := renderer.RenderBody(context.Background(), Record{ID: "page-1"})
	require.NoError(t, err)

	assert.Contains(t, body, "**bold** and `code`[link](https://example.com)")
}

func TestRenderBodyFollowsPagination(t *testing.T) {
	var children []notionapi.Block
	for i := 0; i < 5; i++ {
		children = append(children, &notionapi.ParagraphBlock{
			Paragraph: notionapi.Paragraph{RichText: textBlock(fmt.Sprintf("para %d", i))},
		})
	}
	blocks := &fakeBlockClient{
		children: map[notionapi.BlockID][]notionapi.Block{"page-1": children},
		pageSize: 2,
	}

	renderer := NewNotionRenderer(blocks)
	body, err := renderer.RenderBody(context.Background(), Record{ID: "page-1"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.Contains(t, body, fmt.Sprintf("para %d", i))
	}
}

func TestRenderBodyNestedList(t *testing.T) {
	parent := &notionapi.BulletedListItemBlock{
		BasicBlock:       notionapi.BasicBlock{ID: "item-1", HasChildren: true},
		BulletedListItem: notionapi.ListItem{RichText: textBlock("parent")},
	}
	blocks := &fakeBlockClient{children: map[notionapi.BlockID][]notionapi.Block{
		"page-1": {parent},
		"item-1": {
			&notionapi.BulletedListItemBlock{BulletedListItem: notionapi.ListItem{RichText: textBlock("child")}},
		},
	}}

	renderer := NewNotionRenderer(blocks)
	body, err := renderer.RenderBody(context.Background(), Record{ID: "page-1"})
	require.NoError(t, err)

	assert.Contains(t, body, "- parent\n    - child\n")
}

func TestRenderBodyError(t *testing.T) {
	blocks := &fakeBlockClient{err: errors.New("unauthorized")}

	renderer := NewNotionRenderer(blocks)
	_, err := renderer.RenderBody(context.Background(), Record{ID: "page-1"})
	assert.ErrorContains(t, err, "fetching blocks")
}

func TestRenderBodyWebClipFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><h1>Clipped</h1><p>From the source page.</p></body></html>")
	}))
	defer server.Close()

	blocks := &fakeBlockClient{children: map[notionapi.BlockID][]notionapi.Block{}}
	renderer := NewNotionRenderer(blocks)

	body, err := renderer.RenderBody(context.Background(), Record{ID: "empty-page", SourceURL: server.URL})
	require.NoError(t, err)
	assert.Contains(t, body, "# Clipped")
	assert.Contains(t, body, "From the source page.")

	// Pages with blocks never hit the source URL.
	blocks.children["page-2"] = []notionapi.Block{
		&notionapi.ParagraphBlock{Paragraph: notionapi.Paragraph{RichText: textBlock("real body")}},
	}
	body, err = renderer.RenderBody(context.Background(), Record{ID: "page-2", SourceURL: "http://127.0.0.1:1/unreachable"})
	require.NoError(t, err)
	assert.Contains(t, body, "real body")
}

func TestRenderBodyEmptyWithoutSourceURL(t *testing.T) {
	blocks := &fakeBlockClient{children: map[notionapi.BlockID][]notionapi.Block{}}
	renderer := NewNotionRenderer(blocks)

	body, err := renderer.RenderBody(context.Background(), Record{ID: "empty-page"})
	require.NoError(t, err)
	assert.Empty(t, body)
}
