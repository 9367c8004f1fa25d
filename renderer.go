package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/jomei/notionapi"
)

// BodyRenderer renders a record's content into a markdown string.
type BodyRenderer interface {
	RenderBody(ctx context.Context, rec Record) (string, error)
}

// blockClient is the slice of the Notion block API the renderer needs
type blockClient interface {
	GetChildren(ctx context.Context, id notionapi.BlockID, pagination *notionapi.Pagination) (*notionapi.GetChildrenResponse, error)
}

// NotionRenderer converts a Notion page's block tree into markdown. When a
// page has no renderable blocks but carries a source URL, it falls back to
// fetching that URL and converting the HTML body instead.
type NotionRenderer struct {
	blocks    blockClient
	client    *http.Client
	converter *md.Converter
}

// NewNotionRenderer creates a renderer backed by the Notion block API
func NewNotionRenderer(blocks blockClient) *NotionRenderer {
	return &NotionRenderer{
		blocks:    blocks,
		client:    &http.Client{},
		converter: md.NewConverter("", true, nil),
	}
}

// RenderBody renders the record's block tree to markdown.
func (r *NotionRenderer) RenderBody(ctx context.Context, rec Record) (string, error) {
	blocks, err := r.fetchChildren(ctx, notionapi.BlockID(rec.ID))
	if err != nil {
		return "", fmt.Errorf("fetching blocks for %s: %w", rec.ID, err)
	}

	body := r.renderBlocks(ctx, blocks, 0)
	if strings.TrimSpace(body) == "" && rec.SourceURL != "" {
		return r.clipSource(rec.SourceURL)
	}
	return body, nil
}

// clipSource fetches an external page and converts its HTML to markdown
func (r *NotionRenderer) clipSource(url string) (string, error) {
	resp, err := r.client.Get(url)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	markdown, err := r.converter.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("converting HTML to markdown: %w", err)
	}

	return markdown, nil
}

// fetchChildren follows pagination cursors until the block list is complete.
func (r *NotionRenderer) fetchChildren(ctx context.Context, id notionapi.BlockID) ([]notionapi.Block, error) {
	var all []notionapi.Block
	pagination := &notionapi.Pagination{PageSize: 100}

	for {
		resp, err := r.blocks.GetChildren(ctx, id, pagination)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Results...)

		if !resp.HasMore {
			return all, nil
		}
		pagination.StartCursor = notionapi.Cursor(resp.NextCursor)
	}
}

// renderBlocks renders a block list at the given list-nesting depth. Unknown
// block types are skipped.
func (r *NotionRenderer) renderBlocks(ctx context.Context, blocks []notionapi.Block, depth int) string {
	var b strings.Builder
	indent := strings.Repeat("    ", depth)
	numbered := 0

	for _, block := range blocks {
		if _, ok := block.(*notionapi.NumberedListItemBlock); !ok {
			numbered = 0
		}

		switch blk := block.(type) {
		case *notionapi.ParagraphBlock:
			b.WriteString(indent + renderRichText(blk.Paragraph.RichText) + "\n\n")
		case *notionapi.Heading1Block:
			b.WriteString("# " + renderRichText(blk.Heading1.RichText) + "\n\n")
		case *notionapi.Heading2Block:
			b.WriteString("## " + renderRichText(blk.Heading2.RichText) + "\n\n")
		case *notionapi.Heading3Block:
			b.WriteString("### " + renderRichText(blk.Heading3.RichText) + "\n\n")
		case *notionapi.BulletedListItemBlock:
			b.WriteString(indent + "- " + renderRichText(blk.BulletedListItem.RichText) + "\n")
			b.WriteString(r.renderNested(ctx, block, depth))
		case *notionapi.NumberedListItemBlock:
			numbered++
			b.WriteString(fmt.Sprintf("%s%d. %s\n", indent, numbered, renderRichText(blk.NumberedListItem.RichText)))
			b.WriteString(r.renderNested(ctx, block, depth))
		case *notionapi.ToDoBlock:
			mark := " "
			if blk.ToDo.Checked {
				mark = "x"
			}
			b.WriteString(fmt.Sprintf("%s- [%s] %s\n", indent, mark, renderRichText(blk.ToDo.RichText)))
		case *notionapi.QuoteBlock:
			b.WriteString("> " + renderRichText(blk.Quote.RichText) + "\n\n")
		case *notionapi.CalloutBlock:
			b.WriteString("> " + renderRichText(blk.Callout.RichText) + "\n\n")
		case *notionapi.CodeBlock:
			b.WriteString("```" + blk.Code.Language + "\n")
			b.WriteString(plainText(blk.Code.RichText))
			b.WriteString("\n```\n\n")
		case *notionapi.DividerBlock:
			b.WriteString("---\n\n")
		case *notionapi.ImageBlock:
			url := imageURL(&blk.Image)
			if url != "" {
				b.WriteString(fmt.Sprintf("![%s](%s)\n\n", plainText(blk.Image.Caption), url))
			}
		case *notionapi.BookmarkBlock:
			label := plainText(blk.Bookmark.Caption)
			if label == "" {
				label = blk.Bookmark.URL
			}
			b.WriteString(fmt.Sprintf("[%s](%s)\n\n", label, blk.Bookmark.URL))
		}
	}

	return b.String()
}

// renderNested renders a list item's children one indent level deeper
func (r *NotionRenderer) renderNested(ctx context.Context, block notionapi.Block, depth int) string {
	if !block.GetHasChildren() {
		return ""
	}
	children, err := r.fetchChildren(ctx, block.GetID())
	if err != nil {
		debugLog("fetching children of %s: %v", block.GetID(), err)
		return ""
	}
	return r.renderBlocks(ctx, children, depth+1)
}

func imageURL(img *notionapi.Image) string {
	switch {
	case img.File != nil && img.File.URL != "":
		return img.File.URL
	case img.External != nil && img.External.URL != "":
		return img.External.URL
	}
	return ""
}

// renderRichText renders rich text runs with their markdown annotations.
func renderRichText(runs []notionapi.RichText) string {
	var b strings.Builder
	for _, run := range runs {
		text := run.PlainText
		if text == "" && run.Text != nil {
			text = run.Text.Content
		}

		if a := run.Annotations; a != nil {
			if a.Code {
				text = "`" + text + "`"
			}
			if a.Bold {
				text = "**" + text + "**"
			}
			if a.Italic {
				text = "*" + text + "*"
			}
			if a.Strikethrough {
				text = "~~" + text + "~~"
			}
		}

		if run.Href != "" {
			text = fmt.Sprintf("[%s](%s)", text, run.Href)
		}

		b.WriteString(text)
	}
	return b.String()
}
