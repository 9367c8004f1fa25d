package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves canned bytes per URL and counts fetches
type fakeFetcher struct {
	failing map[string]bool
	fetches []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	f.fetches = append(f.fetches, url)
	if f.failing[url] {
		return nil, errors.New("connection reset")
	}
	return io.NopCloser(strings.NewReader("image-bytes:" + url)), nil
}

func newTestRehoster(t *testing.T, fetcher AssetFetcher) *AssetRehoster {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "assets", "post-img")
	return NewAssetRehoster(fetcher, dir, []string{"secure.notion-static.com", "prod-files-secure"})
}

func TestRehostLeavesExternalURLsUntouched(t *testing.T) {
	fetcher := &fakeFetcher{}
	rehoster := newTestRehoster(t, fetcher)

	body := "intro\n![diagram](https://example.com/a.png)\noutro\n"
	newBody, assets := rehoster.Rehost(context.Background(), body, "my-post")

	assert.Equal(t, body, newBody)
	assert.Empty(t, assets)
	assert.Empty(t, fetcher.fetches)
}

func TestRehostReplacesRemoteManagedURL(t *testing.T) {
	fetcher := &fakeFetcher{}
	rehoster := newTestRehoster(t, fetcher)

	url := "https://prod-files-secure.s3.us-west-2.amazonaws.com/abc/shot.jpg?X-Amz-Expires=3600"
	body := fmt.Sprintf("before\n![shot](%s)\nafter\n", url)

	newBody, assets := rehoster.Rehost(context.Background(), body, "my-post")

	require.Len(t, assets, 1)
	require.NoError(t, assets[0].Err)
	assert.Equal(t, url, assets[0].OriginalURL)
	assert.Regexp(t, regexp.MustCompile(`/my-post-[0-9a-f]{8}\.jpg$`), assets[0].LocalPath)

	assert.NotContains(t, newBody, url)
	assert.Contains(t, newBody, "![shot]("+assets[0].LocalPath+")")
	assert.Contains(t, newBody, "before\n")
	assert.Contains(t, newBody, "\nafter\n")

	// A rewritten body must not match the remote-host patterns again.
	rerun, rerunAssets := rehoster.Rehost(context.Background(), newBody, "my-post")
	assert.Equal(t, newBody, rerun)
	assert.Empty(t, rerunAssets)

	// The fetched bytes actually landed on disk.
	saved, err := os.ReadFile(filepath.Join(rehoster.assetDir, filepath.Base(assets[0].LocalPath)))
	require.NoError(t, err)
	assert.Equal(t, "image-bytes:"+url, string(saved))
}

func TestRehostFetchFailureLeavesOccurrence(t *testing.T) {
	good := "https://secure.notion-static.com/ok.png"
	bad := "https://secure.notion-static.com/broken.png"
	fetcher := &fakeFetcher{failing: map[string]bool{bad: true}}
	rehoster := newTestRehoster(t, fetcher)

	body := fmt.Sprintf("![a](%s)\n![b](%s)\n", bad, good)
	newBody, assets := rehoster.Rehost(context.Background(), body, "post")

	require.Len(t, assets, 2)
	assert.Error(t, assets[0].Err)
	assert.NoError(t, assets[1].Err)

	// The broken reference stays as-is; the rest of the body is still processed.
	assert.Contains(t, newBody, "![a]("+bad+")")
	assert.NotContains(t, newBody, good)
}

func TestRehostDuplicateURLGetsDistinctFiles(t *testing.T) {
	url := "https://secure.notion-static.com/shared.png"
	fetcher := &fakeFetcher{}
	rehoster := newTestRehoster(t, fetcher)

	body := fmt.Sprintf("![first](%s)\n\ntext\n\n![second](%s)\n", url, url)
	newBody, assets := rehoster.Rehost(context.Background(), body, "post")

	require.Len(t, assets, 2)
	assert.Len(t, fetcher.fetches, 2, "each occurrence gets its own fetch")
	assert.NotEqual(t, assets[0].LocalPath, assets[1].LocalPath, "each occurrence gets its own filename")

	assert.NotContains(t, newBody, url)
	assert.Contains(t, newBody, "![first]("+assets[0].LocalPath+")")
	assert.Contains(t, newBody, "![second]("+assets[1].LocalPath+")")
}

func TestAssetExtension(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"plain", "https://secure.notion-static.com/a.jpg", "jpg"},
		{"query string stripped", "https://prod-files-secure.example.com/a.gif?X-Amz-Expires=1", "gif"},
		{"uppercase normalized", "https://secure.notion-static.com/a.PNG", "png"},
		{"no extension", "https://secure.notion-static.com/blob", "png"},
		{"implausible extension", "https://secure.notion-static.com/a.verylongext", "png"},
		{"trailing dot", "https://secure.notion-static.com/a.", "png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, assetExtension(tt.url))
		})
	}
}

func TestHTTPAssetFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "payload")
	}))
	defer server.Close()

	fetcher := NewHTTPAssetFetcher()

	stream, err := fetcher.Fetch(context.Background(), server.URL+"/ok.png")
	require.NoError(t, err)
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	stream.Close()
	assert.Equal(t, "payload", string(data))

	_, err = fetcher.Fetch(context.Background(), server.URL+"/missing.png")
	assert.ErrorContains(t, err, "HTTP 404")
}
