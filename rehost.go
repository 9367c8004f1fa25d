package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// AssetFetcher fetches remote asset bytes as a stream.
type AssetFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPAssetFetcher fetches assets over HTTP
type HTTPAssetFetcher struct {
	client *http.Client
}

// NewHTTPAssetFetcher creates a fetcher with a default HTTP client
func NewHTTPAssetFetcher() *HTTPAssetFetcher {
	return &HTTPAssetFetcher{client: &http.Client{}}
}

// Fetch returns the response body stream for url. The caller must close it.
func (f *HTTPAssetFetcher) Fetch(ctx context.Context, assetURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", assetURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", assetURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, assetURL)
	}
	return resp.Body, nil
}

var imagePattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)

var extPattern = regexp.MustCompile(`^[a-zA-Z0-9]{1,5}$`)

const defaultAssetExt = "png"

// AssetRehoster downloads remote-managed images referenced in a markdown body
// into a local asset directory and rewrites each reference to the local path.
// Externally hosted images pass through untouched, and once rewritten a
// reference no longer matches the remote-host patterns, so reruns don't
// re-fetch.
type AssetRehoster struct {
	fetcher     AssetFetcher
	assetDir    string
	remoteHosts []string
}

// NewAssetRehoster creates a rehoster writing into assetDir. remoteHosts are
// substrings identifying workspace-hosted asset URLs.
func NewAssetRehoster(fetcher AssetFetcher, assetDir string, remoteHosts []string) *AssetRehoster {
	return &AssetRehoster{
		fetcher:     fetcher,
		assetDir:    assetDir,
		remoteHosts: remoteHosts,
	}
}

// Rehost scans body for image references in order of occurrence. Each
// remote-managed occurrence gets its own fetch, its own filename and its own
// replacement, so a URL referenced twice never aliases to one fetched file.
// A failed fetch leaves that occurrence unchanged and continues.
func (r *AssetRehoster) Rehost(ctx context.Context, body, slug string) (string, []RehostedAsset) {
	matches := imagePattern.FindAllStringSubmatchIndex(body, -1)
	if len(matches) == 0 {
		return body, nil
	}

	var assets []RehostedAsset
	var out strings.Builder
	last := 0

	for _, m := range matches {
		urlStart, urlEnd := m[4], m[5]
		imageURL := body[urlStart:urlEnd]

		if !r.isRemoteManaged(imageURL) {
			continue
		}

		filename := fmt.Sprintf("%s-%s.%s", slug, uuid.NewString()[:8], assetExtension(imageURL))
		asset := RehostedAsset{OriginalURL: imageURL}

		if err := r.download(ctx, imageURL, filename); err != nil {
			asset.Err = err
			assets = append(assets, asset)
			log.Printf("  ✗ Image failed: %v", err)
			continue
		}

		asset.LocalPath = "/" + path.Join(r.assetDir, filename)
		assets = append(assets, asset)

		out.WriteString(body[last:urlStart])
		out.WriteString(asset.LocalPath)
		last = urlEnd
	}

	if last == 0 {
		return body, assets
	}
	out.WriteString(body[last:])
	return out.String(), assets
}

// isRemoteManaged classifies a URL as workspace-hosted via substring match
func (r *AssetRehoster) isRemoteManaged(url string) bool {
	for _, host := range r.remoteHosts {
		if strings.Contains(url, host) {
			return true
		}
	}
	return false
}

// download streams the remote content to the asset directory. The write is
// complete only once the file is flushed and closed.
func (r *AssetRehoster) download(ctx context.Context, imageURL, filename string) error {
	stream, err := r.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := os.MkdirAll(r.assetDir, 0755); err != nil {
		return fmt.Errorf("creating asset directory: %w", err)
	}

	filePath := filepath.Join(r.assetDir, filename)
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filePath, err)
	}

	if _, err := io.Copy(file, stream); err != nil {
		file.Close()
		os.Remove(filePath)
		return fmt.Errorf("writing %s: %w", filePath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filePath, err)
	}
	return nil
}

// assetExtension derives a file extension from the query-stripped final path
// segment, defaulting when absent or implausible.
func assetExtension(imageURL string) string {
	trimmed := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		trimmed = u.Path
	} else if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}

	ext := strings.TrimPrefix(path.Ext(trimmed), ".")
	if !extPattern.MatchString(ext) {
		return defaultAssetExt
	}
	return strings.ToLower(ext)
}
