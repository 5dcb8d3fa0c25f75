// Package toolfetch downloads the deodexing tool from GitHub releases.
package toolfetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deodexer/internal/fileutil"
)

const (
	defaultBaseURL     = "https://api.github.com"
	defaultRepo        = "JesusFreke/smali"
	defaultUserAgent   = "deodexer/dev"
	defaultHTTPTimeout = 5 * time.Minute
	// DefaultAsset is the substring identifying the tool jar among release assets.
	DefaultAsset = "baksmali"
)

// ErrNoAsset is returned when a release carries no matching jar.
var ErrNoAsset = errors.New("no matching jar in release")

// Config describes the release client.
type Config struct {
	BaseURL    string
	Repo       string
	UserAgent  string
	HTTPClient *http.Client
}

// Client wraps the GitHub releases API.
type Client struct {
	baseURL   *url.URL
	repo      string
	userAgent string
	http      *http.Client
}

// Release is the subset of a GitHub release the client needs.
type Release struct {
	TagName string  `json:"tag_name"`
	Name    string  `json:"name"`
	Assets  []Asset `json:"assets"`
}

// Asset is one downloadable file of a release.
type Asset struct {
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("toolfetch: parse base url: %w", err)
	}
	repo := strings.Trim(strings.TrimSpace(cfg.Repo), "/")
	if repo == "" {
		repo = defaultRepo
	}
	if strings.Count(repo, "/") != 1 {
		return nil, fmt.Errorf("toolfetch: repo must be owner/name, got %q", repo)
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{baseURL: baseURL, repo: repo, userAgent: userAgent, http: client}, nil
}

// LatestRelease fetches the latest published release of the repository.
func (c *Client) LatestRelease(ctx context.Context) (Release, error) {
	endpoint := c.baseURL.JoinPath("repos", c.repo, "releases", "latest")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Release{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Release{}, fmt.Errorf("fetch latest release: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return Release{}, fmt.Errorf("decode release: %w", err)
	}
	return release, nil
}

// SelectJar returns the first .jar asset whose name contains match
// (case-insensitive).
func SelectJar(release Release, match string) (Asset, error) {
	match = strings.ToLower(strings.TrimSpace(match))
	for _, asset := range release.Assets {
		name := strings.ToLower(asset.Name)
		if strings.HasSuffix(name, ".jar") && strings.Contains(name, match) {
			return asset, nil
		}
	}
	return Asset{}, fmt.Errorf("%w: %q in %s", ErrNoAsset, match, release.TagName)
}

// ProgressFunc returns a writer that observes downloaded bytes. total is -1
// when the server does not report a length.
type ProgressFunc func(total int64) io.Writer

// Download saves asset into dir and returns the written path. The file is
// written to a temporary name and renamed once complete.
func (c *Client) Download(ctx context.Context, asset Asset, dir string, progress ProgressFunc) (string, error) {
	name := filepath.Base(asset.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("invalid asset name %q", asset.Name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.BrowserDownloadURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: %s", name, resp.Status)
	}

	target := filepath.Join(dir, name)
	err = fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
		dst := w
		if progress != nil {
			if observer := progress(resp.ContentLength); observer != nil {
				dst = io.MultiWriter(w, observer)
			}
		}
		n, err := io.Copy(dst, resp.Body)
		if err != nil {
			return err
		}
		if resp.ContentLength > 0 && n != resp.ContentLength {
			return fmt.Errorf("short download: got %d of %d bytes", n, resp.ContentLength)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return target, nil
}
