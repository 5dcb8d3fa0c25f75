package toolfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newReleaseServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/repos/JesusFreke/smali/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got == "" {
			t.Errorf("missing user agent")
		}
		_ = json.NewEncoder(w).Encode(Release{
			TagName: "v2.5.2",
			Assets: []Asset{
				{Name: "smali-2.5.2.jar", BrowserDownloadURL: srv.URL + "/dl/smali-2.5.2.jar"},
				{Name: "baksmali-2.5.2.jar", Size: int64(len(payload)), BrowserDownloadURL: srv.URL + "/dl/baksmali-2.5.2.jar"},
			},
		})
	})
	mux.HandleFunc("/dl/baksmali-2.5.2.jar", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLatestReleaseAndDownload(t *testing.T) {
	payload := bytes.Repeat([]byte("jar"), 1000)
	srv := newReleaseServer(t, payload)

	client, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	release, err := client.LatestRelease(context.Background())
	if err != nil {
		t.Fatalf("LatestRelease: %v", err)
	}
	if release.TagName != "v2.5.2" {
		t.Fatalf("unexpected tag %q", release.TagName)
	}
	asset, err := SelectJar(release, DefaultAsset)
	if err != nil {
		t.Fatalf("SelectJar: %v", err)
	}
	if asset.Name != "baksmali-2.5.2.jar" {
		t.Fatalf("selected %q", asset.Name)
	}

	var seen bytes.Buffer
	dir := filepath.Join(t.TempDir(), "tools")
	path, err := client.Download(context.Background(), asset, dir, func(total int64) io.Writer {
		return &seen
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatal("downloaded content mismatch")
	}
	if seen.Len() != len(payload) {
		t.Fatalf("progress observed %d bytes, want %d", seen.Len(), len(payload))
	}
}

func TestSelectJarMissing(t *testing.T) {
	_, err := SelectJar(Release{TagName: "v1", Assets: []Asset{{Name: "baksmali.zip"}}}, DefaultAsset)
	if !errors.Is(err, ErrNoAsset) {
		t.Fatalf("expected ErrNoAsset, got %v", err)
	}
}

func TestLatestReleaseHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.LatestRelease(context.Background()); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

func TestNewRejectsBadRepo(t *testing.T) {
	if _, err := New(Config{Repo: "smali"}); err == nil {
		t.Fatal("expected error for repo without owner")
	}
}
