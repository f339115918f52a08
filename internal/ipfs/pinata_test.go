package ipfs_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ales-api/internal/config"
	"github.com/ales-api/internal/ipfs"
	"github.com/ales-api/internal/models"
	"github.com/rs/zerolog"
)

func newStore(srv *httptest.Server, cfg config.PinataConfig) ipfs.Store {
	cfg.APIURL = srv.URL
	cfg.GatewayURL = srv.URL
	return ipfs.NewPinataStoreWithClient(cfg, &http.Client{Timeout: 2 * time.Second}, zerolog.Nop())
}

func TestPut_UploadsMultipart(t *testing.T) {
	var gotName, gotFile, gotKey, gotSecret string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pinning/pinFileToIPFS" || r.Method != http.MethodPost {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotKey = r.Header.Get("pinata_api_key")
		gotSecret = r.Header.Get("pinata_secret_api_key")

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm failed: %v", err)
		}
		gotName = r.FormValue("pinataMetadata")
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("file part missing: %v", err)
		}
		data, _ := io.ReadAll(f)
		gotFile = string(data)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"IpfsHash":"QmTestHash","PinSize":11,"Timestamp":"2024-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	store := newStore(srv, config.PinataConfig{APIKey: "key", APISecret: "secret"})
	res, err := store.Put(context.Background(), models.Content{Data: []byte("<p>hello</p>")})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if res.CID != "QmTestHash" || res.Size != 11 {
		t.Errorf("Unexpected result: %+v", res)
	}
	if gotFile != "<p>hello</p>" {
		t.Errorf("Unexpected file body: %q", gotFile)
	}
	if gotName != `{"name":"ArticleContent"}` {
		t.Errorf("Unexpected metadata: %q", gotName)
	}
	if gotKey != "key" || gotSecret != "secret" {
		t.Errorf("Expected API key headers, got %q / %q", gotKey, gotSecret)
	}
}

func TestPut_JWTAuth(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"IpfsHash":"QmJWT"}`))
	}))
	defer srv.Close()

	store := newStore(srv, config.PinataConfig{JWT: "token"})
	if _, err := store.Put(context.Background(), models.Content{Data: []byte("x")}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if auth != "Bearer token" {
		t.Errorf("Expected bearer auth, got %q", auth)
	}
}

func TestPut_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	store := newStore(srv, config.PinataConfig{})
	_, err := store.Put(context.Background(), models.Content{Data: []byte("x")})
	if !errors.Is(err, models.ErrUploadFailed) {
		t.Errorf("Expected ErrUploadFailed, got %v", err)
	}
}

func TestGet_DegradesToPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ipfs/QmGood":
			w.Write([]byte("article body"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store := newStore(srv, config.PinataConfig{})

	if got := store.Get(context.Background(), "QmGood"); got != "article body" {
		t.Errorf("Expected body, got %q", got)
	}
	if got := store.Get(context.Background(), "QmMissing"); got != models.ContentFetchPlaceholder {
		t.Errorf("Expected placeholder, got %q", got)
	}

	_, err := store.Fetch(context.Background(), "QmMissing")
	if !errors.Is(err, models.ErrContentFetchFailed) {
		t.Errorf("Expected ErrContentFetchFailed, got %v", err)
	}
}

func TestUnpin(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("Expected DELETE, got %s", r.Method)
		}
		paths = append(paths, r.URL.Path)
		switch {
		case strings.HasSuffix(r.URL.Path, "QmGone"):
			w.WriteHeader(http.StatusNotFound)
		case strings.HasSuffix(r.URL.Path, "QmBroken"):
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Write([]byte("OK"))
		}
	}))
	defer srv.Close()

	store := newStore(srv, config.PinataConfig{JWT: "t"})

	if err := store.Unpin(context.Background(), "QmOrphan"); err != nil {
		t.Errorf("Unpin failed: %v", err)
	}
	if err := store.Unpin(context.Background(), "QmGone"); err != nil {
		t.Errorf("404 should count as unpinned, got %v", err)
	}
	if err := store.Unpin(context.Background(), "QmBroken"); err == nil {
		t.Error("Expected error for 500")
	}
	if paths[0] != "/pinning/unpin/QmOrphan" {
		t.Errorf("Unexpected path %s", paths[0])
	}
}
