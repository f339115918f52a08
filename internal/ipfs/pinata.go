// Package ipfs pins content through Pinata and reads it back from a gateway.
package ipfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/ales-api/internal/config"
	"github.com/ales-api/internal/models"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// maxContentBytes caps how much of a gateway response is read
const maxContentBytes = 10 * 1024 * 1024

// Store is the content store gateway
type Store interface {
	Put(ctx context.Context, content models.Content) (*models.PinResult, error)
	Fetch(ctx context.Context, cid string) (string, error)
	Get(ctx context.Context, cid string) string
	Unpin(ctx context.Context, cid string) error
}

// pinataStore is the Pinata implementation of Store
type pinataStore struct {
	cfg    config.PinataConfig
	client *http.Client
	log    zerolog.Logger
}

// NewPinataStore creates a Store backed by the Pinata API
func NewPinataStore(cfg config.PinataConfig, log zerolog.Logger) Store {
	return NewPinataStoreWithClient(cfg, &http.Client{Timeout: cfg.Timeout}, log)
}

// NewPinataStoreWithClient lets tests inject an HTTP client
func NewPinataStoreWithClient(cfg config.PinataConfig, client *http.Client, log zerolog.Logger) Store {
	return &pinataStore{
		cfg:    cfg,
		client: client,
		log:    log.With().Str("component", "pinata").Logger(),
	}
}

type pinFileResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinataMetadata struct {
	Name string `json:"name"`
}

// Put uploads content with pinFileToIPFS. No retry is applied.
func (s *pinataStore) Put(ctx context.Context, content models.Content) (*models.PinResult, error) {
	body, contentType, err := encodeUpload(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL+"/pinning/pinFileToIPFS", body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", contentType)
	s.authorize(req)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: pinata returned %d: %s", models.ErrUploadFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out pinFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: invalid pinata response: %v", models.ErrUploadFailed, err)
	}
	if out.IpfsHash == "" {
		return nil, fmt.Errorf("%w: pinata response has no IpfsHash", models.ErrUploadFailed)
	}

	s.log.Info().
		Str("cid", out.IpfsHash).
		Int64("size", out.PinSize).
		Str("name", content.Name).
		Dur("duration", time.Since(start)).
		Msg("Content pinned")

	return &models.PinResult{CID: out.IpfsHash, Size: out.PinSize, Timestamp: out.Timestamp}, nil
}

func encodeUpload(content models.Content) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := content.Filename
	if filename == "" {
		filename = "content.txt"
	}
	ctype := content.ContentType
	if ctype == "" {
		ctype = "text/plain"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", ctype)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content.Data); err != nil {
		return nil, "", err
	}

	name := content.Name
	if name == "" {
		name = "ArticleContent"
	}
	meta, err := json.Marshal(pinataMetadata{Name: name})
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField("pinataMetadata", string(meta)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// Fetch reads content by CID from the public gateway
func (s *pinataStore) Fetch(ctx context.Context, cid string) (string, error) {
	if cid == "" {
		return "", fmt.Errorf("%w: empty cid", models.ErrContentFetchFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.GatewayURL+"/ipfs/"+cid, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrContentFetchFailed, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrContentFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: gateway returned %d for %s", models.ErrContentFetchFailed, resp.StatusCode, cid)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrContentFetchFailed, err)
	}
	return string(data), nil
}

// Get is Fetch that degrades to a placeholder instead of failing
func (s *pinataStore) Get(ctx context.Context, cid string) string {
	content, err := s.Fetch(ctx, cid)
	if err != nil {
		s.log.Warn().Err(err).Str("cid", cid).Msg("Error fetching article content")
		return models.ContentFetchPlaceholder
	}
	return content
}

// Unpin removes a pin. A CID Pinata no longer knows counts as unpinned.
func (s *pinataStore) Unpin(ctx context.Context, cid string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.cfg.APIURL+"/pinning/unpin/"+cid, nil)
	if err != nil {
		return err
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to unpin %s: %w", cid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to unpin %s: pinata returned %d", cid, resp.StatusCode)
	}

	s.log.Info().Str("cid", cid).Msg("Content unpinned")
	return nil
}

func (s *pinataStore) authorize(req *http.Request) {
	if s.cfg.JWT != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.JWT)
		return
	}
	req.Header.Set("pinata_api_key", s.cfg.APIKey)
	req.Header.Set("pinata_secret_api_key", s.cfg.APISecret)
}
