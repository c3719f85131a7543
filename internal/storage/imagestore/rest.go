package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
)

var _ Store = (*RESTStore)(nil)

// RESTStore talks to the Supabase Storage REST API.
type RESTStore struct {
	baseURL string
	key     string
	bucket  string
	client  *http.Client
}

// NewRESTStore creates a RESTStore. A nil client uses a client with a 30s timeout.
func NewRESTStore(cfg config.ImageStore, client *http.Client) (*RESTStore, error) {
	if cfg.RESTURL == "" || cfg.RESTKey == "" {
		return nil, fmt.Errorf("rest url and key: %w", ErrNotConfigured)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &RESTStore{
		baseURL: strings.TrimRight(cfg.RESTURL, "/"),
		key:     cfg.RESTKey,
		bucket:  cfg.Bucket,
		client:  client,
	}, nil
}

func (s *RESTStore) Put(ctx context.Context, data []byte, name, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(name), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	if err := s.do(req); err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}

	return publicObjectURL(s.baseURL, s.bucket, name), nil
}

// Delete refuses URLs that do not point at a Supabase storage host.
func (s *RESTStore) Delete(ctx context.Context, ref string) (bool, error) {
	if isURL(ref) && !s.ownsURL(ref) {
		return false, nil
	}

	name, err := objectNameFromRef(ref)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(name), nil)
	if err != nil {
		return false, fmt.Errorf("new request: %w", err)
	}
	s.authorize(req)

	if err := s.do(req); err != nil {
		return false, fmt.Errorf("delete object: %w", err)
	}
	return true, nil
}

func (s *RESTStore) ownsURL(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	if strings.HasSuffix(u.Hostname(), "supabase.co") {
		return true
	}
	return strings.HasPrefix(ref, s.baseURL+"/")
}

func (s *RESTStore) objectURL(name string) string {
	return s.baseURL + "/storage/v1/object/" + url.PathEscape(s.bucket) + "/" + url.PathEscape(name)
}

func (s *RESTStore) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)
}

func (s *RESTStore) do(req *http.Request) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
