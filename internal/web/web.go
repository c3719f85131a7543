package web

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/tuanvumaihuynh/stock-ledger/internal/config"
)

const (
	noCache   = "no-cache, no-store, must-revalidate"
	longCache = "public, max-age=31536000, immutable"
)

//go:embed assets
var assets embed.FS

// Site serves the embedded front end with versioned asset URLs.
type Site struct {
	logger  *slog.Logger
	version string
	index   []byte
	worker  []byte
	static  fs.FS
}

func New(cfg config.Web, logger *slog.Logger) (*Site, error) {
	root, err := fs.Sub(assets, "assets")
	if err != nil {
		return nil, fmt.Errorf("sub assets: %w", err)
	}

	return newSite(root, cfg.Version, logger)
}

func newSite(root fs.FS, version string, logger *slog.Logger) (*Site, error) {
	static, err := fs.Sub(root, "static")
	if err != nil {
		return nil, fmt.Errorf("sub static: %w", err)
	}

	if version == "" {
		version, err = contentHash(root)
		if err != nil {
			return nil, fmt.Errorf("hash assets: %w", err)
		}
	}

	tmpl, err := template.ParseFS(root, "index.html")
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	var index bytes.Buffer
	if err := tmpl.Execute(&index, struct{ Version string }{Version: version}); err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}

	worker, err := fs.ReadFile(root, "sw.js")
	if err != nil {
		return nil, fmt.Errorf("read service worker: %w", err)
	}

	return &Site{
		logger:  logger.With(slog.String("service", "web")),
		version: version,
		index:   index.Bytes(),
		worker:  worker,
		static:  static,
	}, nil
}

// Version is the asset version appended to static URLs.
func (s *Site) Version() string {
	return s.version
}

func (s *Site) Register(r chi.Router) {
	r.Get("/", s.serveIndex)
	r.Get("/sw.js", s.serveWorker)

	files := http.StripPrefix("/static/", http.FileServer(http.FS(s.static)))
	r.Get("/static/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", longCache)
		files.ServeHTTP(w, r)
	})
}

func (s *Site) serveIndex(w http.ResponseWriter, r *http.Request) {
	setNoCache(w)

	if r.URL.Query().Get("check_version") != "" {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"app_version": s.version}); err != nil {
			s.logger.ErrorContext(r.Context(), "error writing version", slog.Any("error", err))
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(s.index); err != nil {
		s.logger.ErrorContext(r.Context(), "error writing index", slog.Any("error", err))
	}
}

func (s *Site) serveWorker(w http.ResponseWriter, r *http.Request) {
	setNoCache(w)
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	if _, err := w.Write(s.worker); err != nil {
		s.logger.ErrorContext(r.Context(), "error writing service worker", slog.Any("error", err))
	}
}

func setNoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", noCache)
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// contentHash digests every file under root in path order.
func contentHash(root fs.FS) (string, error) {
	var paths []string
	if err := fs.WalkDir(root, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	}); err != nil {
		return "", err
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, path := range paths {
		data, err := fs.ReadFile(root, path)
		if err != nil {
			return "", err
		}
		h.Write([]byte(path))
		h.Write(data)
	}

	return hex.EncodeToString(h.Sum(nil))[:12], nil
}
