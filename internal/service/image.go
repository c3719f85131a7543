package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/storage/imagestore"
)

type UploadImageParams struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ImageService interface {
	// UploadImage stores an image and returns the reference to save on a product.
	UploadImage(ctx context.Context, params UploadImageParams) (string, error)
	// ReleaseImage deletes ref from the store unless it is empty, a placeholder
	// or still referenced by otherRefs products. Failures are logged only.
	ReleaseImage(ctx context.Context, ref string, otherRefs int)
}

type imageService struct {
	logger       *slog.Logger
	store        imagestore.Store
	placeholders []string
	maxBytes     int64
	metrics      *LedgerMetrics
	now          Clock
}

func NewImageService(
	logger *slog.Logger,
	store imagestore.Store,
	placeholders []string,
	maxBytes int64,
	metrics *LedgerMetrics,
) ImageService {
	return &imageService{
		logger:       logger.With(slog.String("service", "image")),
		store:        store,
		placeholders: placeholders,
		maxBytes:     maxBytes,
		metrics:      metrics,
		now:          utcNow,
	}
}

func (s *imageService) UploadImage(ctx context.Context, params UploadImageParams) (string, error) {
	filename := strings.TrimSpace(params.Filename)
	if filename == "" {
		return "", apperr.InvalidUploadErr.WithMsg("no file selected")
	}
	if !imagestore.IsAllowedExtension(filename) {
		return "", apperr.InvalidUploadErr.WithMsg(
			fmt.Sprintf("file type not allowed, use one of: %s", strings.Join(imagestore.AllowedExtensions, ", ")))
	}
	if len(params.Data) == 0 {
		return "", apperr.InvalidUploadErr.WithMsg("file is empty")
	}
	if s.maxBytes > 0 && int64(len(params.Data)) > s.maxBytes {
		return "", apperr.InvalidUploadErr.WithMsg(fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}

	name := imagestore.ObjectName(s.now(), filename)
	contentType := imagestore.ContentType(filename, params.ContentType)

	ref, err := s.store.Put(ctx, params.Data, name, contentType)
	if err != nil {
		return "", apperr.ImageStoreErr.WrapParent(err)
	}

	s.logger.InfoContext(ctx, "image uploaded", slog.String("ref", ref), slog.Int("size", len(params.Data)))

	return ref, nil
}

func (s *imageService) ReleaseImage(ctx context.Context, ref string, otherRefs int) {
	if ref == "" || otherRefs > 0 || imagestore.IsPlaceholder(ref, s.placeholders) {
		return
	}

	deleted, err := s.store.Delete(ctx, ref)
	if err != nil {
		s.metrics.imageDeleteFailed()
		s.logger.WarnContext(ctx, "error deleting image",
			slog.String("ref", ref),
			slog.Any("error", err),
		)
		return
	}

	s.logger.DebugContext(ctx, "image released", slog.String("ref", ref), slog.Bool("deleted", deleted))
}
