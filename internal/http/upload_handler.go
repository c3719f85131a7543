package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tuanvumaihuynh/stock-ledger/internal/apperr"
	"github.com/tuanvumaihuynh/stock-ledger/internal/service"
)

const (
	imageUploadField = "imagem"

	// multipartOverhead leaves room for boundaries and part headers on top of
	// the file size limit.
	multipartOverhead = 1 << 20
)

type uploadHandler struct {
	*responder

	imageSvc       service.ImageService
	maxUploadBytes int64
}

func newUploadHandler(resp *responder, imageSvc service.ImageService, maxUploadBytes int64) *uploadHandler {
	return &uploadHandler{
		responder:      resp,
		imageSvc:       imageSvc,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *uploadHandler) uploadImage(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)

	file, header, err := r.FormFile(imageUploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrMissingFile):
			return apperr.InvalidUploadErr.WithMsg("no file sent")
		case errors.As(err, &maxErr):
			return apperr.InvalidUploadErr.WithMsg(fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes))
		default:
			return apperr.InvalidUploadErr.WrapParent(err)
		}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return apperr.InvalidUploadErr.WrapParent(err)
	}

	ref, err := h.imageSvc.UploadImage(r.Context(), service.UploadImageParams{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		return fmt.Errorf("image service upload image: %w", err)
	}

	return h.writeJSON(w, r, http.StatusOK, uploadResponse{
		ImageRef: ref,
		Message:  "Imagem enviada com sucesso",
	})
}
