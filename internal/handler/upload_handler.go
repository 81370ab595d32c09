package handler

import (
	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/storage"

	"github.com/gofiber/fiber/v2"
)

// UploadHandler serves stored claim proofs back to the admin console.
type UploadHandler struct {
	proofs storage.ProofStore
}

func NewUploadHandler(proofs storage.ProofStore) *UploadHandler {
	return &UploadHandler{proofs: proofs}
}

// GetProof
// GET /uploads/*
func (h *UploadHandler) GetProof(c *fiber.Ctx) error {
	data, contentType, err := h.proofs.Open(c.UserContext(), c.Params("*"))
	if err != nil {
		if storage.IsNotExist(err) {
			return fail(c, apperror.ErrFileNotFound)
		}
		return fail(c, err)
	}

	if contentType == "" {
		contentType = fiber.MIMEOctetStream
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Set(fiber.HeaderContentSecurityPolicy, "default-src 'none'; sandbox")
	if !storage.InlineSafe(contentType) {
		c.Set(fiber.HeaderContentDisposition, "attachment")
	}
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return c.Status(fiber.StatusOK).Send(data)
}
