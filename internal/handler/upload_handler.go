package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mingle-gateway/internal/auth"
	"mingle-gateway/internal/media"
	"mingle-gateway/internal/transport/httpdto"
)

type UploadHandler struct {
	uploader *media.Uploader
}

func NewUploadHandler(uploader *media.Uploader) *UploadHandler {
	return &UploadHandler{uploader: uploader}
}

// Presign hands the client a time-limited PUT URL. The gateway never
// proxies attachment bytes.
func (h *UploadHandler) Presign(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	if h.uploader == nil {
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("uploads not configured", "UNAVAILABLE"))
		return
	}

	var req media.PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	res, err := h.uploader.PresignPut(c.Request.Context(), identity.ID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}
