package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"mingle-gateway/internal/auth"
	"mingle-gateway/internal/domain"
	"mingle-gateway/internal/notify"
	"mingle-gateway/internal/transport/httpdto"
)

type NotificationHandler struct {
	service *notify.Service
}

func NewNotificationHandler(service *notify.Service) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// Create accepts a notification from a sibling service and fans it out
// to the owner's personal room.
func (h *NotificationHandler) Create(c *gin.Context) {
	var req httpdto.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	owner, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	refs := domain.NotificationRefs{}
	if refs.RelatedUser, err = optionalID(req.RelatedUser); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid relatedUser", "INVALID_REQUEST"))
		return
	}
	if refs.RelatedPost, err = optionalID(req.RelatedPost); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid relatedPost", "INVALID_REQUEST"))
		return
	}
	if refs.RelatedComment, err = optionalID(req.RelatedComment); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid relatedComment", "INVALID_REQUEST"))
		return
	}

	n, err := h.service.Notify(c.Request.Context(), owner, req.Type, req.Title, req.Message, refs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(n))
}

func (h *NotificationHandler) List(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	before := time.Time{}
	if raw := c.Query("before"); raw != "" {
		var err error
		before, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid before timestamp", "INVALID_REQUEST"))
			return
		}
	}

	items, err := h.service.List(c.Request.Context(), identity.ID, limit, before)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListNotificationsResponse{Notifications: items}))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid notification id", "INVALID_REQUEST"))
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), identity.ID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func optionalID(hex string) (*primitive.ObjectID, error) {
	if hex == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
