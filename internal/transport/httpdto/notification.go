package httpdto

import "mingle-gateway/internal/domain"

// CreateNotificationRequest is used by sibling services to push a
// notification through the gateway.
type CreateNotificationRequest struct {
	UserID         string                  `json:"userId"`
	Type           domain.NotificationType `json:"type"`
	Title          string                  `json:"title,omitempty"`
	Message        string                  `json:"message,omitempty"`
	RelatedUser    string                  `json:"relatedUser,omitempty"`
	RelatedPost    string                  `json:"relatedPost,omitempty"`
	RelatedComment string                  `json:"relatedComment,omitempty"`
}

type ListNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}
