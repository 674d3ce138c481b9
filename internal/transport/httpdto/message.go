package httpdto

import "mingle-gateway/internal/domain"

type ListMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

type ReactRequest struct {
	Emoji string `json:"emoji"`
}
