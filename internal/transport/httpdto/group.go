package httpdto

import "mingle-gateway/internal/domain"

type CreateGroupRequest struct {
	Name    string        `json:"name"`
	Members []string      `json:"members"`
	Avatar  *domain.Media `json:"avatar,omitempty"`
}

type GroupMembersRequest struct {
	Members []string `json:"members"`
}

type TransferAdminRequest struct {
	NewAdmin string `json:"newAdmin"`
}

type UpdateGroupRequest struct {
	Name   *string       `json:"name,omitempty"`
	Avatar *domain.Media `json:"avatar,omitempty"`
}
