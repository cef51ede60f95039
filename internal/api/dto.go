package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/obridge/internal/bridge"
	"github.com/starford/obridge/internal/models"
	"github.com/starford/obridge/internal/settings"
)

// RunReport is the response of a pipeline trigger (aliased from the domain layer).
type RunReport = bridge.Report

// SettingsBody is the request and response body of /settings.
type SettingsBody = settings.Settings

// ExclusionResponse is returned by the exclusion actions.
type ExclusionResponse = bridge.ExclusionResult

// LinkRequest is the optional body of POST /link.
type LinkRequest struct {
	DryRun bool `json:"dry_run" example:"true"`
}

// PathRequest names a vault-relative file or directory.
type PathRequest struct {
	Path string `json:"path" example:"notes/Secret.md" validate:"required"`
}

// Validate validates the request.
func (r PathRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
	)
}

// FlagsRequest changes the flags of an existing exclusion rule.
type FlagsRequest struct {
	Kind               string `json:"kind" example:"file" validate:"required"`
	Name               string `json:"name" example:"Secret" validate:"required"`
	CanLinkFromOutside bool   `json:"canLinkFromOutside"`
	CanBeLinked        bool   `json:"canBeLinked"`
}

// Validate validates the request.
func (r FlagsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required, validation.In("file", "directory")),
		validation.Field(&r.Name, validation.Required),
	)
}

// RunListResponse wraps run history.
type RunListResponse struct {
	Runs []models.Run `json:"runs" validate:"required"`
}
