package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/obridge/internal/apperr"
	"github.com/starford/obridge/internal/bridge"
	"github.com/starford/obridge/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *bridge.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *bridge.Service) *Handler {
	return &Handler{svc: svc}
}

// Bridge handles POST /api/bridge.
//
//	@Summary		Scan the vault and link every permitted document
//	@Tags			pipeline
//	@Produce		json
//	@Success		200	{object}	RunReport
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/bridge [post]
func (h *Handler) Bridge(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Bridge(r.Context())
	writeRun(w, rep, err)
}

// Scan handles POST /api/scan.
//
//	@Summary		Rebuild the alias snapshot
//	@Tags			pipeline
//	@Produce		json
//	@Success		200	{object}	RunReport
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scan [post]
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Scan(r.Context())
	writeRun(w, rep, err)
}

// Link handles POST /api/link. The body and the dry_run query parameter are
// both optional.
//
//	@Summary		Link documents from the stored snapshot
//	@Tags			pipeline
//	@Accept			json
//	@Produce		json
//	@Param			dry_run	query		bool		false	"Count links without writing"
//	@Param			body	body		LinkRequest	false	"Link options"
//	@Success		200		{object}	RunReport
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/link [post]
func (h *Handler) Link(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if v := r.URL.Query().Get("dry_run"); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("dry_run must be a boolean"))
			return
		}
		req.DryRun = dry
	}
	rep, err := h.svc.Link(r.Context(), bridge.LinkOptions{DryRun: req.DryRun})
	writeRun(w, rep, err)
}

func writeRun(w http.ResponseWriter, rep bridge.Report, err error) {
	if err != nil {
		if errors.Is(err, apperr.ErrRunInProgress) {
			writeJSON(w, http.StatusConflict, errorBody(err.Error()))
			return
		}
		slog.Error("run failed", slog.String("run_id", rep.ID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Snapshot handles GET /api/snapshot.
//
//	@Summary		Get the persisted alias snapshot
//	@Tags			snapshot
//	@Produce		json
//	@Success		200	{array}	models.AliasRecord
//	@Security		BearerAuth
//	@Router			/snapshot [get]
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		slog.Error("load snapshot failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Runs handles GET /api/runs.
//
//	@Summary		List recent pipeline runs
//	@Tags			snapshot
//	@Produce		json
//	@Param			limit	query		int	false	"Max runs"
//	@Success		200		{object}	RunListResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		slog.Error("list runs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if runs == nil {
		runs = []models.Run{}
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// GetSettings handles GET /api/settings.
//
//	@Summary		Get the exclusion policy and link options
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsBody
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Settings())
}

// PutSettings handles PUT /api/settings.
//
//	@Summary		Replace the settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SettingsBody	true	"Complete settings"
//	@Success		200		{object}	SettingsBody
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [put]
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SettingsBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	cur, err := h.svc.ReplaceSettings(r.Context(), req)
	if err != nil {
		slog.Error("save settings failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

// Exclude handles POST /api/exclusions.
//
//	@Summary		Exclude a file or directory
//	@Tags			exclusions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PathRequest	true	"Vault path"
//	@Success		200		{object}	ExclusionResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exclusions [post]
func (h *Handler) Exclude(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePath(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Exclude(r.Context(), req.Path)
	writeExclusion(w, req.Path, res, err)
}

// Unexclude handles DELETE /api/exclusions. The path comes from the body or
// the path query parameter.
//
//	@Summary		Remove the exclusion of a file or directory
//	@Tags			exclusions
//	@Produce		json
//	@Param			path	query		string	false	"Vault path"
//	@Success		200		{object}	ExclusionResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exclusions [delete]
func (h *Handler) Unexclude(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePath(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Unexclude(r.Context(), req.Path)
	writeExclusion(w, req.Path, res, err)
}

// SetFlags handles PATCH /api/exclusions.
//
//	@Summary		Change the link-direction flags of a rule
//	@Tags			exclusions
//	@Accept			json
//	@Param			body	body	FlagsRequest	true	"Rule and flags"
//	@Success		204		"Flags updated"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/exclusions [patch]
func (h *Handler) SetFlags(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req FlagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	kind, _ := models.ParseKind(req.Kind)
	if err := h.svc.SetFlags(r.Context(), kind, req.Name, req.CanLinkFromOutside, req.CanBeLinked); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("rule not found"))
			return
		}
		slog.Error("set flags failed", slog.String("name", req.Name), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodePath(w http.ResponseWriter, r *http.Request) (PathRequest, bool) {
	var req PathRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return req, false
	}
	if req.Path == "" {
		req.Path = r.URL.Query().Get("path")
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return req, false
	}
	return req, true
}

func writeExclusion(w http.ResponseWriter, path string, res bridge.ExclusionResult, err error) {
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		case errors.Is(err, apperr.ErrInvalidPath):
			writeJSON(w, http.StatusBadRequest, errorBody("path must stay inside the vault"))
			return
		}
		slog.Error("exclusion failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decodeOptional decodes a JSON body into v, treating an empty body as {}.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
