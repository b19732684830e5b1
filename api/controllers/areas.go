package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/safetrackhq/safetrack-backend/api/responses"
	"github.com/safetrackhq/safetrack-backend/api/validators"
	"github.com/safetrackhq/safetrack-backend/internal/areas"
	pkgerrors "github.com/safetrackhq/safetrack-backend/pkg/errors"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
)

type createAreaRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Description *string `json:"description"`
	ParentID    *string `json:"parent_id" validate:"omitempty,uuid"`
}

type updateAreaRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=120"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
	ParentID    *string `json:"parent_id" validate:"omitempty,uuid"`
	MoveToRoot  bool    `json:"move_to_root"`
}

func parseOptionalUUID(raw *string, field string) (*uuid.UUID, error) {
	if raw == nil {
		return nil, nil
	}
	value, err := uuid.Parse(*raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, field+" must be a uuid")
	}
	return &value, nil
}

// AreasList serves the flat listing, optionally filtered by level or parent.
func AreasList(svc areas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params areas.ListAreasParams
		if level, err := validators.ParseQueryInt(r, "level", -1, 0, 2); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		} else if level >= 0 {
			params.Level = &level
		}
		parentID, err := validators.ParseQueryUUID(r, "parent_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.ParentID = parentID

		list, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}

// AreasTree serves the nested hierarchy.
func AreasTree(svc areas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tree, err := svc.Tree(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, tree)
	}
}

// AreaDetail serves one area with its computed level and path.
func AreaDetail(svc areas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "areaId"), "areaId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		area, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, area)
	}
}

// AreaCreate adds a node to the hierarchy.
func AreaCreate(svc areas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createAreaRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		parentID, err := parseOptionalUUID(body.ParentID, "parent_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		area, err := svc.Create(r.Context(), areas.CreateAreaInput{
			Name:        validators.SanitizeString(body.Name, 120),
			Description: body.Description,
			ParentID:    parentID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, area)
	}
}

// AreaUpdate renames, re-describes, toggles, or moves a node.
func AreaUpdate(svc areas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "areaId"), "areaId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateAreaRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		parentID, err := parseOptionalUUID(body.ParentID, "parent_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		area, err := svc.Update(r.Context(), id, areas.UpdateAreaInput{
			Name:        body.Name,
			Description: body.Description,
			IsActive:    body.IsActive,
			ParentID:    parentID,
			MoveToRoot:  body.MoveToRoot,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, area)
	}
}

// AreaDelete removes a leaf node with no findings.
func AreaDelete(svc areas.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "areaId"), "areaId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
