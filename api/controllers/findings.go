package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/safetrackhq/safetrack-backend/api/middleware"
	"github.com/safetrackhq/safetrack-backend/api/responses"
	"github.com/safetrackhq/safetrack-backend/api/validators"
	"github.com/safetrackhq/safetrack-backend/internal/access"
	"github.com/safetrackhq/safetrack-backend/internal/findings"
	"github.com/safetrackhq/safetrack-backend/pkg/enums"
	pkgerrors "github.com/safetrackhq/safetrack-backend/pkg/errors"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
	"github.com/safetrackhq/safetrack-backend/pkg/pagination"
)

type photoRequest struct {
	StorageKey       string  `json:"storage_key" validate:"required"`
	OriginalFilename *string `json:"original_filename"`
	MimeType         *string `json:"mime_type"`
	SizeBytes        *int64  `json:"size_bytes"`
}

type createFindingRequest struct {
	Title       string         `json:"title" validate:"required,max=200"`
	Description string         `json:"description" validate:"required"`
	Severity    string         `json:"severity" validate:"required,oneof=low medium high critical"`
	Location    *string        `json:"location"`
	AreaID      string         `json:"area_id" validate:"required,uuid"`
	ReportedAt  *time.Time     `json:"reported_at"`
	Photos      []photoRequest `json:"photos" validate:"dive"`
}

type transitionRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes"`
}

func actorFromRequest(r *http.Request) (access.Identity, error) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return access.Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return identity, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, 1_000_000)
	if err != nil {
		return pagination.Params{}, err
	}
	pageSize, err := validators.ParseQueryInt(r, "page_size", pagination.DefaultPageSize, 1, pagination.MaxPageSize)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Page: page, PageSize: pageSize}, nil
}

// FindingsList serves the filtered, paged finding listing.
func FindingsList(svc findings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := findings.ListFindingsParams{
			Severity: validators.ParseQueryString(r, "severity"),
			Status:   validators.ParseQueryString(r, "status"),
		}
		if params.AreaID, err = validators.ParseQueryUUID(r, "area_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.AssigneeID, err = validators.ParseQueryUUID(r, "assigned_to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.DateFrom, err = validators.ParseQueryDate(r, "date_from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.DateTo, err = validators.ParseQueryDate(r, "date_to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.Page, err = pageParams(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// FindingDetail serves one finding with its nested refs and history.
func FindingDetail(svc findings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathUUID(chi.URLParam(r, "findingId"), "findingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		finding, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, finding)
	}
}

// FindingCreate reports a new finding.
func FindingCreate(svc findings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createFindingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		areaID, err := uuid.Parse(body.AreaID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "area_id must be a uuid"))
			return
		}

		input := findings.CreateFindingInput{
			Title:       validators.SanitizeString(body.Title, 200),
			Description: validators.SanitizeString(body.Description, 0),
			Severity:    enums.Severity(body.Severity),
			Location:    body.Location,
			AreaID:      areaID,
			ReportedAt:  body.ReportedAt,
		}
		for _, photo := range body.Photos {
			input.Photos = append(input.Photos, findings.PhotoInput{
				StorageKey:       photo.StorageKey,
				OriginalFilename: photo.OriginalFilename,
				MimeType:         photo.MimeType,
				SizeBytes:        photo.SizeBytes,
			})
		}

		finding, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, finding)
	}
}

// FindingTransition moves a finding through its lifecycle.
func FindingTransition(svc findings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathUUID(chi.URLParam(r, "findingId"), "findingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body transitionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		finding, err := svc.Transition(r.Context(), actor, id, findings.TransitionInput{
			TargetStatus: enums.FindingStatus(body.Status),
			Note:         body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, finding)
	}
}

// FindingAssign sets or clears the finding's assignee.
func FindingAssign(svc findings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathUUID(chi.URLParam(r, "findingId"), "findingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assigneeID, err := validators.ParseQueryUUID(r, "assigned_to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		finding, err := svc.Assign(r.Context(), actor, id, assigneeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, finding)
	}
}

// FindingPhotoAppend attaches photo metadata to an existing finding.
func FindingPhotoAppend(svc findings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathUUID(chi.URLParam(r, "findingId"), "findingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body photoRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		finding, err := svc.AppendPhoto(r.Context(), actor, id, findings.PhotoInput{
			StorageKey:       body.StorageKey,
			OriginalFilename: body.OriginalFilename,
			MimeType:         body.MimeType,
			SizeBytes:        body.SizeBytes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, finding)
	}
}

// FindingsSummary serves the aggregate report over an optional date window.
func FindingsSummary(svc findings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		from, err := validators.ParseQueryDate(r, "date_from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryDate(r, "date_to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Summary(r.Context(), actor, from, to)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}
