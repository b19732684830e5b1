package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safetrackhq/safetrack-backend/api/middleware"
	"github.com/safetrackhq/safetrack-backend/api/responses"
	"github.com/safetrackhq/safetrack-backend/api/validators"
	"github.com/safetrackhq/safetrack-backend/internal/users"
	"github.com/safetrackhq/safetrack-backend/pkg/enums"
	pkgerrors "github.com/safetrackhq/safetrack-backend/pkg/errors"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
)

type createUserRequest struct {
	StaffID    string  `json:"staff_id" validate:"required,max=64"`
	FullName   string  `json:"full_name" validate:"required,max=200"`
	Department *string `json:"department"`
	Section    *string `json:"section"`
	Username   *string `json:"username"`
	TelegramID *int64  `json:"telegram_id"`
	Role       string  `json:"role" validate:"omitempty,oneof=reporter admin super_admin"`
	Password   *string `json:"password" validate:"omitempty,min=8"`
}

type updateUserRequest struct {
	FullName   *string `json:"full_name" validate:"omitempty,max=200"`
	Department *string `json:"department"`
	Section    *string `json:"section"`
	Username   *string `json:"username"`
	TelegramID *int64  `json:"telegram_id"`
	Role       *string `json:"role" validate:"omitempty,oneof=reporter admin super_admin"`
	Password   *string `json:"password" validate:"omitempty,min=8"`
	IsActive   *bool   `json:"is_active"`
}

// AdminUsersList serves the paged account listing.
func AdminUsersList(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params users.ListUsersParams
		if raw := validators.ParseQueryString(r, "role"); raw != nil {
			role := enums.Role(*raw)
			params.Role = &role
		}
		isActive, err := validators.ParseQueryBool(r, "is_active")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.IsActive = isActive
		if params.Page, err = pageParams(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// AdminUserGet serves one account.
func AdminUserGet(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "userId"), "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, user)
	}
}

// AdminUserCreate provisions an account. Elevated roles without a password
// get a one-time temporary password in the response.
func AdminUserCreate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createUserRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Create(r.Context(), users.CreateUserInput{
			StaffID:    validators.SanitizeString(body.StaffID, 64),
			FullName:   validators.SanitizeString(body.FullName, 200),
			Department: body.Department,
			Section:    body.Section,
			Username:   body.Username,
			TelegramID: body.TelegramID,
			Role:       enums.Role(body.Role),
			Password:   body.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// AdminUserUpdate edits an account's mutable fields.
func AdminUserUpdate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		id, err := validators.ParsePathUUID(chi.URLParam(r, "userId"), "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateUserRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := users.UpdateUserInput{
			FullName:   body.FullName,
			Department: body.Department,
			Section:    body.Section,
			Username:   body.Username,
			TelegramID: body.TelegramID,
			Password:   body.Password,
			IsActive:   body.IsActive,
		}
		if body.Role != nil {
			role := enums.Role(*body.Role)
			input.Role = &role
		}

		user, err := svc.Update(r.Context(), identity.UserID, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, user)
	}
}

// AdminUserActivate re-enables a deactivated account.
func AdminUserActivate(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(chi.URLParam(r, "userId"), "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Activate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, user)
	}
}
