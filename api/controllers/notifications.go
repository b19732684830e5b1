package controllers

import (
	"net/http"

	"github.com/safetrackhq/safetrack-backend/api/middleware"
	"github.com/safetrackhq/safetrack-backend/api/responses"
	"github.com/safetrackhq/safetrack-backend/api/validators"
	"github.com/safetrackhq/safetrack-backend/internal/notifications"
	pkgerrors "github.com/safetrackhq/safetrack-backend/pkg/errors"
	"github.com/safetrackhq/safetrack-backend/pkg/logger"
)

type updateSettingsRequest struct {
	NewFinding       *bool   `json:"new_finding"`
	StatusChange     *bool   `json:"status_change"`
	Assignment       *bool   `json:"assignment"`
	DailySummary     *bool   `json:"daily_summary"`
	WeeklySummary    *bool   `json:"weekly_summary"`
	DailySummaryTime *string `json:"daily_summary_time"`
}

// NotificationSettingsGet serves the caller's preferences.
func NotificationSettingsGet(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		settings, err := svc.GetSettings(r.Context(), identity, identity.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, settings)
	}
}

// NotificationSettingsUpdate applies partial preference changes.
func NotificationSettingsUpdate(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var body updateSettingsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settings, err := svc.UpdateSettings(r.Context(), identity, identity.UserID, notifications.UpdateSettingsInput{
			NewFinding:       body.NewFinding,
			StatusChange:     body.StatusChange,
			Assignment:       body.Assignment,
			DailySummary:     body.DailySummary,
			WeeklySummary:    body.WeeklySummary,
			DailySummaryTime: body.DailySummaryTime,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, settings)
	}
}

// NotificationTest sends a test message to the caller's linked chat.
func NotificationTest(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		if err := svc.SendTest(r.Context(), identity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "sent"})
	}
}
