package devices

import (
	"errors"
	"net/http"

	"github.com/strefethen/soundtouch-hub-go/internal/apperrors"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch"
)

// toAppError maps device errors to HTTP errors.
func toAppError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var details map[string]any
	var presetErr *soundtouch.PresetError
	if errors.As(err, &presetErr) {
		details = map[string]any{"preset_id": presetErr.ID}
	}

	code, status := apperrors.ErrorCodeInternalError, http.StatusInternalServerError
	switch {
	case errors.Is(err, soundtouch.ErrDeviceNotFound):
		code, status = apperrors.ErrorCodeDeviceNotFound, http.StatusNotFound
	case errors.Is(err, ErrDeviceOffline):
		code, status = apperrors.ErrorCodeDeviceOffline, http.StatusServiceUnavailable
	case errors.Is(err, soundtouch.ErrNoPresetFound):
		code, status = apperrors.ErrorCodePresetNotFound, http.StatusNotFound
	case errors.Is(err, soundtouch.ErrContentItemNotPresetable):
		code, status = apperrors.ErrorCodePresetNotStorable, http.StatusConflict
	case errors.Is(err, soundtouch.ErrReservedPresetID), errors.Is(err, soundtouch.ErrInvalidPresetID):
		code, status = apperrors.ErrorCodeValidationError, http.StatusBadRequest
	case errors.Is(err, soundtouch.ErrPresetPersistence):
		code, status = apperrors.ErrorCodePresetPersistence, http.StatusInternalServerError
	case errors.Is(err, soundtouch.ErrModeUnavailable), errors.Is(err, soundtouch.ErrNoPresetForMode):
		code, status = apperrors.ErrorCodeModeUnavailable, http.StatusConflict
	case errors.Is(err, soundtouch.ErrBassUnsupported):
		code, status = apperrors.ErrorCodeCapabilityMissing, http.StatusConflict
	case errors.Is(err, soundtouch.ErrNoContentItem):
		code, status = apperrors.ErrorCodeNothingPlaying, http.StatusConflict
	case errors.Is(err, soundtouch.ErrAlreadyZoneMember), errors.Is(err, soundtouch.ErrNotZoneMember), errors.Is(err, soundtouch.ErrZoneSelf):
		code, status = apperrors.ErrorCodeZoneConflict, http.StatusConflict
	case errors.Is(err, ErrInvalidCommand), errors.Is(err, soundtouch.ErrUnknownPlayerCommand), errors.Is(err, soundtouch.ErrUnknownRemoteKey):
		code, status = apperrors.ErrorCodeInvalidCommand, http.StatusBadRequest
	}

	message := err.Error()
	if status == http.StatusInternalServerError && code == apperrors.ErrorCodeInternalError {
		message = "Device command failed"
	}
	return apperrors.NewAppError(code, message, status, details).Wrap(err)
}
