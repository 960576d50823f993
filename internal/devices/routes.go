package devices

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/strefethen/soundtouch-hub-go/internal/api"
	"github.com/strefethen/soundtouch-hub-go/internal/apperrors"
	"github.com/strefethen/soundtouch-hub-go/internal/auth"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch/events"
)

func rfc3339Millis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// RegisterRoutes wires device routes to the router. cache may be nil.
func RegisterRoutes(router chi.Router, service *Service, cache *events.StateCache) {
	h := &handlers{service: service, cache: cache}

	router.Method(http.MethodGet, "/v1/devices", api.Handler(func(w http.ResponseWriter, r *http.Request) error {
		devices := service.List()
		formatted := make([]map[string]any, 0, len(devices))
		for _, device := range devices {
			formatted = append(formatted, h.formatDevice(device))
		}
		return api.WriteList(w, "/v1/devices", formatted, false)
	}))

	router.Method(http.MethodGet, "/v1/devices/{device_id}", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		return api.WriteResource(w, http.StatusOK, h.formatDevice(device))
	}))

	router.Method(http.MethodPost, "/v1/devices/{device_id}/volume", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		var body struct {
			Volume *int `json:"volume"`
		}
		if err := decode(r, &body); err != nil {
			return err
		}
		if body.Volume == nil || *body.Volume < 0 || *body.Volume > 100 {
			return apperrors.NewValidationError("volume must be between 0 and 100", nil)
		}
		return h.command(w, r, device, "volume", map[string]any{"volume": *body.Volume}, func(exec *soundtouch.Executor) error {
			exec.SetVolume(*body.Volume)
			return nil
		})
	}))

	router.Method(http.MethodPost, "/v1/devices/{device_id}/bass", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		var body struct {
			Bass *int `json:"bass"`
		}
		if err := decode(r, &body); err != nil {
			return err
		}
		if body.Bass == nil {
			return apperrors.NewValidationError("bass is required", nil)
		}
		return h.command(w, r, device, "bass", map[string]any{"bass": *body.Bass}, func(exec *soundtouch.Executor) error {
			return exec.SetBass(*body.Bass)
		})
	}))

	router.Method(http.MethodPost, "/v1/devices/{device_id}/power", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		on, err := decodeSwitch(r)
		if err != nil {
			return err
		}
		return h.command(w, r, device, "power", map[string]any{"on": on}, func(exec *soundtouch.Executor) error {
			exec.SetPower(on)
			return nil
		})
	}))

	router.Method(http.MethodPost, "/v1/devices/{device_id}/mute", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		on, err := decodeSwitch(r)
		if err != nil {
			return err
		}
		return h.command(w, r, device, "mute", map[string]any{"on": on}, func(exec *soundtouch.Executor) error {
			exec.SetMute(on)
			return nil
		})
	}))

	router.Method(http.MethodPost, "/v1/devices/{device_id}/mode", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		var body struct {
			Mode string `json:"mode"`
		}
		if err := decode(r, &body); err != nil {
			return err
		}
		mode, ok := soundtouch.ParseOperationMode(body.Mode)
		if !ok {
			return apperrors.NewAppError(apperrors.ErrorCodeInvalidCommand, "Unknown operation mode", http.StatusBadRequest, map[string]any{"mode": body.Mode})
		}
		return h.command(w, r, device, "mode", map[string]any{"mode": string(mode)}, func(exec *soundtouch.Executor) error {
			return exec.SelectOperationMode(mode)
		})
	}))

	router.Method(http.MethodPost, "/v1/devices/{device_id}/player", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		var body struct {
			Command string `json:"command"`
		}
		if err := decode(r, &body); err != nil {
			return err
		}
		return h.command(w, r, device, "player", map[string]any{"command": body.Command}, func(exec *soundtouch.Executor) error {
			return exec.SetPlayerControl(soundtouch.PlayerCommand(body.Command))
		})
	}))

	router.Method(http.MethodPost, "/v1/devices/{device_id}/key", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		var body struct {
			Key string `json:"key"`
		}
		if err := decode(r, &body); err != nil {
			return err
		}
		key, err := soundtouch.ParseRemoteKey(body.Key)
		if err != nil {
			return toAppError(err)
		}
		return h.command(w, r, device, "key", map[string]any{"key": string(key)}, func(exec *soundtouch.Executor) error {
			exec.SendKey(key)
			return nil
		})
	}))

	router.Method(http.MethodPost, "/v1/devices/{device_id}/control", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		var body struct {
			Command string `json:"command"`
		}
		if err := decode(r, &body); err != nil {
			return err
		}
		cmd, err := ParseControlCommand(body.Command)
		if err != nil {
			return toAppError(err)
		}
		if err := service.Control(commandMeta(r), device, cmd); err != nil {
			return toAppError(err)
		}
		return h.writeCommandResult(w, device, "control")
	}))

	router.Method(http.MethodGet, "/v1/devices/{device_id}/presets", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		presets := device.presets.All()
		formatted := make([]map[string]any, 0, len(presets))
		for _, preset := range presets {
			formatted = append(formatted, formatPreset(preset))
		}
		return api.WriteList(w, "/v1/devices/"+device.ID()+"/presets", formatted, false)
	}))

	router.Method(http.MethodPost, "/v1/devices/{device_id}/presets/next", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		return h.command(w, r, device, "preset_next", nil, (*soundtouch.Executor).SelectNextPreset)
	}))

	router.Method(http.MethodPost, "/v1/devices/{device_id}/presets/previous", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		return h.command(w, r, device, "preset_previous", nil, (*soundtouch.Executor).SelectPreviousPreset)
	}))

	router.Method(http.MethodPost, "/v1/devices/{device_id}/presets/{preset_id}/select", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		id, err := presetID(r)
		if err != nil {
			return err
		}
		return h.command(w, r, device, "preset_select", map[string]any{"preset_id": id}, func(exec *soundtouch.Executor) error {
			return exec.SelectPreset(id)
		})
	}))

	router.Method(http.MethodPut, "/v1/devices/{device_id}/presets/{preset_id}", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		id, err := presetID(r)
		if err != nil {
			return err
		}
		err = service.Apply(commandMeta(r), device, "preset_store", map[string]any{"preset_id": id}, func(exec *soundtouch.Executor) error {
			return exec.StoreCurrentAsPreset(id)
		})
		if err != nil {
			return toAppError(err)
		}
		preset, err := device.presets.Get(id)
		if err != nil {
			return toAppError(err)
		}
		return api.WriteResource(w, http.StatusOK, formatPreset(soundtouch.Preset{ID: id, Item: preset}))
	}))

	router.Method(http.MethodPost, "/v1/devices/{device_id}/zone/members", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		var body struct {
			Member string `json:"member"`
		}
		if err := decode(r, &body); err != nil {
			return err
		}
		if body.Member == "" {
			return apperrors.NewValidationError("member is required", nil)
		}
		if err := service.AddZoneMember(commandMeta(r), device, body.Member); err != nil {
			return toAppError(err)
		}
		return api.WriteResource(w, http.StatusOK, formatZone(device))
	}))

	router.Method(http.MethodDelete, "/v1/devices/{device_id}/zone/members/{member}", h.withDevice(func(w http.ResponseWriter, r *http.Request, device *Device) error {
		if err := service.RemoveZoneMember(commandMeta(r), device, chi.URLParam(r, "member")); err != nil {
			return toAppError(err)
		}
		return api.WriteResource(w, http.StatusOK, formatZone(device))
	}))
}

type handlers struct {
	service *Service
	cache   *events.StateCache
}

func (h *handlers) withDevice(fn func(w http.ResponseWriter, r *http.Request, device *Device) error) api.Handler {
	return func(w http.ResponseWriter, r *http.Request) error {
		device, err := h.service.Device(chi.URLParam(r, "device_id"))
		if err != nil {
			return toAppError(err)
		}
		return fn(w, r, device)
	}
}

func (h *handlers) command(w http.ResponseWriter, r *http.Request, device *Device, name string, payload map[string]any, fn func(exec *soundtouch.Executor) error) error {
	if err := h.service.Apply(commandMeta(r), device, name, payload, fn); err != nil {
		return toAppError(err)
	}
	return h.writeCommandResult(w, device, name)
}

func (h *handlers) writeCommandResult(w http.ResponseWriter, device *Device, name string) error {
	return api.WriteAction(w, http.StatusOK, map[string]any{
		"object":  "device_command",
		"command": name,
		"status":  "sent",
		"device":  h.formatDevice(device),
	})
}

func commandMeta(r *http.Request) CommandMeta {
	meta := CommandMeta{RequestID: api.GetRequestID(r)}
	if client, ok := auth.ClientFromContext(r.Context()); ok {
		meta.ClientID = client.ID
		meta.ClientName = client.Name
	}
	return meta
}

func decode(r *http.Request, target any) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	return nil
}

func decodeSwitch(r *http.Request) (bool, error) {
	var body struct {
		On *bool `json:"on"`
	}
	if err := decode(r, &body); err != nil {
		return false, err
	}
	if body.On == nil {
		return false, apperrors.NewValidationError("on is required", nil)
	}
	return *body.On, nil
}

func presetID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "preset_id")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, apperrors.NewValidationError("preset_id must be a positive integer", map[string]any{"preset_id": raw})
	}
	return id, nil
}

func (h *handlers) formatDevice(device *Device) map[string]any {
	state := device.exec.Snapshot()
	connectedAt, lastError := device.ConnectionInfo()

	result := map[string]any{
		"object":         "device",
		"id":             state.DeviceID,
		"name":           state.Name,
		"host":           state.IPAddress,
		"connected":      device.Connected(),
		"online":         state.Online,
		"operation_mode": string(state.OperationMode),
		"muted":          state.Muted,
		"capabilities":   state.Capabilities,
		"zone":           state.Zone,
	}
	if state.ContentItem != nil {
		result["content_item"] = state.ContentItem
	}
	if !connectedAt.IsZero() {
		result["connected_at"] = rfc3339Millis(connectedAt)
	}
	if lastError != "" {
		result["last_error"] = lastError
	}
	if h.cache != nil {
		if cached := h.cache.Get(state.DeviceID); cached != nil {
			result["properties"] = cached.Properties
			result["properties_updated_at"] = rfc3339Millis(cached.UpdatedAt)
		}
	}
	return result
}

func formatPreset(preset soundtouch.Preset) map[string]any {
	return map[string]any{
		"object":   "preset",
		"id":       preset.ID,
		"hardware": preset.ID <= soundtouch.HardwarePresetCount,
		"item":     preset.Item,
	}
}

func formatZone(device *Device) map[string]any {
	zone := device.exec.ZoneSnapshot()
	return map[string]any{
		"object":    "zone",
		"device_id": device.ID(),
		"kind":      string(zone.Kind),
		"master_id": zone.MasterID,
		"members":   zone.Members,
		"info":      zone.Info,
	}
}
