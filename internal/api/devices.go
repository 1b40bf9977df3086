package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-zigbee/internal/bridges/zigbee"
	"github.com/nerrad567/gray-logic-zigbee/internal/converters"
	"github.com/nerrad567/gray-logic-zigbee/internal/device"
)

// deviceView is a device plus whether its model has a definition.
type deviceView struct {
	device.Device
	Model     string `json:"model,omitempty"`
	Supported bool   `json:"supported"`
}

func (s *Server) viewOf(d *device.Device) deviceView {
	v := deviceView{Device: *d}
	if m, ok := s.models.FindByZigbeeModel(d.ModelID); ok {
		v.Model = m.Model
		v.Supported = true
	}
	return v
}

// lookupDevice resolves the {id} URL parameter, which may be an IEEE address
// or a friendly name. Names containing '/' must be sent escaped as %2F.
func (s *Server) lookupDevice(w http.ResponseWriter, r *http.Request) (*device.Device, bool) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid device id")
		return nil, false
	}

	dev, err := s.registry.Resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return nil, false
		}
		writeInternalError(w, "failed to get device")
		return nil, false
	}
	return dev, true
}

// handleListDevices returns all registered devices.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.ListDevices()
	views := make([]deviceView, 0, len(devices))
	for i := range devices {
		views = append(views, s.viewOf(&devices[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleGetDevice returns a single device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.viewOf(dev))
}

// putDeviceRequest is the body of PUT /devices/{ieee}.
type putDeviceRequest struct {
	FriendlyName string `json:"friendly_name"`
	ModelID      string `json:"model_id"`
	Manufacturer string `json:"manufacturer"`
	Retain       bool   `json:"retain"`
}

// handlePutDevice creates or replaces a device. The id must be an IEEE address.
func (s *Server) handlePutDevice(w http.ResponseWriter, r *http.Request) {
	ieee := chi.URLParam(r, "id")
	if !device.IsIEEEAddress(ieee) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "device id must be an IEEE address")
		return
	}

	var req putDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev := &device.Device{
		IEEEAddress:  ieee,
		FriendlyName: req.FriendlyName,
		ModelID:      req.ModelID,
		Manufacturer: req.Manufacturer,
		Retain:       req.Retain,
	}
	if err := s.registry.Upsert(r.Context(), dev); err != nil {
		switch {
		case errors.Is(err, device.ErrNameConflict):
			writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
		case isValidationError(err):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			s.logger.Error("failed to store device", "ieee_address", ieee, "error", err)
			writeInternalError(w, "failed to store device")
		}
		return
	}
	s.gateway.SetDeviceCount(s.registry.Count())

	stored, err := s.registry.GetDevice(r.Context(), dev.IEEEAddress)
	if err != nil {
		writeInternalError(w, "failed to reload device")
		return
	}
	writeJSON(w, http.StatusOK, s.viewOf(stored))
}

// handleDeleteDevice removes a device from the registry.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	if err := s.registry.Remove(r.Context(), dev.IEEEAddress); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}
	s.gateway.SetDeviceCount(s.registry.Count())

	w.WriteHeader(http.StatusNoContent)
}

// handleGetDeviceState returns the device's last-known state from the
// configured state store.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	state, err := s.state.LoadState(r.Context(), dev.IEEEAddress)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to load device state")
		return
	}
	if state == nil {
		state = device.State{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ieee_address":  dev.IEEEAddress,
		"friendly_name": dev.Name(),
		"state":         state,
	})
}

// commandRequest is the body of POST /devices/{id}/command.
type commandRequest struct {
	Kind     string          `json:"kind"`     // "set" (default) or "get"
	Endpoint string          `json:"endpoint"` // optional qualifier, e.g. "left"
	Payload  json.RawMessage `json:"payload"`
}

// handleDeviceCommand injects a command into the gateway as if it had arrived
// on <base>/<name>[/<endpoint>]/<kind>. The command is queued; its result is
// visible on the device's state topic.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Kind == "" {
		req.Kind = string(converters.KindSet)
	}
	kind, valid := converters.ParseKind(req.Kind)
	if !valid {
		writeBadRequest(w, "kind must be set or get")
		return
	}
	if req.Endpoint != "" && !zigbee.IsQualifier(req.Endpoint) {
		writeBadRequest(w, "unknown endpoint qualifier")
		return
	}
	if len(req.Payload) == 0 {
		writeBadRequest(w, "payload is required")
		return
	}

	addr := zigbee.Address{DeviceSelector: dev.Name(), Kind: kind, SubEndpoint: req.Endpoint}
	topic := s.baseTopic + "/" + addr.Topic() + "/" + string(kind)

	if !s.gateway.HandleMessage(topic, req.Payload) {
		writeBadRequest(w, "device name does not form a command topic")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"topic": topic})
}

// modelView describes a model definition.
type modelView struct {
	Model        string           `json:"model"`
	Vendor       string           `json:"vendor"`
	Description  string           `json:"description"`
	ZigbeeModels []string         `json:"zigbee_models"`
	Endpoints    map[string]uint8 `json:"endpoints,omitempty"`
	Keys         []string         `json:"keys"`
}

// handleListModels returns the model catalogue.
func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	models := s.models.Models()
	views := make([]modelView, 0, len(models))
	for _, m := range models {
		views = append(views, modelView{
			Model:        m.Model,
			Vendor:       m.Vendor,
			Description:  m.Description,
			ZigbeeModels: m.ZigbeeModel,
			Endpoints:    m.Endpoints,
			Keys:         m.Keys(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": views, "count": len(views)})
}

// isValidationError checks whether an error is a device validation error.
func isValidationError(err error) bool {
	return errors.Is(err, device.ErrInvalidDevice) ||
		errors.Is(err, device.ErrInvalidAddress) ||
		errors.Is(err, device.ErrInvalidName)
}
