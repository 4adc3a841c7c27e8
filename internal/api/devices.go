package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-soundswitch/internal/device"
)

// levelRequest is the body of PUT /devices/{handle}/level. Exactly one of
// the fields must be set.
type levelRequest struct {
	Level *int `json:"level,omitempty"`
	On    bool `json:"on,omitempty"`
	Off   bool `json:"off,omitempty"`
}

func (req levelRequest) command() (device.Command, error) {
	set := 0
	if req.Level != nil {
		set++
	}
	if req.On {
		set++
	}
	if req.Off {
		set++
	}
	if set != 1 {
		return device.Command{}, errors.New("exactly one of level, on or off is required")
	}

	switch {
	case req.Off:
		return device.Command{Action: device.ActionOff}, nil
	case req.On:
		return device.Command{Action: device.ActionOn}, nil
	default:
		return device.Command{Action: device.ActionSetLevel, Level: *req.Level}, nil
	}
}

// parseHandle reads the {handle} URL parameter.
func parseHandle(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "handle")
	h, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("handle must be an integer")
	}
	if err := device.ValidateHandle(h); err != nil {
		return 0, err
	}
	return h, nil
}

// handleListDevices returns all devices, optionally filtered by kind or node.
//
// Query parameters:
//   - kind: volume or tone
//   - node_id: Z-Wave node id
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	kind := device.Kind(r.URL.Query().Get("kind"))
	nodeID := 0
	if raw := r.URL.Query().Get("node_id"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "node_id must be an integer")
			return
		}
		nodeID = n
	}

	devices := s.registry.ListDevices()
	if kind != "" || nodeID != 0 {
		filtered := devices[:0]
		for _, d := range devices {
			if kind != "" && d.Kind != kind {
				continue
			}
			if nodeID != 0 && d.NodeID != nodeID {
				continue
			}
			filtered = append(filtered, d)
		}
		devices = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by handle.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	dev, err := s.registry.GetDevice(r.Context(), handle)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a device from the host. The registry's remove
// hook releases the handle on the bridge side.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.registry.DeleteDevice(r.Context(), handle); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("device delete failed", "handle", handle, "error", err)
		writeInternalError(w, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSetLevel sends a level, on or off command to a device.
func (s *Server) handleSetLevel(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	var req levelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	cmd, err := req.command()
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	if err := s.registry.SendCommand(r.Context(), handle, cmd); err != nil {
		s.logger.Warn("device command failed", "handle", handle, "action", cmd.Action, "error", err)
		writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"handle": handle,
		"action": cmd.Action,
		"level":  cmd.Level,
		"status": "sent",
	})
}

// handleDeviceStats returns device counts by kind.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.GetStats())
}
