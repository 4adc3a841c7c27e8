package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-soundswitch/internal/device"
)

// SystemMetrics is the JSON snapshot served on /api/v1/system. Counters live
// on /metrics; this is the at-a-glance view for operators.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	Bridge        *BridgeMetrics  `json:"bridge,omitempty"`
	Devices       device.Stats    `json:"devices"`
	Mappings      MappingsMetrics `json:"mappings"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// BridgeMetrics summarises discovery progress.
type BridgeMetrics struct {
	GatewayReady bool `json:"gateway_ready"`
	Nodes        int  `json:"nodes"`
	NodesReady   int  `json:"nodes_ready"`
	Complete     bool `json:"complete"`
}

// MappingsMetrics counts handles in use.
type MappingsMetrics struct {
	InUse int `json:"in_use"`
}

// handleSystemMetrics returns runtime and bridge counters as JSON.
func (s *Server) handleSystemMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Devices: s.registry.GetStats(),
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
	}
	if s.mqtt != nil {
		metrics.MQTT.Connected = s.mqtt.IsConnected()
	}
	if s.bridge != nil {
		st := s.bridge.Status()
		metrics.Bridge = &BridgeMetrics{
			GatewayReady: st.GatewayReady,
			Nodes:        len(st.Nodes),
			NodesReady:   st.NodesReady,
			Complete:     st.Complete(),
		}
	}
	if s.mappings != nil {
		metrics.Mappings.InUse = len(s.mappings.Entries())
	}

	writeJSON(w, http.StatusOK, metrics)
}
