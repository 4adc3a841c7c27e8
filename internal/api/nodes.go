package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-soundswitch/internal/zwave"
)

// handleStatus returns the gateway and per-node discovery state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.bridge == nil {
		writeUnavailable(w, "bridge not running")
		return
	}
	st := s.bridge.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"complete": st.Complete(),
		"bridge":   st,
	})
}

// handleListNodes returns every known node.
//
// Query parameters:
//   - pending: "true" lists only nodes whose discovery is not complete
func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeUnavailable(w, "bridge not running")
		return
	}

	nodes := s.bridge.Status().Nodes
	if r.URL.Query().Get("pending") == "true" {
		pending := make([]zwave.NodeSnapshot, 0, len(nodes))
		for _, n := range nodes {
			if !n.Complete {
				pending = append(pending, n)
			}
		}
		nodes = pending
	}

	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes, "count": len(nodes)})
}

// handleGetNode returns one node with its endpoints and tone catalog.
func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeUnavailable(w, "bridge not running")
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeBadRequest(w, "node id must be a positive integer")
		return
	}

	node, err := s.bridge.Node(id)
	if err != nil {
		if errors.Is(err, zwave.ErrNodeNotFound) {
			writeNotFound(w, "node not found")
			return
		}
		writeInternalError(w, "failed to get node")
		return
	}

	writeJSON(w, http.StatusOK, node)
}

// handleListMappings returns the persisted handle mapping ordered by handle.
func (s *Server) handleListMappings(w http.ResponseWriter, _ *http.Request) {
	if s.mappings == nil {
		writeUnavailable(w, "mapping not available")
		return
	}
	entries := s.mappings.Entries()
	writeJSON(w, http.StatusOK, map[string]any{"mappings": entries, "count": len(entries)})
}
