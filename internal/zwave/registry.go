package zwave

import (
	"fmt"
	"iter"
	"maps"
	"slices"
)

// UpdateResult describes the effect of Registry.UpdateEndpoint.
type UpdateResult struct {
	// Endpoint is a copy of the endpoint after the update.
	Endpoint Endpoint

	NodeCreated     bool
	EndpointCreated bool

	// Changed is true when a known attribute took a new value.
	Changed bool
}

// NodeSnapshot is a read-only copy of a node's discovery progress.
type NodeSnapshot struct {
	ID           int              `json:"node_id"`
	Alive        bool             `json:"alive"`
	Status       string           `json:"status"`
	State        string           `json:"discovery_state"`
	ToneCount    int              `json:"tone_count"`
	Tones        []ToneDefinition `json:"tones"`
	MissingTones []int            `json:"missing_tones,omitempty"`
	Endpoints    []Endpoint       `json:"endpoints"`
	Complete     bool             `json:"complete"`
}

// Registry holds every discovered sound switch node.
type Registry struct {
	nodes map[int]*Node
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[int]*Node)}
}

// UpdateEndpoint records an endpoint attribute value, creating the node and
// endpoint on first sight. Attributes other than defaultVolume and toneId
// still register the endpoint but store nothing.
func (r *Registry) UpdateEndpoint(nodeID, endpointID int, attribute string, value int) UpdateResult {
	var res UpdateResult

	node, ok := r.nodes[nodeID]
	if !ok {
		node = NewNode(nodeID)
		r.nodes[nodeID] = node
		res.NodeCreated = true
	}

	ep, ok := node.Endpoints[endpointID]
	if !ok {
		ep = newEndpoint(nodeID, endpointID)
		node.Endpoints[endpointID] = ep
		res.EndpointCreated = true
	}

	if value >= 0 {
		res.Changed = ep.set(attribute, value)
	}
	res.Endpoint = *ep

	return res
}

// UpdateNodeStatus records a node's liveliness.
func (r *Registry) UpdateNodeStatus(nodeID int, alive bool, status string) error {
	node, ok := r.nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNodeNotFound, nodeID)
	}
	node.Alive = alive
	node.Status = status
	return nil
}

// Node returns the live node for id. Callers must not retain it beyond the
// current event.
func (r *Registry) Node(id int) (*Node, bool) {
	n, ok := r.nodes[id]
	return n, ok
}

// Endpoint returns a copy of one endpoint.
func (r *Registry) Endpoint(nodeID, endpointID int) (Endpoint, error) {
	node, ok := r.nodes[nodeID]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %d", ErrNodeNotFound, nodeID)
	}
	ep, ok := node.Endpoints[endpointID]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: node %d endpoint %d", ErrEndpointNotFound, nodeID, endpointID)
	}
	return *ep, nil
}

// IsNodeComplete reports whether the node is alive with finished tone discovery.
func (r *Registry) IsNodeComplete(nodeID int) bool {
	node, ok := r.nodes[nodeID]
	return ok && node.IsComplete()
}

// Len returns the number of known nodes.
func (r *Registry) Len() int {
	return len(r.nodes)
}

// NodeIDs returns the known node ids in ascending order.
func (r *Registry) NodeIDs() []int {
	return slices.Sorted(maps.Keys(r.nodes))
}

// Endpoints yields a copy of every endpoint together with a copy of its
// node's tone catalog taken at the moment the endpoint is yielded.
// Nodes and endpoints are visited in ascending id order.
func (r *Registry) Endpoints() iter.Seq2[Endpoint, ToneCatalog] {
	return func(yield func(Endpoint, ToneCatalog) bool) {
		for _, id := range r.NodeIDs() {
			node, ok := r.nodes[id]
			if !ok {
				continue
			}
			if !yieldNode(node, yield) {
				return
			}
		}
	}
}

// NodeEndpoints is Endpoints restricted to one node.
func (r *Registry) NodeEndpoints(nodeID int) iter.Seq2[Endpoint, ToneCatalog] {
	return func(yield func(Endpoint, ToneCatalog) bool) {
		if node, ok := r.nodes[nodeID]; ok {
			yieldNode(node, yield)
		}
	}
}

func yieldNode(node *Node, yield func(Endpoint, ToneCatalog) bool) bool {
	for _, epID := range slices.Sorted(maps.Keys(node.Endpoints)) {
		ep, ok := node.Endpoints[epID]
		if !ok {
			continue
		}
		if !yield(*ep, node.Tones.Clone()) {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of every node's discovery progress.
func (r *Registry) Snapshot() []NodeSnapshot {
	out := make([]NodeSnapshot, 0, len(r.nodes))
	for _, id := range r.NodeIDs() {
		node := r.nodes[id]
		snap := NodeSnapshot{
			ID:           node.ID,
			Alive:        node.Alive,
			Status:       node.Status,
			State:        node.State.String(),
			ToneCount:    node.ToneCount,
			MissingTones: node.MissingTones(),
			Complete:     node.IsComplete(),
		}
		for _, toneID := range node.Tones.IDs() {
			snap.Tones = append(snap.Tones, node.Tones[toneID])
		}
		for _, epID := range slices.Sorted(maps.Keys(node.Endpoints)) {
			snap.Endpoints = append(snap.Endpoints, *node.Endpoints[epID])
		}
		out = append(out, snap)
	}
	return out
}
