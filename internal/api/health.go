package api

import (
	"net/http"
)

// SpaceStatus reports one open space's liveness for the health endpoint.
type SpaceStatus struct {
	RootVertexID  string `json:"rootVertexId"`
	WatcherActive bool   `json:"watcherActive"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string        `json:"status"`
	PeerID string        `json:"peerId"`
	Spaces []SpaceStatus `json:"spaces"`
}

// HealthHandler answers liveness queries for the running peer: its id and
// which spaces it currently has open, mirroring the store/trust counters the
// original health endpoint reported but scoped to this module's own state.
type HealthHandler struct {
	peerID string
	spaces func() []SpaceStatus
}

// NewHealthHandler builds a health handler. spaces is called on every
// request so the response always reflects currently open spaces.
func NewHealthHandler(peerID string, spaces func() []SpaceStatus) *HealthHandler {
	return &HealthHandler{peerID: peerID, spaces: spaces}
}

// HandleHealth handles GET /health.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var spaces []SpaceStatus
	if h.spaces != nil {
		spaces = h.spaces()
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		PeerID: h.peerID,
		Spaces: spaces,
	})
}
