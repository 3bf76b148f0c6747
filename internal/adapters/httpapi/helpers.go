package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"biograph/pkg/analysis"
	"biograph/pkg/bel"
	"biograph/pkg/domain"
	"biograph/pkg/query"
)

// actorHeader optionally identifies the requesting user. Authentication lives
// in front of this service; an absent header means an anonymous request.
const actorHeader = "X-User-ID"

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeServiceError maps the service's typed errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		notFound  domain.ErrNotFound
		conflict  domain.ErrConflict
		transient domain.ErrTransient
		malformed analysis.MalformedInputError
		step      query.PipelineStepError
		violation domain.RuleViolationError
	)
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &violation):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &malformed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &step):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &transient):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// actorID extracts the optional acting user from the request headers.
func actorID(r *http.Request) (*int64, error) {
	raw := r.Header.Get(actorHeader)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

// graphPayload is the wire form of a derived graph.
type graphPayload struct {
	Name    string     `json:"name"`
	Version string     `json:"version"`
	Nodes   []bel.Node `json:"nodes"`
	Edges   []bel.Edge `json:"edges"`
}

func renderGraph(g *bel.Graph) graphPayload {
	return graphPayload{
		Name:    g.Name,
		Version: g.Version,
		Nodes:   g.Nodes(),
		Edges:   g.Edges(),
	}
}
