package httpapi

import (
	"net/http"

	"biograph/pkg/bel"
	"biograph/pkg/query"
)

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor header")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": s.service.ListQueries(r.Context(), actor)})
}

func (s *Server) handleCreateQuery(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor header")
		return
	}
	var req struct {
		NetworkIDs []int64 `json:"network_ids"`
		ProjectID  *int64  `json:"project_id"`
		Public     bool    `json:"public"`
		Seeding    string  `json:"seeding"`
		Pipeline   string  `json:"pipeline"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if req.ProjectID != nil {
		q, _, err := s.service.CreateQueryFromProject(r.Context(), *req.ProjectID, actor, req.Public)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"query": q})
		return
	}

	seeding, err := query.ParseSeeding(req.Seeding)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pipeline, err := query.ParsePipeline(req.Pipeline)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q, _, err := s.service.CreateQueryFromNetworks(r.Context(), req.NetworkIDs, actor, req.Public, seeding, pipeline)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"query": q})
}

func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query id")
		return
	}
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor header")
		return
	}
	q, err := s.service.GetQuery(r.Context(), id, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q})
}

func (s *Server) handleDeleteQuery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query id")
		return
	}
	if _, err := s.service.DeleteQuery(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleRunQuery(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query id")
		return
	}
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor header")
		return
	}
	g, err := s.service.RunQuery(r.Context(), id, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"graph": renderGraph(g)})
}

func (s *Server) handleForkStep(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query id")
		return
	}
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor header")
		return
	}
	var req struct {
		Name   string         `json:"name"`
		Args   []any          `json:"args"`
		Kwargs map[string]any `json:"kwargs"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	child, _, err := s.service.ForkQueryWithStep(r.Context(), id, actor, req.Name, req.Args, req.Kwargs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"query": child})
}

func (s *Server) handleForkNeighbors(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query id")
		return
	}
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor header")
		return
	}
	var req struct {
		Nodes []bel.Node `json:"nodes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	child, _, err := s.service.ForkQuerySeedNeighbors(r.Context(), id, actor, req.Nodes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"query": child})
}
