package httpapi

import (
	"net/http"

	"biograph/pkg/bel"
	"biograph/pkg/domain"
)

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Admin bool   `json:"admin"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	user, _, err := s.service.CreateUser(r.Context(), domain.User{Email: req.Email, Name: req.Name, Admin: req.Admin})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := s.service.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string  `json:"name"`
		Description string  `json:"description"`
		UserIDs     []int64 `json:"user_ids"`
		NetworkIDs  []int64 `json:"network_ids"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	project, _, err := s.service.CreateProject(r.Context(), domain.Project{
		Name:        req.Name,
		Description: req.Description,
		UserIDs:     req.UserIDs,
		NetworkIDs:  req.NetworkIDs,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"project": project})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return
	}
	project, err := s.service.GetProject(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project": project})
}

func (s *Server) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor header")
		return
	}
	var networks []domain.Network
	if r.URL.Query().Get("latest") == "true" {
		networks = s.service.ListLatestNetworks(r.Context(), actor)
	} else {
		networks = s.service.ListNetworks(r.Context(), actor)
	}
	writeJSON(w, http.StatusOK, map[string]any{"networks": networks})
}

func (s *Server) handleInsertNetwork(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor header")
		return
	}
	var req struct {
		Public bool         `json:"public"`
		Graph  graphPayload `json:"graph"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	g := bel.New(req.Graph.Name, req.Graph.Version)
	for _, n := range req.Graph.Nodes {
		g.AddNode(n)
	}
	for _, e := range req.Graph.Edges {
		g.AddEdge(e)
	}
	network, _, err := s.service.InsertNetwork(r.Context(), g, actor, req.Public)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"network": network})
}

func (s *Server) handleGetNetwork(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid network id")
		return
	}
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor header")
		return
	}
	network, err := s.service.GetNetwork(r.Context(), id, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"network": network})
}

func (s *Server) handleDropNetwork(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid network id")
		return
	}
	if _, err := s.service.DropNetwork(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleListNetworkEdges(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid network id")
		return
	}
	edges := s.service.ListNetworkEdges(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]any{"edges": edges})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	edgeID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edge id")
		return
	}
	var req struct {
		UserID int64 `json:"user_id"`
		Agreed bool  `json:"agreed"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	vote, _, err := s.service.GetOrCreateVote(r.Context(), edgeID, req.UserID, req.Agreed)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vote": vote})
}

func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	edgeID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edge id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"votes": s.service.ListEdgeVotes(r.Context(), edgeID)})
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	edgeID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edge id")
		return
	}
	var req struct {
		UserID int64  `json:"user_id"`
		Text   string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	comment, _, err := s.service.AddEdgeComment(r.Context(), edgeID, req.UserID, req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"comment": comment})
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	edgeID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edge id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": s.service.ListEdgeComments(r.Context(), edgeID)})
}
