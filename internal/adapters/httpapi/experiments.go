package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"biograph/internal/core"
	"biograph/pkg/domain"
)

func (s *Server) handleListOmics(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor header")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"omics": s.service.ListOmics(r.Context(), actor)})
}

func (s *Server) handleCreateOmic(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor header")
		return
	}
	var req struct {
		SourceName  string `json:"source_name"`
		Description string `json:"description"`
		GeneColumn  string `json:"gene_column"`
		DataColumn  string `json:"data_column"`
		Separator   string `json:"separator"`
		Public      bool   `json:"public"`
		Contents    string `json:"contents"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	omic, _, err := s.service.CreateOmic(r.Context(), domain.Omic{
		SourceName:  req.SourceName,
		Description: req.Description,
		GeneColumn:  req.GeneColumn,
		DataColumn:  req.DataColumn,
		Separator:   req.Separator,
		Public:      req.Public,
		UserID:      actor,
	}, []byte(req.Contents))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"omic": omic})
}

func (s *Server) handleGetOmic(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid omic id")
		return
	}
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor header")
		return
	}
	omic, err := s.service.GetOmic(r.Context(), id, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"omic": omic})
}

func (s *Server) handleDropOmic(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid omic id")
		return
	}
	if _, err := s.service.DropOmic(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	experiments := s.service.ListExperiments(r.Context())
	if raw := r.URL.Query().Get("query_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid query_id")
			return
		}
		experiments = filterExperiments(experiments, func(e domain.Experiment) bool { return e.QueryID == id })
	}
	if raw := r.URL.Query().Get("omic_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid omic_id")
			return
		}
		experiments = filterExperiments(experiments, func(e domain.Experiment) bool { return e.OmicID == id })
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiments": experiments})
}

func filterExperiments(in []domain.Experiment, keep func(domain.Experiment) bool) []domain.Experiment {
	var out []domain.Experiment
	for _, e := range in {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor header")
		return
	}
	var req struct {
		QueryID      int64 `json:"query_id"`
		OmicID       int64 `json:"omic_id"`
		Permutations int   `json:"permutations"`
		Public       bool  `json:"public"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	experiment, _, err := s.service.CreateExperiment(r.Context(), domain.Experiment{
		QueryID:      req.QueryID,
		OmicID:       req.OmicID,
		UserID:       actor,
		Permutations: req.Permutations,
		Public:       req.Public,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"experiment": experiment})
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid experiment id")
		return
	}
	experiment, err := s.service.GetExperiment(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"experiment": experiment})
}

func (s *Server) handleDropExperiment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid experiment id")
		return
	}
	if _, err := s.service.DropExperiment(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// handleComparison builds a comparison table over completed experiments.
// Format is negotiated from ?format= or the Accept header; tsv downloads as
// an attachment.
func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	rawIDs := strings.Split(r.URL.Query().Get("experiments"), ",")
	var ids []int64
	for _, raw := range rawIDs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid experiments list")
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "experiments parameter required")
		return
	}

	opts := core.ComparisonOptions{Normalize: r.URL.Query().Get("normalize") == "true"}
	if raw := r.URL.Query().Get("clusters"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k <= 0 {
			writeError(w, http.StatusBadRequest, "invalid clusters")
			return
		}
		opts.Clusters = k
	}
	if raw := r.URL.Query().Get("seed"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid seed")
			return
		}
		opts.Seed = seed
	}

	table, err := s.service.BuildComparison(r.Context(), ids, opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" && strings.Contains(r.Header.Get("Accept"), "text/tab-separated-values") {
		format = "tsv"
	}
	if format == "tsv" {
		w.Header().Set("Content-Type", "text/tab-separated-values")
		w.Header().Set("Content-Disposition", `attachment; filename="comparison.tsv"`)
		if err := table.RenderTSV(w); err != nil {
			s.logger.Error("render comparison", "err", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comparison": table})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"reports": s.service.ListReports(r.Context())})
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor header")
		return
	}
	var req struct {
		SourceName string `json:"source_name"`
		Encoding   string `json:"encoding"`
		Public     bool   `json:"public"`
		Contents   string `json:"contents"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	report, _, err := s.service.CreateReport(r.Context(), domain.Report{
		SourceName: req.SourceName,
		Encoding:   req.Encoding,
		Public:     req.Public,
		UserID:     actor,
	}, []byte(req.Contents))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"report": report})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	report, err := s.service.GetReport(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}
