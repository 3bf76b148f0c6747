package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"biograph/internal/blob"
	"biograph/internal/core"
	"biograph/internal/infra/persistence/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *core.Service) {
	t.Helper()
	store := memory.NewStore(core.NewDefaultRulesEngine())
	svc := core.NewService(store, blob.NewMemory(), nil, nil, nil)
	srv := httptest.NewServer(NewServer(svc, nil).Router())
	t.Cleanup(srv.Close)
	return srv, svc
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func testGraphBody(name string) map[string]any {
	return map[string]any{
		"public": true,
		"graph": map[string]any{
			"name":    name,
			"version": "1.0",
			"nodes": []map[string]any{
				{"type": "Protein", "namespace": "HGNC", "name": "AKT1"},
				{"type": "Protein", "namespace": "HGNC", "name": "TP53"},
			},
			"edges": []map[string]any{
				{
					"source":   map[string]any{"type": "Protein", "namespace": "HGNC", "name": "AKT1"},
					"target":   map[string]any{"type": "Protein", "namespace": "HGNC", "name": "TP53"},
					"relation": "increases",
				},
			},
		},
	}
}

func TestNetworkLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/networks", testGraphBody("net"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	network := body["network"].(map[string]any)
	id := int64(network["id"].(float64))
	require.Equal(t, float64(2), network["node_count"])

	// Duplicate (name, version) is a conflict.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/networks", testGraphBody("net"), nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/networks/%d", srv.URL, id), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "net", body["network"].(map[string]any)["name"])

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/networks/%d/edges", srv.URL, id), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["edges"].([]any), 1)

	resp, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/v1/networks/%d", srv.URL, id), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/networks/%d", srv.URL, id), nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPrivateNetworkHiddenFromAnonymous(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users", map[string]any{"email": "owner@example.org"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	owner := fmt.Sprintf("%d", int64(body["user"].(map[string]any)["id"].(float64)))

	private := testGraphBody("private net")
	private["public"] = false
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/networks", private, map[string]string{actorHeader: owner})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := int64(body["network"].(map[string]any)["id"].(float64))

	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/networks/%d", srv.URL, id), nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/networks/%d", srv.URL, id), nil, map[string]string{actorHeader: owner})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQueryCreateRunFork(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/networks", testGraphBody("net"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	networkID := int64(body["network"].(map[string]any)["id"].(float64))

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/queries", map[string]any{
		"network_ids": []int64{networkID},
		"public":      true,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	queryID := int64(body["query"].(map[string]any)["id"].(float64))

	resp, body = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/queries/%d/run", srv.URL, queryID), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	graph := body["graph"].(map[string]any)
	require.Len(t, graph["nodes"].([]any), 2)
	require.Len(t, graph["edges"].([]any), 1)

	resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/queries/%d/fork/step", srv.URL, queryID), map[string]any{
		"name": "remove_isolated_nodes",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	child := body["query"].(map[string]any)
	require.Equal(t, float64(queryID), child["parent_id"])

	// Deleting the root removes the fork too.
	resp, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/v1/queries/%d", srv.URL, queryID), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/v1/queries/%d", srv.URL, int64(child["id"].(float64))), nil, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVoteUpdateSetsChanged(t *testing.T) {
	srv, svc := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users", map[string]any{"email": "voter@example.org"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	userID := int64(body["user"].(map[string]any)["id"].(float64))

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/networks", testGraphBody("net"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	edges := svc.Store().ListEdges()
	require.NotEmpty(t, edges)
	edgeID := edges[0].ID

	resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/edges/%d/votes", srv.URL, edgeID), map[string]any{
		"user_id": userID, "agreed": true,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, body["vote"].(map[string]any)["changed"])

	resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/v1/edges/%d/votes", srv.URL, edgeID), map[string]any{
		"user_id": userID, "agreed": false,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	vote := body["vote"].(map[string]any)
	require.Equal(t, false, vote["agreed"])
	require.NotNil(t, vote["changed"])
}

func TestCreateOmicMalformed(t *testing.T) {
	srv, svc := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/omics", map[string]any{
		"source_name": "broken.csv",
		"gene_column": "gene",
		"data_column": "value",
		"contents":    "gene,value\nAKT1,not-a-number\n",
	}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, svc.Store().ListOmics())
}

func TestCreateExperimentAccepted(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/networks", testGraphBody("net"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	networkID := int64(body["network"].(map[string]any)["id"].(float64))

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/queries", map[string]any{
		"network_ids": []int64{networkID}, "public": true,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	queryID := int64(body["query"].(map[string]any)["id"].(float64))

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/omics", map[string]any{
		"source_name": "expr.csv",
		"gene_column": "gene",
		"data_column": "value",
		"public":      true,
		"contents":    "gene,value\nAKT1,2.5\nTP53,-1.0\n",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	omicID := int64(body["omic"].(map[string]any)["id"].(float64))

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/experiments", map[string]any{
		"query_id": queryID, "omic_id": omicID, "permutations": 5, "public": true,
	}, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, "pending", body["experiment"].(map[string]any)["status"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/experiments/comparison?experiments="+
		fmt.Sprint(int64(body["experiment"].(map[string]any)["id"].(float64))), nil, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestComparisonTSV(t *testing.T) {
	srv, svc := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/networks", testGraphBody("net"), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	networkID := int64(body["network"].(map[string]any)["id"].(float64))

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/queries", map[string]any{
		"network_ids": []int64{networkID}, "public": true,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	queryID := int64(body["query"].(map[string]any)["id"].(float64))

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/omics", map[string]any{
		"source_name": "expr.csv", "gene_column": "gene", "data_column": "value", "public": true,
		"contents": "gene,value\nAKT1,2.5\nTP53,-1.0\n",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	omicID := int64(body["omic"].(map[string]any)["id"].(float64))

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/experiments", map[string]any{
		"query_id": queryID, "omic_id": omicID, "permutations": 5, "public": true,
	}, nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	experimentID := int64(body["experiment"].(map[string]any)["id"].(float64))

	// Complete the experiment by hand: store a result payload and mark done.
	completeExperiment(t, svc, experimentID)

	req, err := http.NewRequest(http.MethodGet,
		fmt.Sprintf("%s/api/v1/experiments/comparison?experiments=%d&format=tsv", srv.URL, experimentID), nil)
	require.NoError(t, err)
	httpResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = httpResp.Body.Close() }()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)
	require.Equal(t, "text/tab-separated-values", httpResp.Header.Get("Content-Type"))

	var sb strings.Builder
	_, err = copyBody(&sb, httpResp)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, fmt.Sprintf("Type\tNamespace\tName\t[%d] expr.csv", experimentID), lines[0])
}
