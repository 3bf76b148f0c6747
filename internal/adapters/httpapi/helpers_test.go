package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"biograph/internal/blob"
	"biograph/internal/core"
	"biograph/pkg/analysis"
	"biograph/pkg/bel"
)

// completeExperiment stores a result payload and marks the experiment done,
// standing in for a worker run.
func completeExperiment(t *testing.T, svc *core.Service, id int64) {
	t.Helper()
	ctx := context.Background()
	e, err := svc.GetExperiment(ctx, id)
	require.NoError(t, err)

	payload, err := analysis.EncodeResult(analysis.Result{
		ExperimentID: id,
		SourceName:   "expr.csv",
		Permutations: e.Permutations,
		Scores: map[bel.Node]float64{
			{Type: "Protein", Namespace: "HGNC", Name: "AKT1"}: 2.5,
			{Type: "Protein", Namespace: "HGNC", Name: "TP53"}: -1.0,
		},
	})
	require.NoError(t, err)

	key := "results/test"
	_, err = svc.Blobs().Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{})
	require.NoError(t, err)
	_, _, err = svc.CompleteExperiment(ctx, id, key, time.Second)
	require.NoError(t, err)
}

func copyBody(w io.Writer, resp *http.Response) (int64, error) {
	return io.Copy(w, resp.Body)
}
