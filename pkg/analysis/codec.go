package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"

	"biograph/pkg/bel"
)

// Result is the durable outcome of one experiment run.
type Result struct {
	ExperimentID int64
	SourceName   string
	Permutations int
	Scores       map[bel.Node]float64
}

// resultMagic prefixes every encoded result so stale or foreign payloads are
// rejected before JSON decoding.
var resultMagic = []byte("BGEX")

const resultVersion byte = 1

type scoreEntry struct {
	Node  bel.Node `json:"node"`
	Score float64  `json:"score"`
}

type resultPayload struct {
	ExperimentID int64        `json:"experiment_id"`
	SourceName   string       `json:"source_name"`
	Permutations int          `json:"permutations"`
	Scores       []scoreEntry `json:"scores"`
}

// EncodeResult serializes the result as a versioned envelope: magic bytes, a
// format version, then a JSON document with scores in canonical node order.
func EncodeResult(r Result) ([]byte, error) {
	entries := make([]scoreEntry, 0, len(r.Scores))
	for _, n := range SortedNodes(r.Scores) {
		entries = append(entries, scoreEntry{Node: n, Score: r.Scores[n]})
	}
	body, err := json.Marshal(resultPayload{
		ExperimentID: r.ExperimentID,
		SourceName:   r.SourceName,
		Permutations: r.Permutations,
		Scores:       entries,
	})
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	out := make([]byte, 0, len(resultMagic)+1+len(body))
	out = append(out, resultMagic...)
	out = append(out, resultVersion)
	out = append(out, body...)
	return out, nil
}

// DecodeResult parses a versioned result envelope.
func DecodeResult(data []byte) (Result, error) {
	if len(data) < len(resultMagic)+1 || !bytes.HasPrefix(data, resultMagic) {
		return Result{}, fmt.Errorf("decode result: not a result payload")
	}
	version := data[len(resultMagic)]
	if version != resultVersion {
		return Result{}, fmt.Errorf("decode result: unsupported version %d", version)
	}
	var payload resultPayload
	if err := json.Unmarshal(data[len(resultMagic)+1:], &payload); err != nil {
		return Result{}, fmt.Errorf("decode result: %w", err)
	}
	scores := make(map[bel.Node]float64, len(payload.Scores))
	for _, entry := range payload.Scores {
		scores[entry.Node] = entry.Score
	}
	return Result{
		ExperimentID: payload.ExperimentID,
		SourceName:   payload.SourceName,
		Permutations: payload.Permutations,
		Scores:       scores,
	}, nil
}
