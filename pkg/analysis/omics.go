// Package analysis implements differential-expression scoring over query
// result graphs: omics table parsing, permutation-adjusted node scoring, a
// versioned result codec, and multi-experiment comparison tables.
package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// MalformedInputError reports an omics table that cannot be parsed. Uploads
// failing with this error must persist nothing.
type MalformedInputError struct {
	Line   int
	Reason string
}

func (e MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed omics table at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed omics table: %s", e.Reason)
}

// ParseOmicTable reads a delimited table and extracts the gene to value
// mapping from the named columns. Rows with an empty gene label are dropped;
// an unparsable value is an error. When the same gene appears twice the last
// value wins.
func ParseOmicTable(r io.Reader, geneColumn, dataColumn, separator string) (map[string]float64, error) {
	sep := ','
	if separator != "" {
		runes := []rune(separator)
		if len(runes) != 1 {
			return nil, MalformedInputError{Reason: fmt.Sprintf("separator %q must be a single character", separator)}
		}
		sep = runes[0]
	}

	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, MalformedInputError{Reason: "empty table"}
	}
	if err != nil {
		return nil, MalformedInputError{Line: 1, Reason: err.Error()}
	}
	geneIdx, dataIdx := -1, -1
	for i, name := range header {
		switch name {
		case geneColumn:
			geneIdx = i
		case dataColumn:
			dataIdx = i
		}
	}
	if geneIdx < 0 {
		return nil, MalformedInputError{Line: 1, Reason: fmt.Sprintf("missing gene column %q", geneColumn)}
	}
	if dataIdx < 0 {
		return nil, MalformedInputError{Line: 1, Reason: fmt.Sprintf("missing data column %q", dataColumn)}
	}

	values := make(map[string]float64)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, MalformedInputError{Line: line, Reason: err.Error()}
		}
		if geneIdx >= len(record) || dataIdx >= len(record) {
			return nil, MalformedInputError{Line: line, Reason: "row has too few columns"}
		}
		gene := record[geneIdx]
		if gene == "" {
			continue
		}
		v, err := strconv.ParseFloat(record[dataIdx], 64)
		if err != nil {
			return nil, MalformedInputError{Line: line, Reason: fmt.Sprintf("value %q is not numeric", record[dataIdx])}
		}
		values[gene] = v
	}
	if len(values) == 0 {
		return nil, MalformedInputError{Reason: "no usable rows"}
	}
	return values, nil
}
