package report

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/loadpress/loadpress/internal/resultparse"
	"github.com/loadpress/loadpress/pkg/errors"
)

// Table is the tabular artifact the runner leaves alongside a result: one
// header row naming the measured columns, followed by data rows. Renderers
// reproduce it verbatim; the column set is a contract with the runner, not
// something the pipeline reinterprets.
type Table struct {
	Headers []string
	Rows    [][]string
}

// LoadTable reads and parses the tabular artifact at the given physical
// path. The file passes through encoding recovery first, so a GBK-encoded
// artifact parses like a UTF-8 one.
func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewMissingArtifactError(path)
		}
		return nil, errors.NewInternalError("failed to read tabular artifact").WithCause(err)
	}

	reader := csv.NewReader(strings.NewReader(resultparse.DecodeText(raw)))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewMalformedArtifactError("tabular artifact is not valid CSV").WithCause(err)
	}
	if len(records) == 0 {
		return nil, errors.NewMalformedArtifactError("tabular artifact is empty")
	}

	return &Table{
		Headers: records[0],
		Rows:    records[1:],
	}, nil
}
