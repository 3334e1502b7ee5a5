package molnet

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// Row is one parsed CSV line: a SMILES string and one label per task.
type Row struct {
	SMILES string
	Labels []float64
	// Missing marks tasks whose cell was empty; their label is 0.
	Missing []bool
}

// ParseCSV reads a catalog file.  Gzip input is detected from its magic
// bytes.  Empty task cells become 0 and are flagged in Row.Missing.
func ParseCSV(data []byte, smilesCol string, tasks []string) ([]Row, error) {
	var r io.Reader = bytes.NewReader(data)
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatasetParseFailed, "open gzip stream")
		}
		defer gz.Close()
		r = gz
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatasetParseFailed, "read csv header")
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	smilesIdx, ok := cols[smilesCol]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeDatasetParseFailed, "column %q not found", smilesCol)
	}
	taskIdx := make([]int, len(tasks))
	for k, t := range tasks {
		idx, ok := cols[t]
		if !ok {
			return nil, errors.Newf(errors.ErrCodeDatasetParseFailed, "task column %q not found", t)
		}
		taskIdx[k] = idx
	}

	var rows []Row
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatasetParseFailed, "read csv record").
				WithDetail("line " + strconv.Itoa(line))
		}
		if smilesIdx >= len(rec) {
			return nil, errors.Newf(errors.ErrCodeDatasetParseFailed, "line %d has %d fields", line, len(rec))
		}
		row := Row{
			SMILES:  strings.TrimSpace(rec[smilesIdx]),
			Labels:  make([]float64, len(tasks)),
			Missing: make([]bool, len(tasks)),
		}
		for k, idx := range taskIdx {
			cell := ""
			if idx < len(rec) {
				cell = strings.TrimSpace(rec[idx])
			}
			if cell == "" {
				row.Missing[k] = true
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.Newf(errors.ErrCodeDatasetParseFailed, "line %d: task %q value %q is not numeric", line, tasks[k], cell)
			}
			row.Labels[k] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
