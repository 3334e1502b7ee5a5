package training

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/storage/minio"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

const (
	reportSheet       = "Sheet1"
	reportContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var reportHeader = []interface{}{"epoch", "train_loss", "test_loss"}

// ReportRow is one epoch of the training report.
type ReportRow struct {
	Epoch     int     `json:"epoch"`
	TrainLoss float64 `json:"train_loss"`
	TestLoss  float64 `json:"test_loss"`
}

// ReportFileName returns "train_report_<dataset>.xlsx".
func ReportFileName(dataset string) string {
	return fmt.Sprintf("train_report_%s.xlsx", dataset)
}

// ReportRows zips the loss histories into report rows.
func ReportRows(train, test []float64) ([]ReportRow, error) {
	if len(train) != len(test) {
		return nil, errors.Newf(errors.CodeReportFailed, "loss histories differ in length: train=%d test=%d", len(train), len(test))
	}
	rows := make([]ReportRow, len(train))
	for i := range train {
		rows[i] = ReportRow{Epoch: i, TrainLoss: train[i], TestLoss: test[i]}
	}
	return rows, nil
}

// ReportWriter writes the spreadsheet report and optionally uploads it.
type ReportWriter struct {
	// Mirror receives a copy of every report when set.
	Mirror       minio.ObjectStore
	MirrorPrefix string
	Logger       logging.Logger
}

// Write saves rows to <dir>/train_report_<dataset>.xlsx and returns the path.
func (w *ReportWriter) Write(ctx context.Context, dir, dataset string, rows []ReportRow) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, errors.CodeReportFailed, "create report dir").WithDetail(dir)
	}
	path := filepath.Join(dir, ReportFileName(dataset))

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetRow(reportSheet, "A1", &reportHeader); err != nil {
		return "", errors.Wrap(err, errors.CodeReportFailed, "write report header")
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", errors.Wrap(err, errors.CodeReportFailed, "address report row")
		}
		values := []interface{}{r.Epoch, r.TrainLoss, r.TestLoss}
		if err := f.SetSheetRow(reportSheet, cell, &values); err != nil {
			return "", errors.Wrap(err, errors.CodeReportFailed, "write report row").WithDetail(cell)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return "", errors.Wrap(err, errors.CodeReportFailed, "save report").WithDetail(path)
	}

	if w.Mirror != nil {
		key := ReportFileName(dataset)
		if w.MirrorPrefix != "" {
			key = w.MirrorPrefix + "/" + key
		}
		if _, err := w.Mirror.PutFile(ctx, key, path, reportContentType); err != nil {
			return "", errors.Wrap(err, errors.CodeReportFailed, "upload report").WithDetail(key)
		}
		logging.OrDefault(w.Logger).Info("report uploaded", logging.String("key", key))
	}
	return path, nil
}

// ReadReport loads a report written by ReportWriter.
func ReadReport(path string) ([]ReportRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeReportFailed, "open report").WithDetail(path)
	}
	defer f.Close()
	cells, err := f.GetRows(reportSheet)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeReportFailed, "read report").WithDetail(path)
	}
	if len(cells) == 0 {
		return nil, errors.New(errors.CodeReportFailed, "report has no header").WithDetail(path)
	}
	rows := make([]ReportRow, 0, len(cells)-1)
	for i, c := range cells[1:] {
		if len(c) < 3 {
			return nil, errors.Newf(errors.CodeReportFailed, "report row %d has %d cells", i+2, len(c))
		}
		epoch, err1 := strconv.Atoi(c[0])
		train, err2 := strconv.ParseFloat(c[1], 64)
		test, err3 := strconv.ParseFloat(c[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, errors.Newf(errors.CodeReportFailed, "report row %d is not numeric", i+2)
		}
		rows = append(rows, ReportRow{Epoch: epoch, TrainLoss: train, TestLoss: test})
	}
	return rows, nil
}
