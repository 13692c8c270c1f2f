package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"tradingmodels/internal/classifier"
	"tradingmodels/pkg/model"
)

const (
	HistorySheet = "history"
	StreamSheet  = "stream"
)

var (
	historyHeader = []interface{}{"epoch", "accuracy", "precision", "recall", "f1", "roc_auc"}
	streamHeader  = []interface{}{"timestamp", "price", "probability", "signal"}
)

// Workbook builds a workbook with a history sheet and a stream sheet.
// The caller owns the returned file.
func Workbook(history []classifier.EpochMetrics, points []model.StreamPoint) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName(f.GetSheetName(0), HistorySheet)

	if err := writeHistory(f, history); err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.NewSheet(StreamSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create stream sheet: %w", err)
	}
	if err := writeStream(f, points); err != nil {
		f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// WriteXLSX saves history and stream points to path
func WriteXLSX(path string, history []classifier.EpochMetrics, points []model.StreamPoint) error {
	f, err := Workbook(history, points)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func writeHistory(f *excelize.File, history []classifier.EpochMetrics) error {
	if err := setRow(f, HistorySheet, 1, historyHeader); err != nil {
		return err
	}
	for i, h := range history {
		var auc interface{}
		if h.ROCAUC != nil {
			auc = *h.ROCAUC
		}
		row := []interface{}{h.Epoch, h.Accuracy, h.Precision, h.Recall, h.F1, auc}
		if err := setRow(f, HistorySheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeStream(f *excelize.File, points []model.StreamPoint) error {
	if err := setRow(f, StreamSheet, 1, streamHeader); err != nil {
		return err
	}
	for i, p := range points {
		row := []interface{}{p.Time.UTC().Format(time.RFC3339), p.Price, p.Probability, p.Signal}
		if err := setRow(f, StreamSheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(StreamSheet, "A", "A", 22)
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
