package viz

import (
	"testing"
	"time"

	"tradingmodels/internal/classifier"
	"tradingmodels/pkg/model"
)

func TestHistoryToPlot(t *testing.T) {
	auc := 0.58
	history := []classifier.EpochMetrics{
		{Epoch: 1, Metrics: classifier.Metrics{Accuracy: 0.5, F1: 0.4}},
		{Epoch: 2, Metrics: classifier.Metrics{Accuracy: 0.6, F1: 0.45, ROCAUC: &auc}},
	}

	plot := HistoryToPlot(history)
	if len(plot.Epochs) != 2 || plot.Epochs[1] != 2 {
		t.Fatalf("unexpected epochs %v", plot.Epochs)
	}
	if len(plot.Metrics) != len(MetricNames) {
		t.Fatalf("expected %d series, got %d", len(MetricNames), len(plot.Metrics))
	}
	if *plot.Metrics["accuracy"][1] != 0.6 {
		t.Errorf("unexpected accuracy series")
	}
	if plot.Metrics["roc_auc"][0] != nil || *plot.Metrics["roc_auc"][1] != auc {
		t.Errorf("unexpected roc_auc series %v", plot.Metrics["roc_auc"])
	}
}

func TestHistoryToPlotEmpty(t *testing.T) {
	plot := HistoryToPlot(nil)
	if plot.Epochs == nil || len(plot.Epochs) != 0 || len(plot.Metrics) != 0 {
		t.Errorf("expected empty plot, got %+v", plot)
	}
}

func TestStreamToPlot(t *testing.T) {
	ts := time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC)
	plot := StreamToPlot([]model.StreamPoint{
		{Time: ts, Price: 187.2, Probability: 0.55, Signal: 1},
		{Time: ts.Add(time.Minute), Price: 187.1, Probability: 0.45, Signal: 0},
	})

	if plot.Timestamps[0] != "2024-01-02T15:30:00Z" {
		t.Errorf("unexpected timestamp %s", plot.Timestamps[0])
	}
	if plot.Prices[1] != 187.1 || plot.Probabilities[0] != 0.55 || plot.Signals[0] != 1 {
		t.Errorf("unexpected plot %+v", plot)
	}

	empty := StreamToPlot(nil)
	if empty.Timestamps == nil || len(empty.Signals) != 0 {
		t.Errorf("expected empty non-nil columns, got %+v", empty)
	}
}
