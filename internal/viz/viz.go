package viz

import (
	"time"

	"tradingmodels/internal/classifier"
	"tradingmodels/pkg/model"
)

// MetricNames are the per-epoch series, in display order
var MetricNames = []string{"accuracy", "precision", "recall", "f1", "roc_auc"}

// HistoryPlot holds one series per metric, aligned with Epochs
type HistoryPlot struct {
	Epochs  []int                 `json:"epochs"`
	Metrics map[string][]*float64 `json:"metrics"`
}

// StreamPlot holds stream points column-wise
type StreamPlot struct {
	Timestamps    []string  `json:"timestamps"`
	Prices        []float64 `json:"prices"`
	Probabilities []float64 `json:"probabilities"`
	Signals       []int     `json:"signals"`
}

// HistoryToPlot converts epoch metrics into chart series.
// A missing ROC-AUC stays nil in its series.
func HistoryToPlot(history []classifier.EpochMetrics) HistoryPlot {
	plot := HistoryPlot{
		Epochs:  make([]int, 0, len(history)),
		Metrics: map[string][]*float64{},
	}
	if len(history) == 0 {
		return plot
	}
	for _, name := range MetricNames {
		plot.Metrics[name] = make([]*float64, 0, len(history))
	}

	for _, h := range history {
		plot.Epochs = append(plot.Epochs, h.Epoch)
		values := map[string]*float64{
			"accuracy":  float(h.Accuracy),
			"precision": float(h.Precision),
			"recall":    float(h.Recall),
			"f1":        float(h.F1),
			"roc_auc":   h.ROCAUC,
		}
		for _, name := range MetricNames {
			plot.Metrics[name] = append(plot.Metrics[name], values[name])
		}
	}
	return plot
}

// StreamToPlot converts stream points into chart columns
func StreamToPlot(points []model.StreamPoint) StreamPlot {
	plot := StreamPlot{
		Timestamps:    make([]string, len(points)),
		Prices:        make([]float64, len(points)),
		Probabilities: make([]float64, len(points)),
		Signals:       make([]int, len(points)),
	}
	for i, p := range points {
		plot.Timestamps[i] = p.Time.UTC().Format(time.RFC3339)
		plot.Prices[i] = p.Price
		plot.Probabilities[i] = p.Probability
		plot.Signals[i] = p.Signal
	}
	return plot
}

func float(v float64) *float64 {
	return &v
}
