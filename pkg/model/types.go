package model

import "time"

// Bar represents a single OHLCV bar for a fixed interval
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// StreamPoint is one inference result on the latest data
type StreamPoint struct {
	Time        time.Time `json:"timestamp"`
	Price       float64   `json:"price"`
	Probability float64   `json:"probability"`
	Signal      int       `json:"signal"` // 1 when probability > 0.5
}

// DataSummary describes a bar series used for training
type DataSummary struct {
	Rows    int       `json:"rows"`
	Columns []string  `json:"columns"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Symbol  string    `json:"symbol"`
}

// BarColumns are the normalized field names of a bar series
var BarColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// RunRecord summarizes one finished training run
type RunRecord struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Interval       string    `json:"interval"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Rows           int       `json:"rows"`
	TrainRows      int       `json:"train_rows"`
	ValidationRows int       `json:"validation_rows"`
	Epochs         int       `json:"epochs"`
	Accuracy       float64   `json:"accuracy"`
	F1             float64   `json:"f1"`
	ROCAUC         *float64  `json:"roc_auc"`
	ModelPath      string    `json:"model_path"`
}
