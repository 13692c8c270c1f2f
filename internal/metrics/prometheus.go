package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradingmodels/internal/classifier"
	"tradingmodels/pkg/model"
)

// Recorder records training, streaming and HTTP metrics
type Recorder struct {
	gatherer prometheus.Gatherer

	trainingRuns     *prometheus.CounterVec
	trainingDuration prometheus.Histogram
	evaluation       *prometheus.GaugeVec
	streamPoints     *prometheus.GaugeVec
	lastProbability  *prometheus.GaugeVec
	lastPrice        *prometheus.GaugeVec
	errorsTotal      *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates a recorder registered on its own registry
func New() *Recorder {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a recorder registered on reg
func NewWithRegistry(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: reg,
		trainingRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "day_trading_training_runs_total",
				Help: "Training runs by outcome",
			},
			[]string{"symbol", "status"},
		),
		trainingDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "day_trading_training_duration_seconds",
				Help:    "Duration of training runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		evaluation: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "day_trading_validation_score",
				Help: "Validation metrics of the last training run",
			},
			[]string{"symbol", "metric"},
		),
		streamPoints: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "day_trading_stream_points",
				Help: "Number of points in the last stream response",
			},
			[]string{"symbol"},
		),
		lastProbability: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "day_trading_last_probability",
				Help: "Up-move probability of the newest stream point",
			},
			[]string{"symbol"},
		),
		lastPrice: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "day_trading_last_price",
				Help: "Price of the newest stream point",
			},
			[]string{"symbol"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "day_trading_errors_total",
				Help: "Failures by operation and error kind",
			},
			[]string{"operation", "kind"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method", "class"},
		),
	}
}

// RecordTraining records a successful run
func (r *Recorder) RecordTraining(symbol string, duration time.Duration, eval classifier.Metrics) {
	r.trainingRuns.WithLabelValues(symbol, "ok").Inc()
	r.trainingDuration.Observe(duration.Seconds())
	r.evaluation.WithLabelValues(symbol, "accuracy").Set(eval.Accuracy)
	r.evaluation.WithLabelValues(symbol, "precision").Set(eval.Precision)
	r.evaluation.WithLabelValues(symbol, "recall").Set(eval.Recall)
	r.evaluation.WithLabelValues(symbol, "f1").Set(eval.F1)
	if eval.ROCAUC != nil {
		r.evaluation.WithLabelValues(symbol, "roc_auc").Set(*eval.ROCAUC)
	}
}

// RecordTrainingFailure records a failed run
func (r *Recorder) RecordTrainingFailure(symbol, kind string) {
	r.trainingRuns.WithLabelValues(symbol, "error").Inc()
	r.RecordError("train", kind)
}

// RecordStream records the newest stream response
func (r *Recorder) RecordStream(symbol string, points []model.StreamPoint) {
	r.streamPoints.WithLabelValues(symbol).Set(float64(len(points)))
	if len(points) == 0 {
		return
	}
	last := points[len(points)-1]
	r.lastProbability.WithLabelValues(symbol).Set(last.Probability)
	r.lastPrice.WithLabelValues(symbol).Set(last.Price)
}

// RecordError records a failure of an operation
func (r *Recorder) RecordError(operation, kind string) {
	r.errorsTotal.WithLabelValues(operation, kind).Inc()
}

// RecordHTTP records one served request
func (r *Recorder) RecordHTTP(route, method string, status int, d time.Duration) {
	r.httpDuration.WithLabelValues(route, method, statusClass(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

func statusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
