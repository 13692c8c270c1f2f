package web

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"tradingmodels/internal/apperr"
	"tradingmodels/internal/daytrading"
	"tradingmodels/internal/logger"
	"tradingmodels/internal/pipeline"
	"tradingmodels/internal/viz"
	"tradingmodels/pkg/model"
)

// TrainRequest carries configuration overrides for one training run.
// Named fields and the overrides map are merged; named fields win.
type TrainRequest struct {
	Symbol          *string                `json:"symbol" validate:"omitempty,min=1,max=16"`
	Interval        *string                `json:"interval" validate:"omitempty,oneof=1m 2m 5m 15m 30m 60m 90m"`
	LookbackDays    *int                   `json:"lookback_days" validate:"omitempty,min=1,max=60"`
	FeatureWindows  []int                  `json:"feature_windows" validate:"omitempty,unique,dive,min=1"`
	RSIWindow       *int                   `json:"rsi_window" validate:"omitempty,min=1"`
	ValidationSize  *float64               `json:"validation_size" validate:"omitempty,gt=0,lt=1"`
	Epochs          *int                   `json:"epochs" validate:"omitempty,min=1,max=1000"`
	Threshold       *float64               `json:"threshold"`
	RandomState     *int64                 `json:"random_state"`
	MaxStreamPoints *int                   `json:"max_stream_points" validate:"omitempty,min=1"`
	Overrides       map[string]interface{} `json:"overrides" default:"{}"`
	ForceDownload   bool                   `json:"force_download"`
}

// overrideMap flattens the request into daytrading override fields
func (r *TrainRequest) overrideMap() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Overrides))
	for k, v := range r.Overrides {
		out[k] = v
	}
	if r.Symbol != nil {
		out["symbol"] = *r.Symbol
	}
	if r.Interval != nil {
		out["interval"] = *r.Interval
	}
	if r.LookbackDays != nil {
		out["lookback_days"] = *r.LookbackDays
	}
	if r.FeatureWindows != nil {
		out["feature_windows"] = r.FeatureWindows
	}
	if r.RSIWindow != nil {
		out["rsi_window"] = *r.RSIWindow
	}
	if r.ValidationSize != nil {
		out["validation_size"] = *r.ValidationSize
	}
	if r.Epochs != nil {
		out["epochs"] = *r.Epochs
	}
	if r.Threshold != nil {
		out["threshold"] = *r.Threshold
	}
	if r.RandomState != nil {
		out["random_state"] = *r.RandomState
	}
	if r.MaxStreamPoints != nil {
		out["max_stream_points"] = *r.MaxStreamPoints
	}
	return out
}

// RunsRequest pages the recorded run history
type RunsRequest struct {
	Limit int `query:"limit" default:"20" validate:"min=1,max=500"`
}

// TrainResponse is the result of a successful training run
type TrainResponse struct {
	Status string `json:"status"`
	*pipeline.Result
	HistoryPlot viz.HistoryPlot `json:"history_plot"`
}

// StatusResponse summarizes the persisted model
type StatusResponse struct {
	Status      string            `json:"status"`
	Metrics     interface{}       `json:"metrics"`
	HistoryPlot viz.HistoryPlot   `json:"history_plot"`
	ModelConfig daytrading.Config `json:"model_config"`
}

// StreamResponse carries the latest stream points column-wise
type StreamResponse struct {
	Status string         `json:"status"`
	Symbol string         `json:"symbol"`
	Stream viz.StreamPlot `json:"stream"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Status  string            `json:"status"`
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Details []ValidationError `json:"details,omitempty"`
}

func newStreamResponse(symbol string, points []model.StreamPoint) StreamResponse {
	return StreamResponse{
		Status: "ok",
		Symbol: symbol,
		Stream: viz.StreamToPlot(points),
	}
}

func (s *Server) handleTrain(c echo.Context) error {
	req := &TrainRequest{}
	if err := readAndValidate(c, req); err != nil {
		return s.errorResponse(c, "train", err)
	}

	res, err := s.Train(c.Request().Context(), req.overrideMap(), req.ForceDownload)
	if err != nil {
		return s.errorResponse(c, "train", err)
	}
	return c.JSON(http.StatusOK, TrainResponse{
		Status:      "success",
		Result:      res,
		HistoryPlot: viz.HistoryToPlot(res.History),
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	cfg := s.Config()
	p, err := s.pipeline(cfg)
	if err != nil {
		return s.errorResponse(c, "status", err)
	}

	resp := StatusResponse{
		Status:      "ok",
		Metrics:     map[string]interface{}{},
		ModelConfig: cfg,
	}
	doc, err := p.LoadMetrics()
	switch {
	case errors.Is(err, apperr.ErrArtifactNotFound):
		resp.Status = "not_trained"
	case err != nil:
		return s.errorResponse(c, "status", err)
	default:
		resp.Metrics = doc
	}

	history, err := p.LoadHistory()
	if err != nil {
		return s.errorResponse(c, "status", err)
	}
	resp.HistoryPlot = viz.HistoryToPlot(history)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStream(c echo.Context) error {
	points, err := s.LatestPoints(c.Request().Context())
	if err != nil {
		return s.errorResponse(c, "stream", err)
	}
	return c.JSON(http.StatusOK, newStreamResponse(s.Config().Symbol, points))
}

func (s *Server) handleRuns(c echo.Context) error {
	if s.opts.Runs == nil {
		return s.errorResponse(c, "runs", apperr.New(apperr.KindArtifactNotFound, "run history is not recorded"))
	}
	req := &RunsRequest{}
	if err := readAndValidate(c, req); err != nil {
		return s.errorResponse(c, "runs", err)
	}

	runs, err := s.opts.Runs.ListRuns(c.Request().Context(), req.Limit)
	if err != nil {
		return s.errorResponse(c, "runs", err)
	}
	if runs == nil {
		runs = []model.RunRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"runs":   runs,
	})
}

func (s *Server) errorResponse(c echo.Context, operation string, err error) error {
	kind := apperr.KindOf(err)
	s.metrics.RecordError(operation, string(kind))
	if kind == apperr.KindUnknown {
		s.log.Error(operation+" failed", logger.Error(err))
	}

	body := ErrorResponse{
		Status:  "error",
		Kind:    string(kind),
		Message: err.Error(),
	}
	if kind == apperr.KindArtifactNotFound {
		body.Status = "not_trained"
	}
	var rerr *requestError
	if errors.As(err, &rerr) {
		body.Details = rerr.Details
	}
	return c.JSON(statusFor(kind), body)
}

// statusFor maps an error kind to its HTTP status
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindArtifactNotFound, apperr.KindNotFitted:
		return http.StatusNotFound
	case apperr.KindInvalidConfig:
		return http.StatusBadRequest
	case apperr.KindNoData:
		return http.StatusUnprocessableEntity
	case apperr.KindUpstreamFetch:
		return http.StatusBadGateway
	case apperr.KindSchemaMismatch:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func kindOf(err error) string {
	return string(apperr.KindOf(err))
}
