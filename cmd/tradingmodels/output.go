package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"tradingmodels/internal/classifier"
	"tradingmodels/internal/market"
	"tradingmodels/internal/pipeline"
	"tradingmodels/pkg/model"
)

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func outputTrainResult(res *pipeline.Result) error {
	fmt.Printf("Run %s finished in %s\n", res.RunID, res.Duration.Round(time.Millisecond))
	fmt.Printf("Rows: %d train / %d validation, %d features\n\n",
		res.TrainRows, res.ValidationRows, len(res.Metadata.Features))

	outputHistory(res.History)

	fmt.Println("\n--- Validation Report ---")
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Class", "Precision", "Recall", "F1", "Support"}),
	)
	rows := []struct {
		name   string
		scores classifier.ClassScores
	}{
		{"0 (down/flat)", res.Report.Classes[0]},
		{"1 (up)", res.Report.Classes[1]},
		{"macro avg", res.Report.MacroAvg},
		{"weighted avg", res.Report.WeightedAvg},
	}
	for _, r := range rows {
		table.Append([]string{
			r.name,
			fmt.Sprintf("%.3f", r.scores.Precision),
			fmt.Sprintf("%.3f", r.scores.Recall),
			fmt.Sprintf("%.3f", r.scores.F1),
			fmt.Sprintf("%d", r.scores.Support),
		})
	}
	table.Render()

	cm := res.Report.ConfusionMatrix
	fmt.Printf("\nAccuracy %.3f | ROC-AUC %s\n", res.Report.Accuracy, formatAUC(res.Evaluation.ROCAUC))
	fmt.Printf("Confusion matrix [[%d %d] [%d %d]]\n", cm[0][0], cm[0][1], cm[1][0], cm[1][1])
	return nil
}

func outputStatus(doc *pipeline.MetricsDocument, history []classifier.EpochMetrics) {
	meta := doc.Metadata
	fmt.Printf("Model: %s %s (run %s)\n", meta.Config.Symbol, meta.Config.Interval, doc.RunID)
	fmt.Printf("Data: %d bars from %s to %s\n",
		meta.Data.Rows, meta.Data.Start.Format(time.RFC3339), meta.Data.End.Format(time.RFC3339))

	e := doc.Evaluation
	fmt.Printf("Validation: accuracy %.3f, precision %.3f, recall %.3f, f1 %.3f, roc-auc %s\n\n",
		e.Accuracy, e.Precision, e.Recall, e.F1, formatAUC(e.ROCAUC))

	outputHistory(history)
	outputMarket(time.Now())
}

func outputMarket(now time.Time) {
	st := market.DefaultSession().StatusAt(now)
	if st.IsOpen {
		fmt.Printf("\nMarket: open, closes in %s\n", market.FormatDuration(st.TimeToClose))
		return
	}
	fmt.Printf("\nMarket: %s, opens in %s\n", st.Reason, market.FormatDuration(st.TimeToOpen))
}

func outputHistory(history []classifier.EpochMetrics) {
	if len(history) == 0 {
		fmt.Println("No training history.")
		return
	}
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Epoch", "Accuracy", "Precision", "Recall", "F1", "ROC-AUC"}),
	)
	for _, h := range history {
		table.Append([]string{
			fmt.Sprintf("%d", h.Epoch),
			fmt.Sprintf("%.3f", h.Accuracy),
			fmt.Sprintf("%.3f", h.Precision),
			fmt.Sprintf("%.3f", h.Recall),
			fmt.Sprintf("%.3f", h.F1),
			formatAUC(h.ROCAUC),
		})
	}
	table.Render()
}

func outputRuns(runs []model.RunRecord) {
	fmt.Printf("\n--- Recent Runs (%d) ---\n", len(runs))
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Finished", "Symbol", "Interval", "Rows", "Epochs", "Accuracy", "F1", "ROC-AUC"}),
	)
	for _, r := range runs {
		table.Append([]string{
			r.FinishedAt.Local().Format("2006-01-02 15:04"),
			r.Symbol,
			r.Interval,
			fmt.Sprintf("%d", r.Rows),
			fmt.Sprintf("%d", r.Epochs),
			fmt.Sprintf("%.3f", r.Accuracy),
			fmt.Sprintf("%.3f", r.F1),
			formatAUC(r.ROCAUC),
		})
	}
	table.Render()
}

func outputPoints(symbol string, points []model.StreamPoint) {
	if len(points) == 0 {
		fmt.Printf("No scorable bars for %s.\n", symbol)
		return
	}
	fmt.Printf("Latest %d points for %s:\n\n", len(points), symbol)
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Time", "Price", "Prob Up", "Signal"}),
	)
	for _, p := range points {
		signal := "-"
		if p.Signal == 1 {
			signal = "UP"
		}
		table.Append([]string{
			p.Time.Local().Format("01-02 15:04"),
			fmt.Sprintf("%.2f", p.Price),
			fmt.Sprintf("%.1f%%", p.Probability*100),
			signal,
		})
	}
	table.Render()
}

func formatAUC(auc *float64) string {
	if auc == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *auc)
}
