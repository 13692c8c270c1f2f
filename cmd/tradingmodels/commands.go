package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"tradingmodels/internal/apperr"
	"tradingmodels/internal/classifier"
	"tradingmodels/internal/export"
	"tradingmodels/internal/stream"
)

const notTrainedHint = "model not trained yet: run `tradingmodels train` first"

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fetch bars, train the classifier and persist the artifacts",
		RunE:  runTrain,
	}
	cmd.Flags().BoolVar(&forceDownload, "force-download", false, "refetch bars even when cached")
	return cmd
}

func runTrain(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline()
	if err != nil {
		return err
	}

	cfg := a.cfg.DayTrading
	fmt.Printf("Training %s (%s bars, %d days lookback, %d epochs)...\n\n",
		cfg.Symbol, cfg.Interval, cfg.LookbackDays, cfg.Epochs)

	bar := progressbar.NewOptions(cfg.Epochs,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Training"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	p.SetProgress(func(m classifier.EpochMetrics) {
		bar.Describe(fmt.Sprintf("Epoch %d acc=%.3f f1=%.3f", m.Epoch, m.Accuracy, m.F1))
		bar.Add(1)
	})

	ctx, cancel := signalContext()
	defer cancel()

	res, err := p.Train(ctx, forceDownload)
	bar.Finish()
	fmt.Println()
	if err != nil {
		return fmt.Errorf("training: %w", err)
	}

	if format == "json" {
		return outputJSON(res)
	}
	return outputTrainResult(res)
}

func newStatusCmd() *cobra.Command {
	var runs int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the metrics and history of the last training run",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.pipeline()
			if err != nil {
				return err
			}

			doc, err := p.LoadMetrics()
			if errors.Is(err, apperr.ErrArtifactNotFound) {
				fmt.Println(notTrainedHint)
				return nil
			}
			if err != nil {
				return err
			}
			history, err := p.LoadHistory()
			if err != nil {
				return err
			}

			if format == "json" {
				return outputJSON(map[string]interface{}{
					"status":       "ok",
					"metrics":      doc,
					"history":      history,
					"model_config": a.cfg.DayTrading,
				})
			}
			outputStatus(doc, history)

			if runs > 0 {
				if a.runs == nil {
					fmt.Println("\nRun history is disabled.")
					return nil
				}
				records, err := a.runs.ListRuns(cmd.Context(), runs)
				if err != nil {
					return err
				}
				outputRuns(records)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 0, "also list the N most recent recorded runs")
	return cmd
}

func newStreamCmd() *cobra.Command {
	var tail int
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Score the latest bars with the trained model",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.pipeline()
			if err != nil {
				return err
			}
			if !p.IsTrained() {
				return errors.New(notTrainedHint)
			}
			s, err := stream.New(p, a.log)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			points, err := s.LatestPoints(ctx)
			if err != nil {
				return err
			}
			if tail > 0 && len(points) > tail {
				points = points[len(points)-tail:]
			}

			if format == "json" {
				return outputJSON(points)
			}
			outputPoints(a.cfg.DayTrading.Symbol, points)
			return nil
		},
	}
	cmd.Flags().IntVar(&tail, "tail", 20, "number of most recent points to print (0 for all)")
	return cmd
}

func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write training history and the latest stream points to an .xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.pipeline()
			if err != nil {
				return err
			}
			if !p.IsTrained() {
				return errors.New(notTrainedHint)
			}
			history, err := p.LoadHistory()
			if err != nil {
				return err
			}
			s, err := stream.New(p, a.log)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			points, err := s.LatestPoints(ctx)
			if err != nil {
				return err
			}

			if output == "" {
				output = filepath.Join(a.cfg.DayTradingStorage(), "day_trading_report.xlsx")
			}
			if err := export.WriteXLSX(output, history, points); err != nil {
				return err
			}
			fmt.Printf("Wrote %d epochs and %d stream points to %s\n", len(history), len(points), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "workbook path (default <artifacts>/day_trading/day_trading_report.xlsx)")
	return cmd
}
