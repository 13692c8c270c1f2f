package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"tradingmodels/internal/broker"
	"tradingmodels/internal/broker/alpaca"
	"tradingmodels/internal/config"
)

func newBrokerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "broker",
		Short: "Paper-trading broker operations (account, order, close)",
	}
	cmd.AddCommand(newAccountCmd(), newOrderCmd(), newCloseCmd())
	return cmd
}

func brokerClient() (broker.Broker, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return alpaca.NewClient(alpaca.Credentials{
		APIKey:    cfg.Broker.APIKey,
		APISecret: cfg.Broker.APISecret,
		BaseURL:   cfg.Broker.BaseURL,
	})
}

func newAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show the trading account",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := brokerClient()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			acct, err := b.Account(ctx)
			if err != nil {
				return fmt.Errorf("fetching account: %w", err)
			}
			if format == "json" {
				return outputJSON(acct)
			}

			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"Account", "Status", "Cash", "Buying Power", "Equity"}),
			)
			table.Append([]string{
				acct.AccountNumber,
				acct.Status,
				fmt.Sprintf("%.2f %s", acct.Cash, acct.Currency),
				fmt.Sprintf("%.2f", acct.BuyingPower),
				fmt.Sprintf("%.2f", acct.Equity),
			})
			table.Render()
			return nil
		},
	}
}

func newOrderCmd() *cobra.Command {
	var (
		qty  int
		side string
		tif  string
	)
	cmd := &cobra.Command{
		Use:   "order SYMBOL",
		Short: "Submit a market order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderSide, err := broker.ParseSide(strings.ToLower(side))
			if err != nil {
				return err
			}
			timeInForce, err := broker.ParseTimeInForce(strings.ToLower(tif))
			if err != nil {
				return err
			}
			b, err := brokerClient()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			res, err := b.SubmitMarketOrder(ctx, args[0], qty, orderSide, timeInForce)
			if err != nil {
				return fmt.Errorf("submitting order: %w", err)
			}
			return outputOrder(res)
		},
	}
	cmd.Flags().IntVar(&qty, "qty", 1, "share quantity")
	cmd.Flags().StringVar(&side, "side", "buy", "buy or sell")
	cmd.Flags().StringVar(&tif, "tif", "day", "time in force: day, gtc, ioc")
	return cmd
}

func newCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close SYMBOL",
		Short: "Liquidate the open position in SYMBOL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := brokerClient()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			res, err := b.ClosePosition(ctx, args[0])
			if err != nil {
				return fmt.Errorf("closing position: %w", err)
			}
			return outputOrder(res)
		},
	}
}

func outputOrder(res *broker.OrderResult) error {
	if format == "json" {
		return outputJSON(res)
	}
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Order", "Symbol", "Side", "Qty", "Filled", "Status"}),
	)
	table.Append([]string{
		res.OrderID,
		res.Symbol,
		string(res.Side),
		fmt.Sprintf("%g", res.Quantity),
		fmt.Sprintf("%g", res.FilledQty),
		res.Status,
	})
	table.Render()
	return nil
}
