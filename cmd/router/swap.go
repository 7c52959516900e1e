package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapRouter/internal/chain"
	"swapRouter/internal/config"
	"swapRouter/internal/router"
	"swapRouter/internal/swapexec"
)

func runSwap(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !common.IsHexAddress(cfg.Router) {
		return fmt.Errorf("valid router address is required")
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("private key is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildRouterDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close()

	tokenIn, tokenOut, err := resolveTokens(ctx, deps.reader, args[0], args[1])
	if err != nil {
		return err
	}
	amount := args[2]

	result, err := deps.engine.Quote(ctx, tokenIn, tokenOut, amount)
	if err != nil {
		return err
	}
	if err := printQuote(result.Quote, &result.Detail); err != nil {
		return err
	}

	amountIn, err := router.ParseAmount(amount, tokenIn.Decimals)
	if err != nil {
		return err
	}

	sender, err := chain.NewSender(ctx, deps.client, cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("init sender: %w", err)
	}

	machine := swapexec.NewMachine(logger)
	executor := swapexec.NewExecutor(deps.reader, sender, deps.client, machine, swapexec.ExecutorConfig{
		Router:       common.HexToAddress(cfg.Router),
		SlippageBps:  cfg.SlippageBps,
		Deadline:     cfg.Deadline,
		PollInterval: cfg.PollInterval,
	}, logger)

	req := swapexec.Request{
		Params: swapexec.Params{
			TokenIn:     result.Quote.TokenIn,
			TokenOut:    result.Quote.TokenOut,
			AmountIn:    amount,
			SlippageBps: cfg.SlippageBps,
		},
		Quote:    result.Quote,
		Detail:   result.Detail,
		AmountIn: amountIn,
	}

	logger.Info("executing swap",
		zap.String("token_in", tokenIn.Symbol),
		zap.String("token_out", tokenOut.Symbol),
		zap.String("amount_in", amount),
		zap.String("sender", sender.Address().Hex()),
	)

	if err := executor.Execute(ctx, req); err != nil {
		return err
	}

	logger.Info("swap confirmed", zap.String("status", string(machine.Status())))
	return nil
}
