package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tipcourier/config"
	"tipcourier/pkg/chain"
	"tipcourier/pkg/directory"
	"tipcourier/pkg/price"
	"tipcourier/pkg/transfer"
	"tipcourier/pkg/types"
)

var tokenCmd = &cobra.Command{
	Use:     "token <reference>",
	Aliases: []string{"resolve"},
	Short:   "Resolve a token reference and show its on-chain identity",
	Long: `Resolve a token reference the way the transfer pipeline would, and show
the contract address, symbol, decimals, and current USD price.

Examples:
  tipcourier token 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48
  tipcourier token USDC:0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48
  tipcourier token creator:jane`,
	Args: cobra.ExactArgs(1),
	Run:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	ctx := context.Background()

	chainClient, err := chain.Dial(ctx, cfg.RPCURL, cfg.ChainID, logger)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer chainClient.Close()

	dir := directory.NewClient(cfg.DirectoryURL, cfg.DirectoryAPIKey, logger)
	prices := price.NewClient(cfg.PriceURL, cfg.PriceAPIKey, logger)
	resolver := transfer.NewResolver(chainClient, dir, cfg.NativeSymbol, logger)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Resolving token..."
		s.Start()
	}

	token, err := resolver.ResolveToken(ctx, args[0])
	var detail price.Detail
	var priceErr error
	if err == nil {
		detail, priceErr = prices.Detail(ctx, token.Address)
	}

	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]any{
			"address":  token.Address,
			"symbol":   token.Symbol,
			"decimals": token.Decimals,
			"class":    token.Class.String(),
		}
		if priceErr == nil {
			output["usd_price"] = detail.USD.String()
		}
		if token.Class == types.TokenCreatorCoin {
			output["reserve_rate"] = token.ReserveRate.String()
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                    TOKEN IDENTITY")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Address:   %s\n", color.CyanString(token.Address))
	fmt.Printf("  Symbol:    %s\n", color.YellowString(token.Symbol))
	fmt.Printf("  Decimals:  %d\n", token.Decimals)
	fmt.Printf("  Class:     %s\n", token.Class)
	if token.Class == types.TokenCreatorCoin {
		fmt.Printf("  Rate:      %s reserve units per coin\n", token.ReserveRate)
	}
	if priceErr == nil {
		fmt.Printf("  Price:     $%s\n", detail.USD.StringFixed(4))
	} else {
		fmt.Printf("  Price:     %s\n", color.HiBlackString("unavailable"))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
