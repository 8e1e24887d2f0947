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
	"tipcourier/pkg/parser"
	"tipcourier/pkg/price"
	"tipcourier/pkg/quote"
	"tipcourier/pkg/retry"
	"tipcourier/pkg/transfer"
	"tipcourier/pkg/types"
	"tipcourier/pkg/wallet"
)

var transferCmd = &cobra.Command{
	Use:   "transfer <intent>...",
	Short: "Execute one or more transfer intents",
	Long: `Execute transfer intents in order. Each argument is one intent string;
items run strictly sequentially and a failed item never stops the next.

Examples:
  tipcourier transfer "send 25 USDC:0xA0b8... to @alice"
  tipcourier transfer "send 100% 0xEeee...EEeE to vitalik.eth"
  tipcourier transfer "send $10 of creator:jane to 0x1234..."
  tipcourier transfer "swap $100 of 0xA0b8... for creator:jane" "send 5 0xA0b8... to @bob"`,
	Args: cobra.MinimumNArgs(1),
	Run:  runTransfer,
}

func init() {
	rootCmd.AddCommand(transferCmd)
}

func runTransfer(cmd *cobra.Command, args []string) {
	intents := make([]types.TransferIntent, 0, len(args))
	for _, arg := range args {
		intent, err := parser.ParseIntent(arg)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		intents = append(intents, *intent)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if cfg.PrivateKey == "" {
		printError(fmt.Errorf("no signing key configured. Please set TIPCOURIER_PRIVATE_KEY"))
		os.Exit(1)
	}

	logger := zap.NewNop()
	if verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			printError(err)
			os.Exit(1)
		}
	}
	defer logger.Sync()

	ctx := context.Background()

	orch, chainClient, signer, err := buildOrchestrator(ctx, cfg, logger)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer chainClient.Close()

	for i := range intents {
		intents[i].Sender = signer.Address()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = fmt.Sprintf(" Executing %d transfer(s)...", len(intents))
		s.Start()
	}

	outcomes := orch.ExecuteBatch(ctx, intents)

	if !jsonOutput {
		s.Stop()
		displayOutcomes(outcomes, cfg.ExplorerURL)
	} else {
		printOutcomesJSON(outcomes)
	}

	for _, outcome := range outcomes {
		if !outcome.Success {
			os.Exit(1)
		}
	}
}

// buildOrchestrator wires the pipeline from configuration.
func buildOrchestrator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*transfer.Orchestrator, *chain.Client, transfer.Signer, error) {
	chainClient, err := chain.Dial(ctx, cfg.RPCURL, cfg.ChainID, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	signer, err := wallet.NewLocalSigner(chainClient.Eth(), cfg.PrivateKey, cfg.ChainID, logger)
	if err != nil {
		chainClient.Close()
		return nil, nil, nil, err
	}

	dir := directory.NewClient(cfg.DirectoryURL, cfg.DirectoryAPIKey, logger)
	prices := price.NewClient(cfg.PriceURL, cfg.PriceAPIKey, logger)
	quotes := quote.NewClient(cfg.QuoteURL, cfg.QuoteAPIKey, cfg.ChainID, logger)

	submitPolicy := retry.Policy{MaxAttempts: cfg.SubmitAttempts, BaseDelay: cfg.SubmitBaseDelay}
	confirmPolicy := retry.Policy{MaxAttempts: cfg.ConfirmAttempts, BaseDelay: 2 * time.Second}

	tracker := transfer.NewConfirmationTracker(chainClient, confirmPolicy, cfg.ConfirmTimeout, logger)
	orch := transfer.NewOrchestrator(
		transfer.NewResolver(chainClient, dir, cfg.NativeSymbol, logger),
		transfer.NewAmountCalculator(prices, cfg.ReserveToken, logger),
		transfer.NewBalanceGate(dir, prices, cfg.ReserveToken, logger),
		transfer.NewAllowanceManager(chainClient, signer, tracker, logger),
		transfer.NewTransactionExecutor(chainClient, signer, submitPolicy, logger),
		tracker,
		quotes,
		signer,
		chainClient,
		cfg.ExplorerURL,
		logger,
	)
	return orch, chainClient, signer, nil
}

func displayOutcomes(outcomes []types.TransferOutcome, explorerURL string) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                  TRANSFER RESULTS")
	fmt.Println(strings.Repeat("=", 60))

	for i, outcome := range outcomes {
		fmt.Printf("\n  [%d] %s\n", i+1, describeIntent(outcome.Intent))
		if outcome.Success {
			fmt.Printf("      Status:  %s\n", color.GreenString("CONFIRMED"))
			fmt.Printf("      Tx:      %s\n", color.CyanString(outcome.Attempt.Hash))
			fmt.Printf("      View:    %s/%s\n", strings.TrimRight(explorerURL, "/"), outcome.Attempt.Hash)
			continue
		}
		fmt.Printf("      Status:  %s\n", color.RedString("FAILED"))
		fmt.Printf("      Stage:   %s\n", outcome.Stage)
		fmt.Printf("      Reason:  %s\n", outcome.Reason)
		if outcome.Attempt != nil && outcome.Attempt.Hash != "" {
			fmt.Printf("      Tx:      %s\n", color.HiBlackString(outcome.Attempt.Hash))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func describeIntent(intent types.TransferIntent) string {
	amount := intent.Amount
	switch intent.Denomination {
	case types.DenominationUSD:
		amount = "$" + amount
	case types.DenominationPercentage:
		amount += "%"
	}
	if intent.Kind == types.IntentSwap {
		return fmt.Sprintf("swap %s of %s for %s", amount, intent.SellToken, intent.Token)
	}
	return fmt.Sprintf("send %s %s to %s", amount, intent.Token, intent.Recipient)
}

func printOutcomesJSON(outcomes []types.TransferOutcome) {
	type result struct {
		ID      string `json:"id"`
		Intent  string `json:"intent"`
		Success bool   `json:"success"`
		Stage   string `json:"stage"`
		TxHash  string `json:"tx_hash,omitempty"`
		Amount  string `json:"amount_base_units,omitempty"`
		Reason  string `json:"reason,omitempty"`
	}

	results := make([]result, 0, len(outcomes))
	for _, outcome := range outcomes {
		r := result{
			ID:      outcome.ID,
			Intent:  describeIntent(outcome.Intent),
			Success: outcome.Success,
			Stage:   string(outcome.Stage),
			Reason:  outcome.Reason,
		}
		if outcome.Attempt != nil {
			r.TxHash = outcome.Attempt.Hash
		}
		if outcome.Amount != nil {
			r.Amount = outcome.Amount.String()
		}
		results = append(results, r)
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(jsonData))
}
