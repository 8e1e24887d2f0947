package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tipcourier/config"
	"tipcourier/pkg/chain"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the on-chain status of a transaction",
	Long: `Check whether a submitted transaction has been mined, and with what result.

Examples:
  tipcourier status 0x1234...abcd
  tipcourier status 0x1234...abcd --watch
  tipcourier status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	txHash := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx := context.Background()
	chainClient, err := chain.Dial(ctx, cfg.RPCURL, cfg.ChainID, zap.NewNop())
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer chainClient.Close()

	if watchStatus {
		watchTxStatus(ctx, chainClient, txHash, jsonOutput)
	} else {
		checkTxStatus(ctx, chainClient, txHash, jsonOutput)
	}
}

func checkTxStatus(ctx context.Context, chainClient *chain.Client, txHash string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking transaction status..."
		s.Start()
	}

	receipt, err := chainClient.TransactionReceipt(ctx, txHash)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil && !errors.Is(err, ethereum.NotFound) {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		printReceiptJSON(txHash, receipt)
	} else {
		displayReceipt(txHash, receipt)
	}
}

func watchTxStatus(ctx context.Context, chainClient *chain.Client, txHash string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching transaction %s\n", color.CyanString(txHash))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := chainClient.TransactionReceipt(ctx, txHash)
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			color.Red("Error: %v", err)
		} else {
			displayReceipt(txHash, receipt)
			if receipt != nil {
				return
			}
		}
		<-ticker.C
	}
}

func displayReceipt(txHash string, receipt *ethtypes.Receipt) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                     TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Tx Hash:  %s\n", color.CyanString(txHash))
	if receipt == nil {
		fmt.Printf("  Status:   %s\n", color.YellowString("PENDING"))
		fmt.Println("\n  The transaction has not been mined yet. It may still land;")
		fmt.Println("  re-check before retrying, or the transfer could execute twice.")
	} else if receipt.Status == ethtypes.ReceiptStatusSuccessful {
		fmt.Printf("  Status:   %s\n", color.GreenString("CONFIRMED"))
		fmt.Printf("  Block:    %d\n", receipt.BlockNumber.Uint64())
		fmt.Printf("  Gas Used: %d\n", receipt.GasUsed)
	} else {
		fmt.Printf("  Status:   %s\n", color.RedString("REVERTED"))
		fmt.Printf("  Block:    %d\n", receipt.BlockNumber.Uint64())
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func printReceiptJSON(txHash string, receipt *ethtypes.Receipt) {
	output := map[string]any{
		"tx_hash": txHash,
		"status":  "pending",
	}
	if receipt != nil {
		output["block"] = receipt.BlockNumber.Uint64()
		output["gas_used"] = receipt.GasUsed
		if receipt.Status == ethtypes.ReceiptStatusSuccessful {
			output["status"] = "confirmed"
		} else {
			output["status"] = "reverted"
		}
	}
	jsonData, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(jsonData))
}
