package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tipcourier",
	Short: "A CLI for executing token transfer and swap intents on-chain",
	Long: `tipcourier resolves transfer intents - "send this much value of this
token to this recipient" - into executed, confirmed on-chain transactions.
Tokens can be named by contract address, SYMBOL:address, or creator handle;
recipients by address, ENS name, or platform handle; amounts as absolute
quantities, percentages of balance, or USD values.

Examples:
  tipcourier transfer "send 25 USDC:0xA0b8... to @alice"
  tipcourier transfer "send 50% 0xEeee...EEeE to vitalik.eth"
  tipcourier transfer "swap $100 of 0xA0b8... for creator:jane"
  tipcourier status <tx-hash>`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}
