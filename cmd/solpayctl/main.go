package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &clientOptions{}

	root := &cobra.Command{
		Use:           "solpayctl",
		Short:         "Create and verify Solana Pay payment requests",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:8080", "payment server base URL")
	root.PersistentFlags().StringVar(&opts.secret, "secret", os.Getenv("HMAC_SECRET"), "HMAC secret for signed requests")

	root.AddCommand(requestCmd(opts))
	root.AddCommand(verifyCmd(opts))
	root.AddCommand(ratesCmd(opts))

	return root
}
