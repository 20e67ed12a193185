// Package main is a utility for generating and hashing gateway API keys.
// The gateway can keep only a bcrypt hash of its shared key (auth.api_key_hash),
// so this tool is used to mint a new key and its hash without starting the server.
package main

import (
	"fmt"
	"os"

	"github.com/intake-gateway/intake-gateway/internal/auth"
	"github.com/spf13/cobra"
)

var (
	generate bool
	prefix   string
)

var rootCmd = &cobra.Command{
	Use:   "hash [key]",
	Short: "Hash an API key for auth.api_key_hash.",
	Long: `Hash an API key for auth.api_key_hash.

With --generate a new random key is minted and printed together with its hash.
Without an argument the key is read from stdin (without echo on a terminal).`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var key string
		switch {
		case generate:
			k, err := auth.GenerateAPIKey(prefix)
			if err != nil {
				return err
			}
			key = k
		case len(args) == 1:
			key = args[0]
		default:
			k, err := auth.ReadKey(os.Stdin, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			key = k
		}

		hash, err := auth.HashAPIKey(key)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if generate {
			fmt.Fprintf(out, "key:  %s\n", key)
			fmt.Fprintf(out, "hash: %s\n", hash)
			return nil
		}
		fmt.Fprintln(out, hash)
		return nil
	},
}

func init() {
	rootCmd.Flags().BoolVar(&generate, "generate", false, "mint a new random key")
	rootCmd.Flags().StringVar(&prefix, "prefix", "igw", "prefix for generated keys")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
