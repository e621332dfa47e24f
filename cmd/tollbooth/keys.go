package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var keysFlags struct {
	output string
	length int
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage signing secrets",
	Long: `Generate signing secrets for receipt tokens.

Receipts are signed with HMAC-SHA256 over a shared secret of at least
32 bytes. The generate subcommand emits a cryptographically random secret
in hex encoding, suitable for TOLLBOOTH_SIGNING_SECRET.`,
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new signing secret",
	Long: `Generate a cryptographically random signing secret.

Examples:
  # Print a 32-byte secret as hex
  tollbooth keys generate

  # Write the secret to a file with owner-only permissions
  tollbooth keys generate --output secret.key`,
	RunE: runKeysGenerate,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd)

	keysGenerateCmd.Flags().StringVarP(&keysFlags.output, "output", "o", "", "write the secret to a file instead of stdout")
	keysGenerateCmd.Flags().IntVar(&keysFlags.length, "bytes", 32, "secret length in bytes (minimum 32)")
}

func runKeysGenerate(cmd *cobra.Command, args []string) error {
	if keysFlags.length < 32 {
		return fmt.Errorf("secret must be at least 32 bytes, got %d", keysFlags.length)
	}

	raw := make([]byte, keysFlags.length)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := hex.EncodeToString(raw)

	if keysFlags.output == "" {
		fmt.Println(secret)
		return nil
	}

	if err := os.WriteFile(keysFlags.output, []byte(secret+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write secret file: %w", err)
	}
	fmt.Printf("✓ Secret written to %s\n", keysFlags.output)
	return nil
}
