package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"conductor-hq/tollbooth/pkg/config"
	"conductor-hq/tollbooth/pkg/signature"
)

var verifyFlags struct {
	token      string
	secret     string
	unverified bool
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a receipt token offline",
	Long: `Verify a receipt token's signature against the signing secret.

The secret comes from --secret, TOLLBOOTH_SIGNING_SECRET, or the config
file, in that order. With --unverified the token's claims are decoded
WITHOUT signature verification, for debugging only; the output is marked
accordingly and must never be trusted.

Examples:
  # Verify a token
  tollbooth verify --token "eyJhbGci..."

  # Inspect claims without verification
  tollbooth verify --token "eyJhbGci..." --unverified`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVarP(&verifyFlags.token, "token", "t", "", "receipt token to verify (required)")
	verifyCmd.Flags().StringVar(&verifyFlags.secret, "secret", "", "signing secret (overrides env and config)")
	verifyCmd.Flags().BoolVar(&verifyFlags.unverified, "unverified", false, "decode claims without verifying the signature")
	_ = verifyCmd.MarkFlagRequired("token")
}

func runVerify(cmd *cobra.Command, args []string) error {
	secret, err := resolveSecret()
	if err != nil {
		return err
	}

	engine, err := signature.New([]byte(secret))
	if err != nil {
		return fmt.Errorf("failed to create signature engine: %w", err)
	}

	if verifyFlags.unverified {
		claims, err := engine.DecodeUnverified(verifyFlags.token)
		if err != nil {
			return fmt.Errorf("failed to decode token: %w", err)
		}
		out, err := json.MarshalIndent(claims, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println("WARNING: claims decoded without signature verification")
		fmt.Println(string(out))
		return nil
	}

	claims, err := engine.Verify(verifyFlags.token)
	if err != nil {
		fmt.Println("✗ Token is NOT valid:", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println("✓ Token is valid")
	fmt.Println(string(out))
	return nil
}

// resolveSecret finds the signing secret from flag, environment, or the
// config file.
func resolveSecret() (string, error) {
	if verifyFlags.secret != "" {
		return verifyFlags.secret, nil
	}
	if env := os.Getenv("TOLLBOOTH_SIGNING_SECRET"); env != "" {
		return env, nil
	}
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return "", fmt.Errorf("no secret given and config could not be loaded: %w", err)
	}
	return cfg.Signing.Secret, nil
}
