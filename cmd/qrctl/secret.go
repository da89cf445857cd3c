package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"product-authenticity-service/config"
	"product-authenticity-service/internal/infra"
)

// secretCmd はトークン秘密鍵の管理コマンド。
func secretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the token secret",
	}
	cmd.AddCommand(secretWrapCmd())
	return cmd
}

func secretWrapCmd() *cobra.Command {
	var keyName string
	cmd := &cobra.Command{
		Use:   "wrap",
		Short: "Encrypt CRYPTO_SECRET_KEY with Cloud KMS and print CRYPTO_SECRET_KEY_CIPHERTEXT",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg := config.Load()
			if keyName == "" {
				keyName = cfg.KMSKeyName
			}
			if cfg.CryptoSecretKey == "" {
				return fmt.Errorf("CRYPTO_SECRET_KEY environment variable is required")
			}

			kmsClient, err := infra.NewKMSClient(ctx, keyName)
			if err != nil {
				return fmt.Errorf("failed to init KMS client: %w", err)
			}
			defer func() {
				if closeErr := kmsClient.Close(); closeErr != nil {
					fmt.Fprintf(os.Stderr, "failed to close KMS client: %v\n", closeErr)
				}
			}()

			wrapped, err := infra.WrapTokenSecret(ctx, kmsClient, cfg.CryptoSecretKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "CRYPTO_SECRET_KEY_CIPHERTEXT=%s\n", wrapped)
			return nil
		},
	}
	cmd.Flags().StringVar(&keyName, "kms-key", "", "KMS key resource name (or set KMS_KEY_NAME)")
	return cmd
}
