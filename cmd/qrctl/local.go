package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"product-authenticity-service/config"
	"product-authenticity-service/internal/infra"
	"product-authenticity-service/internal/qrlayer"
	"product-authenticity-service/internal/registry"
)

// writeDataURI はdata URIをデコードしてファイルに書き出す。
func writeDataURI(path, dataURI string) error {
	_, encoded, ok := strings.Cut(dataURI, ";base64,")
	if !ok {
		return fmt.Errorf("unexpected qr_code format")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decoding qr_code: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// inspectCmd はローカルの画像ファイルを解析するコマンド。サーバーは不要。
func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <image.png>",
		Short: "Check whether an image looks like a dual-layer credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			analysis, err := qrlayer.NewCodec().Extract(raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(analysis)
			}

			if analysis.IsDualLayer {
				fmt.Fprintln(out, color.GreenString("dual-layer credential"))
			} else {
				fmt.Fprintln(out, color.YellowString("not a dual-layer credential"))
			}
			fmt.Fprintf(out, "visible layer: %s  hidden layer: %s  markers: %s\n",
				mark(analysis.HasVisibleLayer), mark(analysis.HasHiddenLayer), mark(analysis.HasSecurityMarkers))
			fmt.Fprintf(out, "dark ratio: %.3f  hidden diversity: %.3f\n",
				analysis.Analysis.DarkRatio, analysis.Analysis.HiddenDiversity)
			return nil
		},
	}
}

// ledgerCmd はローカルレジストリ台帳の管理コマンド。
func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the local registry ledger",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify-chain",
		Short: "Re-hash every block and check the chain links",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg := config.Load()

			db, err := infra.NewDB(cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			n, err := registry.NewLedger(db, cfg.RegistrySigner).VerifyChain(ctx)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), color.RedString("chain broken after %d block(s)", n))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("chain intact: %d block(s)", n))
			return nil
		},
	})
	return cmd
}
