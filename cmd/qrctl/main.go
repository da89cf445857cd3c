// Package main はCLIツールのエントリポイント。
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	apiURL  string
	output  string
	timeout time.Duration
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "qrctl",
		Short: "Product Authenticity Service CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if apiURL == "" {
				apiURL = os.Getenv("QRCTL_API_URL")
			}
			httpClient = &http.Client{Timeout: timeout}
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set QRCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(getCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(ledgerCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(secretCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "qrctl version %s\n", version)
		},
	}
}

func requireAPIURL() error {
	if apiURL == "" {
		return fmt.Errorf("--api-url is required (or set QRCTL_API_URL)")
	}
	return nil
}

// doRequest はAPIを呼び出し、期待するステータス以外ならエラーを返す。
func doRequest(method, target string, body io.Reader, expected ...int) ([]byte, error) {
	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	for _, code := range expected {
		if resp.StatusCode == code {
			return respBody, nil
		}
	}
	return nil, handleErrorResponse(resp.StatusCode, respBody)
}

// registerCmd は製品登録コマンド。
func registerCmd() *cobra.Command {
	var sellerID, productID, name, brand, batchNo, expiryDate, qrOut string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a product and issue its dual-layer QR credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAPIURL(); err != nil {
				return err
			}

			payload, err := json.Marshal(map[string]string{
				"seller_id":   sellerID,
				"product_id":  productID,
				"name":        name,
				"brand":       brand,
				"batch_no":    batchNo,
				"expiry_date": expiryDate,
			})
			if err != nil {
				return fmt.Errorf("encoding request: %w", err)
			}

			body, err := doRequest(http.MethodPost, apiURL+"/v1/products", bytes.NewReader(payload), http.StatusCreated)
			if err != nil {
				return err
			}

			var result struct {
				ProductID string `json:"product_id"`
				QRCode    string `json:"qr_code"`
				Registry  struct {
					TransactionRef string `json:"transaction_ref"`
					BlockRef       uint64 `json:"block_ref"`
				} `json:"registry"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			if qrOut != "" {
				if err := writeDataURI(qrOut, result.QRCode); err != nil {
					return err
				}
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered product %q (transaction: %s, block: %d)\n",
				result.ProductID, result.Registry.TransactionRef, result.Registry.BlockRef)
			if qrOut != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Credential image written to %s\n", qrOut)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sellerID, "seller", "", "Seller ID (required)")
	cmd.Flags().StringVar(&productID, "product", "", "Product ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "Product name (required)")
	cmd.Flags().StringVar(&brand, "brand", "", "Brand (required)")
	cmd.Flags().StringVar(&batchNo, "batch", "", "Batch number (required)")
	cmd.Flags().StringVar(&expiryDate, "expiry", "", "Expiry date (required)")
	cmd.Flags().StringVar(&qrOut, "qr-out", "", "Write the credential PNG to this path")
	for _, f := range []string{"seller", "product", "name", "brand", "batch", "expiry"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

// getCmd は製品取得コマンド。
func getCmd() *cobra.Command {
	var productID string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Get a registered product",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAPIURL(); err != nil {
				return err
			}

			body, err := doRequest(http.MethodGet, apiURL+"/v1/products/"+url.PathEscape(productID), nil, http.StatusOK)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var p productView
			if err := json.Unmarshal(body, &p); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s / %s  batch %s  expires %s  verified %d time(s)\n",
				p.ProductID, p.Brand, p.Name, p.BatchNo, p.ExpiryDate, p.VerificationCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&productID, "product", "", "Product ID (required)")
	cmd.MarkFlagRequired("product")
	return cmd
}

type productView struct {
	ProductID         string `json:"product_id"`
	SellerID          string `json:"seller_id"`
	Name              string `json:"name"`
	Brand             string `json:"brand"`
	BatchNo           string `json:"batch_no"`
	ExpiryDate        string `json:"expiry_date"`
	VerificationCount uint   `json:"verification_count"`
	CreatedAt         string `json:"created_at"`
}

// listCmd は製品一覧の取得コマンド。
func listCmd() *cobra.Command {
	var sellerID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered products",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAPIURL(); err != nil {
				return err
			}

			target := apiURL + "/v1/products"
			if sellerID != "" {
				target += "?seller_id=" + url.QueryEscape(sellerID)
			}
			body, err := doRequest(http.MethodGet, target, nil, http.StatusOK)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var result struct {
				Products []productView `json:"products"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-20s %-16s %-24s %-8s %s\n", "PRODUCT_ID", "SELLER", "NAME", "SCANS", "CREATED_AT")
			for _, p := range result.Products {
				fmt.Fprintf(out, "%-20s %-16s %-24s %-8d %s\n", p.ProductID, p.SellerID, p.Name, p.VerificationCount, p.CreatedAt)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sellerID, "seller", "", "Filter by seller ID")
	return cmd
}

// deleteCmd は製品削除コマンド。
func deleteCmd() *cobra.Command {
	var productID string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a product record (the registry entry is kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAPIURL(); err != nil {
				return err
			}

			if _, err := doRequest(http.MethodDelete, apiURL+"/v1/products/"+url.PathEscape(productID), nil, http.StatusAccepted); err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), "{}")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted product %q\n", productID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&productID, "product", "", "Product ID (required)")
	cmd.MarkFlagRequired("product")
	return cmd
}

type verifyView struct {
	Outcome        string `json:"outcome"`
	Authenticity   string `json:"authenticity"`
	SecurityLevel  string `json:"security_level"`
	TokenReason    string `json:"token_reason"`
	DualLayerCheck struct {
		VisibleLayer       bool   `json:"visibleLayer"`
		HiddenLayer        bool   `json:"hiddenLayer"`
		BothLayersVerified bool   `json:"bothLayersVerified"`
		CryptoTokenValid   bool   `json:"cryptoTokenValid"`
		QRFormat           string `json:"qrFormat"`
	} `json:"dual_layer_check"`
}

// verifyCmd は真贋検証コマンド。
func verifyCmd() *cobra.Command {
	var productID, hiddenToken, hiddenSignature string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a product by ID and optional hidden-layer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAPIURL(); err != nil {
				return err
			}

			q := url.Values{}
			if hiddenToken != "" {
				q.Set("hiddenLayerToken", hiddenToken)
			}
			if hiddenSignature != "" {
				q.Set("hiddenLayerSignature", hiddenSignature)
			}
			target := apiURL + "/v1/products/" + url.PathEscape(productID) + "/verify"
			if len(q) > 0 {
				target += "?" + q.Encode()
			}

			// NOT_FOUND も判定結果として返るため404を受け付ける
			body, err := doRequest(http.MethodGet, target, nil, http.StatusOK, http.StatusNotFound)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var v verifyView
			if err := json.Unmarshal(body, &v); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			if v.Outcome == "" {
				return handleErrorResponse(http.StatusNotFound, body)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, formatVerdict(v.SecurityLevel, v.Outcome))
			fmt.Fprintln(out, v.Authenticity)
			fmt.Fprintf(out, "visible layer: %s  hidden layer: %s  token: %s  format: %s\n",
				mark(v.DualLayerCheck.VisibleLayer), mark(v.DualLayerCheck.HiddenLayer),
				mark(v.DualLayerCheck.CryptoTokenValid), v.DualLayerCheck.QRFormat)
			if v.TokenReason != "" {
				fmt.Fprintf(out, "reason: %s\n", v.TokenReason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&productID, "product", "", "Product ID (required)")
	cmd.Flags().StringVar(&hiddenToken, "token", "", "Hidden-layer ciphertext")
	cmd.Flags().StringVar(&hiddenSignature, "signature", "", "Hidden-layer signature")
	cmd.MarkFlagRequired("product")
	return cmd
}

// historyCmd は検証ログの取得コマンド。
func historyCmd() *cobra.Command {
	var productID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show verification attempts for a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAPIURL(); err != nil {
				return err
			}

			body, err := doRequest(http.MethodGet, apiURL+"/v1/products/"+url.PathEscape(productID)+"/verifications", nil, http.StatusOK)
			if err != nil {
				return err
			}

			if output == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), string(body))
				return nil
			}
			var result struct {
				Verifications []struct {
					Method    string `json:"verification_method"`
					Outcome   string `json:"outcome"`
					CreatedAt string `json:"created_at"`
				} `json:"verifications"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-22s %-18s %s\n", "CREATED_AT", "METHOD", "OUTCOME")
			for _, v := range result.Verifications {
				fmt.Fprintf(out, "%-22s %-18s %s\n", v.CreatedAt, v.Method, v.Outcome)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&productID, "product", "", "Product ID (required)")
	cmd.MarkFlagRequired("product")
	return cmd
}

// formatVerdict はセキュリティレベルに応じて判定結果を色付けする。
func formatVerdict(level, outcome string) string {
	var c *color.Color
	switch level {
	case "MAXIMUM":
		c = color.New(color.FgGreen, color.Bold)
	case "STANDARD":
		c = color.New(color.FgYellow, color.Bold)
	default:
		c = color.New(color.FgRed, color.Bold)
	}
	return c.Sprintf("[%s] %s", level, outcome)
}

func mark(ok bool) string {
	if ok {
		return color.GreenString("ok")
	}
	return color.RedString("no")
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("Error: %s", errResp.Message)
	}
	return fmt.Errorf("Error: server returned status %d", statusCode)
}
