package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"product-authenticity-service/internal/domain"
)

const maxResponseBytes = 1 << 20

// HTTPClient はHTTPで公開されたレジストリゲートウェイのクライアント。
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient は新しいHTTPClientを生成する。トランスポートはトレース計装される。
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Write は製品情報をレジストリに書き込む。
func (c *HTTPClient) Write(ctx context.Context, fields domain.ProductFields) (*domain.RegistryReceipt, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/products", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry write: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %s is already registered", domain.ErrProductAlreadyExists, fields.ProductID)
	default:
		return nil, unexpectedStatus("write", resp)
	}

	var receipt domain.RegistryReceipt
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("decoding registry receipt: %w", err)
	}
	return &receipt, nil
}

// Read はレジストリから製品情報を読み出す。404 は Found=false として返す。
func (c *HTTPClient) Read(ctx context.Context, productID string) (*domain.RegistryRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/products/"+url.PathEscape(productID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry read: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return &domain.RegistryRecord{Found: false}, nil
	default:
		return nil, unexpectedStatus("read", resp)
	}

	var record domain.RegistryRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&record); err != nil {
		return nil, fmt.Errorf("decoding registry record: %w", err)
	}
	// 200 応答は記録ありとみなす
	record.Found = true
	if record.ProductID == "" {
		record.ProductID = productID
	}
	return &record, nil
}

func unexpectedStatus(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("registry %s: unexpected status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(msg)))
}
