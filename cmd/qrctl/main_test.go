package main

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	apiURL = ""
	output = "text"
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVerifyCmd_Genuine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/products/P100/verify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("hiddenLayerToken") != "tok" {
			t.Errorf("token not forwarded: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"outcome":"GENUINE_BOTH_LAYERS","authenticity":"ORIGINAL PRODUCT","security_level":"MAXIMUM","dual_layer_check":{"visibleLayer":true,"hiddenLayer":true,"bothLayersVerified":true,"cryptoTokenValid":true,"qrFormat":"dual-layer"}}`))
	}))
	defer srv.Close()

	out, err := runCLI(t, "verify", "--api-url", srv.URL, "--product", "P100", "--token", "tok", "--signature", "sig")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "[MAXIMUM] GENUINE_BOTH_LAYERS") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestVerifyCmd_NotFoundIsAVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"outcome":"NOT_FOUND","authenticity":"Product not found","security_level":"CRITICAL","dual_layer_check":{}}`))
	}))
	defer srv.Close()

	out, err := runCLI(t, "verify", "--api-url", srv.URL, "--product", "P404")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "[CRITICAL] NOT_FOUND") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRegisterCmd_WritesImage(t *testing.T) {
	png := []byte("\x89PNG fake")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/products" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"product_id":"P100","qr_code":"data:image/png;base64,` + base64.StdEncoding.EncodeToString(png) + `","registry":{"transaction_ref":"abc","block_ref":3}}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "p100.png")
	out, err := runCLI(t, "register", "--api-url", srv.URL,
		"--seller", "seller-1", "--product", "P100", "--name", "Vitamin C",
		"--brand", "Acme", "--batch", "B-7", "--expiry", "2027-12-31", "--qr-out", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "transaction: abc, block: 3") {
		t.Errorf("unexpected output %q", out)
	}
	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("image not written: %v", err)
	}
	if !bytes.Equal(written, png) {
		t.Errorf("unexpected image bytes %q", written)
	}
}

func TestGetCmd_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"PRODUCT_NOT_FOUND","message":"product not found"}`))
	}))
	defer srv.Close()

	_, err := runCLI(t, "get", "--api-url", srv.URL, "--product", "P404")
	if err == nil || !strings.Contains(err.Error(), "product not found") {
		t.Errorf("want product not found error, got %v", err)
	}
}

func TestRequireAPIURL(t *testing.T) {
	t.Setenv("QRCTL_API_URL", "")

	_, err := runCLI(t, "get", "--product", "P100")
	if err == nil || !strings.Contains(err.Error(), "--api-url is required") {
		t.Errorf("want missing api url error, got %v", err)
	}
}

func TestWriteDataURI_Malformed(t *testing.T) {
	if err := writeDataURI(filepath.Join(t.TempDir(), "x.png"), "not-a-data-uri"); err == nil {
		t.Error("want error for malformed data URI")
	}
}
