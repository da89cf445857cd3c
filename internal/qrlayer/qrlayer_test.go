package qrlayer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"product-authenticity-service/internal/domain"
)

const testVisibleData = `{"productId":"P100","name":"Vitamin C","brand":"Acme","batchNo":"B7","expiryDate":"2026-01-01"}`

func testSecretData() string {
	return `{"ciphertext":"` + strings.Repeat("QUJDRA", 36) + `","signature":"` +
		strings.Repeat("ab", 32) + `","productId":"P100","timestamp":1700000000123}`
}

func renderCredential(t *testing.T, c *Codec) []byte {
	t.Helper()
	visible, err := c.RenderVisible(testVisibleData)
	if err != nil {
		t.Fatalf("RenderVisible failed: %v", err)
	}
	hidden, err := c.RenderHidden(testSecretData())
	if err != nil {
		t.Fatalf("RenderHidden failed: %v", err)
	}
	out, err := c.Composite(visible, hidden, "P100")
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	return out
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func TestRenderVisible_Size(t *testing.T) {
	c := NewCodec()

	img, err := c.RenderVisible(testVisibleData)
	if err != nil {
		t.Fatalf("RenderVisible failed: %v", err)
	}

	b := img.Bounds()
	if b.Dx() != b.Dy() {
		t.Errorf("want square image, got %dx%d", b.Dx(), b.Dy())
	}
	if b.Dx() > VisibleSize || b.Dx() < VisibleSize/2 {
		t.Errorf("unexpected size %d", b.Dx())
	}
	// 静寂ゾーンは白
	if got := img.NRGBAAt(0, 0); got != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("want white quiet zone, got %v", got)
	}
}

func TestRenderVisible_Deterministic(t *testing.T) {
	c := NewCodec()

	a, err := c.RenderVisible(testVisibleData)
	if err != nil {
		t.Fatalf("RenderVisible failed: %v", err)
	}
	b, err := c.RenderVisible(testVisibleData)
	if err != nil {
		t.Fatalf("RenderVisible failed: %v", err)
	}
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("identical input produced different images")
	}
}

func TestRenderHidden_Size(t *testing.T) {
	c := NewCodec()

	img, err := c.RenderHidden(testSecretData())
	if err != nil {
		t.Fatalf("RenderHidden failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != HiddenSize || b.Dy() != HiddenSize {
		t.Errorf("want %dx%d, got %dx%d", HiddenSize, HiddenSize, b.Dx(), b.Dy())
	}
}

func TestComposite_Deterministic(t *testing.T) {
	c := NewCodec()

	first := renderCredential(t, c)
	second := renderCredential(t, c)
	if !bytes.Equal(first, second) {
		t.Error("identical input produced different PNG bytes")
	}
	if !strings.HasPrefix(DataURI(first), "data:image/png;base64,") {
		t.Error("unexpected data URI prefix")
	}
}

func TestComposite_HiddenTooLarge(t *testing.T) {
	c := NewCodec()
	visible := image.NewNRGBA(image.Rect(0, 0, 50, 50))
	hidden := image.NewNRGBA(image.Rect(0, 0, 80, 80))

	if _, err := c.Composite(visible, hidden, "P100"); err == nil {
		t.Error("want error, got nil")
	}
}

func TestExtract_DualLayer(t *testing.T) {
	c := NewCodec()

	analysis, err := c.Extract(renderCredential(t, c))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if !analysis.HasSecurityMarkers {
		t.Error("want security markers")
	}
	if !analysis.HasVisibleLayer {
		t.Errorf("want visible layer, dark ratio %f", analysis.Analysis.DarkRatio)
	}
	if !analysis.HasHiddenLayer {
		t.Errorf("want hidden layer, diversity %f", analysis.Analysis.HiddenDiversity)
	}
	if !analysis.IsDualLayer {
		t.Error("want dual layer")
	}
	if analysis.Analysis.HiddenOpacity != HiddenOpacity {
		t.Errorf("want hidden opacity %v, got %v", HiddenOpacity, analysis.Analysis.HiddenOpacity)
	}
	if analysis.Analysis.DetectionMethod != "image-analysis" {
		t.Errorf("unexpected detection method %q", analysis.Analysis.DetectionMethod)
	}
}

func TestExtract_SingleLayer(t *testing.T) {
	c := NewCodec()
	visible, err := c.RenderVisible(testVisibleData)
	if err != nil {
		t.Fatalf("RenderVisible failed: %v", err)
	}

	analysis, err := c.Extract(encodePNG(t, visible))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if analysis.HasHiddenLayer {
		t.Error("want no hidden layer on plain QR")
	}
	if analysis.HasSecurityMarkers {
		t.Error("want no security markers on plain QR")
	}
	if !analysis.HasVisibleLayer {
		t.Error("want visible layer on plain QR")
	}
	if analysis.IsDualLayer {
		t.Error("want not dual layer")
	}
}

func TestExtract_BlankImage(t *testing.T) {
	c := NewCodec()
	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	analysis, err := c.Extract(encodePNG(t, img))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if analysis.HasVisibleLayer {
		t.Error("want no visible layer on blank image")
	}
	if analysis.Analysis.DarkRatio != 0 {
		t.Errorf("want dark ratio 0, got %f", analysis.Analysis.DarkRatio)
	}
}

func TestExtract_TooSmallForHiddenRegion(t *testing.T) {
	c := NewCodec()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))

	analysis, err := c.Extract(encodePNG(t, img))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if analysis.HasHiddenLayer {
		t.Error("want no hidden layer on small image")
	}
}

func TestExtract_InvalidBytes(t *testing.T) {
	c := NewCodec()

	_, err := c.Extract([]byte("not an image"))
	if !errors.Is(err, domain.ErrInvalidImage) {
		t.Errorf("want ErrInvalidImage, got %v", err)
	}
}

func TestExtract_OversizedDimensions(t *testing.T) {
	c := NewCodec()

	// 幅だけが上限を超える1行の画像。PNGとしては数百バイトに収まる
	wide := encodePNG(t, image.NewGray(image.Rect(0, 0, MaxImageDimension+1, 1)))
	_, err := c.Extract(wide)
	if !errors.Is(err, domain.ErrInvalidImage) {
		t.Errorf("want ErrInvalidImage for wide image, got %v", err)
	}

	tall := encodePNG(t, image.NewGray(image.Rect(0, 0, 1, MaxImageDimension+1)))
	_, err = c.Extract(tall)
	if !errors.Is(err, domain.ErrInvalidImage) {
		t.Errorf("want ErrInvalidImage for tall image, got %v", err)
	}
}

func TestExtract_MaxDimensionAccepted(t *testing.T) {
	c := NewCodec()

	_, err := c.Extract(encodePNG(t, image.NewGray(image.Rect(0, 0, MaxImageDimension, 1))))
	if err != nil {
		t.Errorf("want image at the limit accepted, got %v", err)
	}
}
