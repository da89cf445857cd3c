package qrlayer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
)

const (
	// HiddenInset は隠しレイヤーを右下角から離す距離（ピクセル）。
	HiddenInset = 10
	// HiddenOpacity は隠しレイヤーの合成不透明度。
	HiddenOpacity = 0.15

	// 0.15 * 255 を丸めた整数アルファ
	hiddenAlpha = 38
)

// MarkerColor は四隅に打つセキュリティマーカーの色。
var MarkerColor = color.NRGBA{R: 255, A: 255}

// Composite は可視レイヤーの右下に隠しレイヤーを低不透明度で合成し、
// 四隅にマーカーを打ってPNGとして返す。
func (c *Codec) Composite(visible, hidden image.Image, productID string) ([]byte, error) {
	vb := visible.Bounds()
	hb := hidden.Bounds()
	if hb.Dx()+HiddenInset > vb.Dx() || hb.Dy()+HiddenInset > vb.Dy() {
		return nil, fmt.Errorf("compositing %s: hidden layer %dx%d does not fit visible layer %dx%d",
			productID, hb.Dx(), hb.Dy(), vb.Dx(), vb.Dy())
	}

	out := image.NewNRGBA(image.Rect(0, 0, vb.Dx(), vb.Dy()))
	draw.Draw(out, out.Bounds(), visible, vb.Min, draw.Src)

	ox := vb.Dx() - hb.Dx() - HiddenInset
	oy := vb.Dy() - hb.Dy() - HiddenInset
	for y := 0; y < hb.Dy(); y++ {
		for x := 0; x < hb.Dx(); x++ {
			fg := color.NRGBAModel.Convert(hidden.At(hb.Min.X+x, hb.Min.Y+y)).(color.NRGBA)
			bg := out.NRGBAAt(ox+x, oy+y)
			out.SetNRGBA(ox+x, oy+y, color.NRGBA{
				R: blend(bg.R, fg.R),
				G: blend(bg.G, fg.G),
				B: blend(bg.B, fg.B),
				A: 255,
			})
		}
	}

	w, h := vb.Dx(), vb.Dy()
	for _, p := range []image.Point{{0, 0}, {w - 1, 0}, {0, h - 1}, {w - 1, h - 1}} {
		out.SetNRGBA(p.X, p.Y, MarkerColor)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encoding credential %s: %w", productID, err)
	}
	return buf.Bytes(), nil
}

func blend(bg, fg uint8) uint8 {
	return uint8((uint32(bg)*(255-hiddenAlpha) + uint32(fg)*hiddenAlpha + 127) / 255)
}

// DataURI はPNGバイト列をdata URI形式に変換する。
func DataURI(pngBytes []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}
