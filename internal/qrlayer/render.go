// Package qrlayer は二層QR画像の描画、合成、ヒューリスティック解析を提供する。
package qrlayer

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	// VisibleSize は可視レイヤーの目標サイズ（ピクセル）。
	VisibleSize = 300
	// HiddenSize は隠しレイヤーの目標サイズ（ピクセル）。
	HiddenSize = 80

	visibleQuietZone = 2 // モジュール数
	hiddenQuietZone  = 1

	// 隠しレイヤーのモジュール色のチャネル値範囲
	darkChannelMax  = 96
	lightChannelMin = 160
)

// Codec は二層QR画像を扱う。状態を持たない。
type Codec struct{}

// NewCodec はCodecを生成する。
func NewCodec() *Codec {
	return &Codec{}
}

// RenderVisible は公開データを誤り訂正レベルHのQRシンボルとして描画する。
// 同一入力に対して常に同一の画像を返す。
func (c *Codec) RenderVisible(data string) (*image.NRGBA, error) {
	bitmap, err := symbol(data, qrcode.High)
	if err != nil {
		return nil, fmt.Errorf("rendering visible layer: %w", err)
	}

	modules := len(bitmap) + 2*visibleQuietZone
	scale := VisibleSize / modules
	if scale < 1 {
		scale = 1
	}
	size := modules * scale

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	black := color.NRGBA{A: 255}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			mx, my := x/scale-visibleQuietZone, y/scale-visibleQuietZone
			if dark(bitmap, mx, my) {
				img.SetNRGBA(x, y, black)
			} else {
				img.SetNRGBA(x, y, white)
			}
		}
	}
	return img, nil
}

// RenderHidden は秘密データを誤り訂正レベルMのQRシンボルとして描画する。
// 各モジュールはデータから導出した色で塗られ、暗モジュールと明モジュールの
// 明度差は保たれる。
func (c *Codec) RenderHidden(data string) (*image.NRGBA, error) {
	bitmap, err := symbol(data, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("rendering hidden layer: %w", err)
	}

	size := HiddenSize
	if n := len(bitmap) + 2*hiddenQuietZone; n > size {
		size = n
	}
	offset := (size - len(bitmap)) / 2

	tex := newTexture(data)
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b := tex.next(dark(bitmap, x-offset, y-offset))
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img, nil
}

func symbol(data string, level qrcode.RecoveryLevel) ([][]bool, error) {
	q, err := qrcode.New(data, level)
	if err != nil {
		return nil, err
	}
	q.DisableBorder = true
	return q.Bitmap(), nil
}

func dark(bitmap [][]bool, x, y int) bool {
	if y < 0 || y >= len(bitmap) || x < 0 || x >= len(bitmap[y]) {
		return false
	}
	return bitmap[y][x]
}

// texture はSHA-256のカウンタモードで決定的な色列を生成する。
type texture struct {
	seed    [sha256.Size]byte
	counter uint64
	buf     []byte
}

func newTexture(data string) *texture {
	return &texture{seed: sha256.Sum256([]byte(data))}
}

func (t *texture) nextByte() byte {
	if len(t.buf) == 0 {
		var block [sha256.Size + 8]byte
		copy(block[:], t.seed[:])
		binary.BigEndian.PutUint64(block[sha256.Size:], t.counter)
		t.counter++
		sum := sha256.Sum256(block[:])
		t.buf = sum[:]
	}
	b := t.buf[0]
	t.buf = t.buf[1:]
	return b
}

func (t *texture) next(isDark bool) (r, g, b uint8) {
	channel := func() uint8 {
		v := t.nextByte() % darkChannelMax
		if isDark {
			return v
		}
		return lightChannelMin + v
	}
	return channel(), channel(), channel()
}
