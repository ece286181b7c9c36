package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
)

// Render converts a tensor into an 8-bit image. One channel gives a gray
// image, three RGB and four RGBA.
func Render(t Tensor) (image.Image, error) {
	nhwc, err := ToNHWC(t)
	if err != nil {
		return nil, err
	}
	grid := Tile(nhwc)
	h, w, c := grid.Shape[1], grid.Shape[2], grid.Shape[3]
	rect := image.Rect(0, 0, w, h)

	switch c {
	case 1:
		img := image.NewGray(rect)
		for i, v := range grid.Data {
			img.Pix[(i/w)*img.Stride+i%w] = toByte(v)
		}
		return img, nil
	case 3:
		img := image.NewNRGBA(rect)
		for p := 0; p < h*w; p++ {
			img.SetNRGBA(p%w, p/w, color.NRGBA{
				R: toByte(grid.Data[p*3]),
				G: toByte(grid.Data[p*3+1]),
				B: toByte(grid.Data[p*3+2]),
				A: 0xff,
			})
		}
		return img, nil
	case 4:
		img := image.NewNRGBA(rect)
		for p := 0; p < h*w; p++ {
			img.SetNRGBA(p%w, p/w, color.NRGBA{
				R: toByte(grid.Data[p*4]),
				G: toByte(grid.Data[p*4+1]),
				B: toByte(grid.Data[p*4+2]),
				A: toByte(grid.Data[p*4+3]),
			})
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %d channels, want 1, 3 or 4", ErrInvalidTensor, c)
	}
}

// toByte scales v by 255, clamps and truncates. NaN maps to zero.
func toByte(v float64) uint8 {
	s := v * 255
	switch {
	case math.IsNaN(s) || s <= 0:
		return 0
	case s >= 255:
		return 255
	default:
		return uint8(s)
	}
}

// WritePNG renders t and writes it to w as PNG.
func WritePNG(w io.Writer, t Tensor) error {
	img, err := Render(t)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// EncodePNG renders t into PNG bytes.
func EncodePNG(t Tensor) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
