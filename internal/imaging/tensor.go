// Package imaging turns dense image tensors into PNG files. Tensors are
// normalized to NHWC, batches are tiled into a grid, and values in [0,1]
// are scaled to 8-bit channels.
package imaging

import (
	"errors"
	"fmt"
	"strings"
)

// CanonicalLayout is the axis order every tensor is normalized to.
const CanonicalLayout = "NHWC"

// DefaultLayout is assumed when a tensor carries no layout.
const DefaultLayout = "NCHW"

// ErrInvalidTensor is returned for tensors whose shape, layout and data
// disagree.
var ErrInvalidTensor = errors.New("invalid image tensor")

// Tensor is a dense row-major array with named axes. Layout is a string over
// N (batch), C (channel), H (height) and W (width) naming each axis of Shape
// in order; H and W are required.
type Tensor struct {
	Data   []float64
	Shape  []int
	Layout string
}

func (t Tensor) layout() string {
	if t.Layout == "" {
		return DefaultLayout
	}
	return strings.ToUpper(t.Layout)
}

// Validate checks the tensor is well formed.
func (t Tensor) Validate() error {
	layout := t.layout()
	if len(layout) != len(t.Shape) {
		return fmt.Errorf("%w: layout %q has %d axes, shape has %d", ErrInvalidTensor, layout, len(layout), len(t.Shape))
	}
	seen := map[rune]bool{}
	for _, axis := range layout {
		if !strings.ContainsRune(CanonicalLayout, axis) {
			return fmt.Errorf("%w: unknown axis %q in layout %q", ErrInvalidTensor, axis, layout)
		}
		if seen[axis] {
			return fmt.Errorf("%w: repeated axis %q in layout %q", ErrInvalidTensor, axis, layout)
		}
		seen[axis] = true
	}
	if !seen['H'] || !seen['W'] {
		return fmt.Errorf("%w: layout %q needs H and W axes", ErrInvalidTensor, layout)
	}
	size := 1
	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("%w: non-positive dimension in shape %v", ErrInvalidTensor, t.Shape)
		}
		size *= d
	}
	if size != len(t.Data) {
		return fmt.Errorf("%w: shape %v needs %d values, got %d", ErrInvalidTensor, t.Shape, size, len(t.Data))
	}
	return nil
}

// ToNHWC appends missing C and N axes as size-1 axes and reorders the data
// to NHWC.
func ToNHWC(t Tensor) (Tensor, error) {
	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}
	layout := t.layout()
	shape := append([]int(nil), t.Shape...)
	if !strings.ContainsRune(layout, 'C') {
		layout += "C"
		shape = append(shape, 1)
	}
	if !strings.ContainsRune(layout, 'N') {
		layout += "N"
		shape = append(shape, 1)
	}

	perm := make([]int, len(CanonicalLayout))
	for i, axis := range CanonicalLayout {
		perm[i] = strings.IndexRune(layout, axis)
	}
	return transpose(t.Data, shape, perm, CanonicalLayout), nil
}

// transpose reorders a row-major array so that output axis i is input axis
// perm[i].
func transpose(data []float64, shape, perm []int, layout string) Tensor {
	rank := len(shape)
	strides := make([]int, rank)
	stride := 1
	for i := rank - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}

	outShape := make([]int, rank)
	outStrides := make([]int, rank)
	for i, p := range perm {
		outShape[i] = shape[p]
		outStrides[i] = strides[p]
	}

	out := make([]float64, len(data))
	idx := make([]int, rank)
	for n := range out {
		src := 0
		for i := range idx {
			src += idx[i] * outStrides[i]
		}
		out[n] = data[src]
		for i := rank - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < outShape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return Tensor{Data: out, Shape: outShape, Layout: layout}
}

// GridSize returns the rows and columns used to tile n images.
func GridSize(n int) (rows, cols int) {
	if n <= 0 {
		return 0, 0
	}
	rows = 1
	for (rows+1)*(rows+1) <= n {
		rows++
	}
	cols = (n + rows - 1) / rows
	return rows, cols
}

// Tile lays an NHWC batch out as a single HWC image with GridSize rows and
// columns, filling unused cells with zeros. The result has N == 1.
func Tile(t Tensor) Tensor {
	n, h, w, c := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	if n == 1 {
		return t
	}
	rows, cols := GridSize(n)
	outH, outW := h*rows, w*cols
	out := make([]float64, outH*outW*c)
	for img := 0; img < n; img++ {
		gy, gx := img/cols, img%cols
		for y := 0; y < h; y++ {
			src := ((img*h+y)*w)*c
			dst := (((gy*h+y)*outW)+gx*w)*c
			copy(out[dst:dst+w*c], t.Data[src:src+w*c])
		}
	}
	return Tensor{Data: out, Shape: []int{1, outH, outW, c}, Layout: CanonicalLayout}
}
