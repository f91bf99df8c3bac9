package imgproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoxMeanVarConstantPlaneHasZeroVariance(t *testing.T) {
	p := NewU16Plane(5, 5)
	for i := range p.Data {
		p.Data[i] = 42
	}
	mean, variance := BoxMeanVar(p, 3)
	for _, v := range mean.Data {
		assert.InDelta(t, 42, v, 1e-4)
	}
	for _, v := range variance.Data {
		assert.InDelta(t, 0, v, 1e-4)
	}
}

func TestBoxMeanVarSingleWindowMatchesPixel(t *testing.T) {
	p := NewU16Plane(3, 3)
	for i := range p.Data {
		p.Data[i] = uint16(i)
	}
	mean, variance := BoxMeanVar(p, 1)
	for i, v := range p.Data {
		assert.InDelta(t, float32(v), mean.Data[i], 1e-4)
		assert.InDelta(t, 0, variance.Data[i], 1e-4)
	}
}

func TestBoxMeanVarDetectsHighVarianceAtEdge(t *testing.T) {
	p := NewU16Plane(5, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if x >= 2 {
				p.Set(y, x, 1000)
			}
		}
	}
	_, variance := BoxMeanVar(p, 3)
	assert.Greater(t, variance.At(2, 2), float32(0))
	assert.Equal(t, float32(0), variance.At(2, 4))
}
