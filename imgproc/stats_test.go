package imgproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedianOdd(t *testing.T) {
	assert.Equal(t, 3.0, Median([]float64{5, 1, 3, 2, 4}))
}

func TestMedianEven(t *testing.T) {
	assert.Equal(t, 2.5, Median([]float64{1, 2, 3, 4}))
}

func TestMedianEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
}

func TestCubicKernelPeakAtZero(t *testing.T) {
	assert.Equal(t, 1.0, CubicKernel(0))
}

func TestCubicKernelZeroBeyondSupport(t *testing.T) {
	assert.Equal(t, 0.0, CubicKernel(2.5))
}

func TestCubicKernelSymmetric(t *testing.T) {
	assert.Equal(t, CubicKernel(0.7), CubicKernel(-0.7))
}
