package simt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reduceOnDevice copies input to a fresh device buffer, runs the two-pass
// reduction, and returns the final scalar plus the output buffer contents.
func reduceOnDevice(t *testing.T, input []float32, nThreads int) (float32, []float32) {
	t.Helper()

	size := len(input)
	nOut := (size + nThreads - 1) / nThreads
	if nOut < 1 {
		nOut = 1
	}

	dIn, err := Malloc(size * 4)
	require.NoError(t, err)
	defer Free(dIn)
	dOut, err := Malloc(nOut * 4)
	require.NoError(t, err)
	defer Free(dOut)

	require.NoError(t, Memcpy(dIn, input, size*4, MemcpyHostToDevice))
	require.NoError(t, Reduction(dOut, dIn, size, nThreads))

	out := make([]float32, nOut)
	copy(out, dOut.Float32())
	return out[0], out
}

// sum64 is the float64 reference accumulator.
func sum64(xs []float32) float64 {
	var s float64
	for _, x := range xs {
		s += float64(x)
	}
	return s
}

func TestReductionSingleElement(t *testing.T) {
	got, _ := reduceOnDevice(t, []float32{42.5}, 256)
	assert.Equal(t, float32(42.5), got, "single element must pass through exactly")
}

func TestReductionSingleBlock(t *testing.T) {
	// One group of 4 lanes covers the input exactly, so the first pass
	// already produces the final sum and the second pass must not
	// disturb it.
	input := []float32{1.0, 2.0, 3.0, 4.0}

	nBlocks, err := LaunchShape(len(input), 4)
	require.NoError(t, err)
	require.Equal(t, 1, nBlocks)

	got, _ := reduceOnDevice(t, input, 4)
	assert.Equal(t, float32(10.0), got)
}

func TestReductionMillionOnes(t *testing.T) {
	input := make([]float32, 1_000_000)
	for i := range input {
		input[i] = 1.0
	}

	got, _ := reduceOnDevice(t, input, 256)

	// Integer-valued partial sums below 2^24 are exact in float32.
	assert.Equal(t, float32(1_000_000), got)
}

func TestReductionNonPowerOfTwoLength(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	input := make([]float32, 1000)
	for i := range input {
		input[i] = rng.Float32()
	}

	got, _ := reduceOnDevice(t, input, 256)
	want := float32(sum64(input))

	assert.NoError(t, VerifyFloat32(got, want, RelaxedTolerance(), "sum of 1000 floats"))
}

func TestReductionRandomLengths(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for _, size := range []int{1, 2, 3, 31, 32, 33, 255, 256, 257, 1023, 4096, 65537} {
		input := make([]float32, size)
		for i := range input {
			input[i] = rng.Float32()*2 - 1
		}

		got, _ := reduceOnDevice(t, input, 256)
		want := float32(sum64(input))

		assert.NoError(t, VerifyFloat32(got, want, RelaxedTolerance(), "sum"), "size=%d", size)
	}
}

func TestReductionGroupSizeInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	input := make([]float32, 100_000)
	for i := range input {
		input[i] = rng.Float32()
	}
	want := float32(sum64(input))

	for _, nThreads := range []int{4, 32, 64, 128, 256, 512, 1024} {
		got, _ := reduceOnDevice(t, input, nThreads)
		assert.NoError(t, VerifyFloat32(got, want, RelaxedTolerance(), "sum"),
			"nThreads=%d", nThreads)
	}
}

func TestReductionRepeatable(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	input := make([]float32, 10_000)
	for i := range input {
		input[i] = rng.Float32()
	}

	first, _ := reduceOnDevice(t, input, 256)
	second, _ := reduceOnDevice(t, input, 256)

	assert.Equal(t, first, second, "same input and shape must give bit-identical results")
}

func TestReductionNegativeAndMixed(t *testing.T) {
	input := []float32{1.5, -2.25, 3.75, -0.5, 8.0, -8.0, 0.25, -0.75}
	got, _ := reduceOnDevice(t, input, 4)
	assert.Equal(t, float32(2.0), got)
}

func TestLaunchShape(t *testing.T) {
	dev := GetDevice()

	// Small inputs get exactly the groups needed to cover them.
	n, err := LaunchShape(1000, 256)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = LaunchShape(4, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Huge inputs are capped by device residency, not input size.
	n, err = LaunchShape(1<<30, 256)
	require.NoError(t, err)
	resident := MaxResidentLanesPerUnit / 256
	if resident > MaxResidentGroupsPerUnit {
		resident = MaxResidentGroupsPerUnit
	}
	assert.Equal(t, resident*dev.NumUnits, n)

	// The cap never exceeds what a smaller input needs.
	small, err := LaunchShape(512, 256)
	require.NoError(t, err)
	assert.LessOrEqual(t, small, 2)

	_, err = LaunchShape(100, 0)
	assert.Error(t, err)
	assert.True(t, IsInvalidArgError(err))

	_, err = LaunchShape(100, MaxLanesPerGroup*2)
	assert.Error(t, err)
	assert.True(t, IsDeviceError(err))
}

func TestReductionSeparateContexts(t *testing.T) {
	// A dedicated context reduces independently of the default one.
	ctx := NewContext()
	defer ctx.Destroy()

	input := []float32{2, 4, 6, 8, 10}
	dIn, err := ctx.Malloc(len(input) * 4)
	require.NoError(t, err)
	dOut, err := ctx.Malloc(4)
	require.NoError(t, err)

	require.NoError(t, ctx.Memcpy(dIn, input, len(input)*4, MemcpyHostToDevice))
	require.NoError(t, ctx.Reduction(dOut, dIn, len(input), 32))

	assert.Equal(t, float32(30), dOut.Float32()[0])
}
