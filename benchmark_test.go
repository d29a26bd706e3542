package simt

import (
	"fmt"
	"math/rand"
	"testing"
)

func BenchmarkReduction(b *testing.B) {
	for _, size := range []int{1 << 10, 1 << 14, 1 << 18, 1 << 22} {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			input := make([]float32, size)
			rng := rand.New(rand.NewSource(1))
			for i := range input {
				input[i] = rng.Float32()
			}

			nOut := (size + DefaultGroupSize - 1) / DefaultGroupSize
			d_in, _ := Malloc(size * 4)
			d_out, _ := Malloc(nOut * 4)
			defer Free(d_in)
			defer Free(d_out)
			Memcpy(d_in, input, size*4, MemcpyHostToDevice)

			b.SetBytes(int64(size * 4))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := Reduction(d_out, d_in, size, DefaultGroupSize); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkReductionGroupSizes(b *testing.B) {
	const size = 1 << 20
	input := make([]float32, size)
	rng := rand.New(rand.NewSource(2))
	for i := range input {
		input[i] = rng.Float32()
	}

	for _, nThreads := range []int{32, 64, 128, 256, 512, 1024} {
		b.Run(fmt.Sprintf("threads=%d", nThreads), func(b *testing.B) {
			nOut := (size + nThreads - 1) / nThreads
			d_in, _ := Malloc(size * 4)
			d_out, _ := Malloc(nOut * 4)
			defer Free(d_in)
			defer Free(d_out)
			Memcpy(d_in, input, size*4, MemcpyHostToDevice)

			b.SetBytes(int64(size * 4))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := Reduction(d_out, d_in, size, nThreads); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
