// Command reduce sums a float32 array with the two-pass parallel reduction.
//
// To sum a NumPy array: `go run ./cmd/reduce sum --input=data.npy`
//
// To sum a synthetic array: `go run ./cmd/reduce sum --n=1000000 --value=1.0`
//
// To sweep group sizes: `go run ./cmd/reduce bench --n=4194304`
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/sbinet/npyio"

	"github.com/simt-dev/simt"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&SumCommand{}, "")
	subcommands.Register(&BenchCommand{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

type SumCommand struct {
	input   string
	n       int
	value   float64
	threads int
}

var _ subcommands.Command = (*SumCommand)(nil)

func (*SumCommand) Name() string {
	return "sum"
}

func (*SumCommand) Synopsis() string {
	return "Sum a float32 array on the device"
}

func (*SumCommand) Usage() string {
	return ``
}

func (c *SumCommand) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.input, "input", "", "Path to a .npy file holding a float32 array")
	f.IntVar(&c.n, "n", 1_000_000, "Synthetic array length when no input file is given")
	f.Float64Var(&c.value, "value", 1.0, "Fill value for the synthetic array")
	f.IntVar(&c.threads, "threads", simt.DefaultGroupSize, "Lanes per thread group (power of two, max 1024)")
}

func (c *SumCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *SumCommand) executeErr(_ context.Context) error {
	input, err := c.loadInput()
	if err != nil {
		return err
	}

	sum, shape, elapsed, err := reduceHost(input, c.threads)
	if err != nil {
		return err
	}

	dev := simt.GetDevice()
	log.Printf("device: %s, units=%d", dev.Name, dev.NumUnits)
	log.Printf("n=%d threads=%d blocks=%d", len(input), c.threads, shape)
	log.Printf("sum=%v elapsed=%v throughput=%.2f GB/s",
		sum, elapsed, float64(len(input)*4)/elapsed.Seconds()/1e9)
	fmt.Println(sum)
	return nil
}

func (c *SumCommand) loadInput() ([]float32, error) {
	if c.input == "" {
		data := make([]float32, c.n)
		for i := range data {
			data[i] = float32(c.value)
		}
		return data, nil
	}

	f, err := os.Open(c.input)
	if err != nil {
		return nil, fmt.Errorf("while opening input: %w", err)
	}
	defer f.Close()

	var data []float32
	if err := npyio.Read(f, &data); err != nil {
		return nil, fmt.Errorf("while reading %s: %w", c.input, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input %s holds no elements", c.input)
	}
	return data, nil
}

type BenchCommand struct {
	n     int
	iters int
}

var _ subcommands.Command = (*BenchCommand)(nil)

func (*BenchCommand) Name() string {
	return "bench"
}

func (*BenchCommand) Synopsis() string {
	return "Sweep reduction throughput over group sizes"
}

func (*BenchCommand) Usage() string {
	return ``
}

func (c *BenchCommand) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.n, "n", 1<<22, "Array length")
	f.IntVar(&c.iters, "iters", 10, "Iterations per group size")
}

func (c *BenchCommand) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.executeErr(ctx); err != nil {
		log.Printf("Error: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *BenchCommand) executeErr(_ context.Context) error {
	input := make([]float32, c.n)
	for i := range input {
		input[i] = 1.0
	}

	dev := simt.GetDevice()
	log.Printf("device: %s, units=%d, n=%d", dev.Name, dev.NumUnits, c.n)

	for _, threads := range []int{32, 64, 128, 256, 512, 1024} {
		var best time.Duration
		var sum float32
		for i := 0; i < c.iters; i++ {
			s, _, elapsed, err := reduceHost(input, threads)
			if err != nil {
				return err
			}
			sum = s
			if best == 0 || elapsed < best {
				best = elapsed
			}
		}
		log.Printf("threads=%4d best=%v throughput=%.2f GB/s sum=%v",
			threads, best, float64(c.n*4)/best.Seconds()/1e9, sum)
	}
	return nil
}

// reduceHost stages a host array into device memory, runs the two-pass
// reduction, and returns the scalar plus the launch shape and wall time
// of the reduction itself.
func reduceHost(input []float32, threads int) (float32, int, time.Duration, error) {
	n := len(input)
	shape, err := simt.LaunchShape(n, threads)
	if err != nil {
		return 0, 0, 0, err
	}

	nOut := (n + threads - 1) / threads
	if nOut < 1 {
		nOut = 1
	}

	dIn, err := simt.Malloc(n * 4)
	if err != nil {
		return 0, 0, 0, err
	}
	defer simt.Free(dIn)
	dOut, err := simt.Malloc(nOut * 4)
	if err != nil {
		return 0, 0, 0, err
	}
	defer simt.Free(dOut)

	if err := simt.Memcpy(dIn, input, n*4, simt.MemcpyHostToDevice); err != nil {
		return 0, 0, 0, err
	}

	start := time.Now()
	if err := simt.Reduction(dOut, dIn, n, threads); err != nil {
		return 0, 0, 0, err
	}
	elapsed := time.Since(start)

	return dOut.Float32()[0], shape, elapsed, nil
}
