package main

// Example command that loads a recorded simulation, prints its layout and
// converts a small batch of samples into gomlx tensors.
//
// Usage:
//   go run ./example -pattern "../assets/sim/*.csv" -depth 4

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Noofbiz/acousticEval/datasets"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	pattern := flag.String("pattern", "../assets/sim/*.csv", "glob pattern for simulation CSV files")
	depth := flag.Int("depth", 4, "temporal depth D of every sample")
	flag.Parse()

	if err := run(os.Stdout, *pattern, *depth); err != nil {
		klog.Fatalf("%v", err)
	}
}

func run(w io.Writer, pattern string, depth int) error {
	ds, err := datasets.NewSimulationDataset(pattern, depth)
	if err != nil {
		return fmt.Errorf("failed to load simulation: %w", err)
	}
	h, wd := ds.Grid()
	fmt.Fprintf(w, "Using simulation CSV pattern: %s\n", pattern)
	fmt.Fprintf(w, "Frames: %d, grid: %dx%d, depth: %d, samples: %d\n", ds.Frames(), h, wd, ds.Depth(), ds.Len())

	s, err := ds.Sample(0)
	if err != nil {
		return fmt.Errorf("failed to read sample 0: %w", err)
	}
	fmt.Fprintf(w, "Sample 0: x=%v y=%v v=%v a=%v\n", s.X.Dims, s.Y.Dims, s.V.Dims, s.A.Dims)

	n := min(8, ds.Len())
	indices := make([]int, n)
	for i := range n {
		indices[i] = i
	}
	inT, laT, err := ds.Tensors(indices)
	if err != nil {
		return fmt.Errorf("failed to build tensors: %w", err)
	}
	fmt.Fprintf(w, "Created tensors: input=%v target=%v\n", inT.Shape(), laT.Shape())
	return nil
}
