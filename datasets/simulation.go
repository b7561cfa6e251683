package datasets

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"k8s.io/klog/v2"
)

// SimulationColumns are the CSV columns a simulation file must provide:
// time step, grid row, grid column, pressure, x/y velocity and alpha.
var SimulationColumns = []string{"t", "i", "j", "p", "vx", "vy", "alpha"}

// SimulationDataset is a Source over one recorded acoustic simulation of T
// frames on an H×W grid. Sample i holds the state at frame i as input and
// frames i..i+D-1 as ground truth, so N = T - D + 1 and the last target frame
// of sample i is the first target frame of sample i+D-1.
type SimulationDataset struct {
	// Pattern used to find CSV files (e.g., "assets/sim/*.csv")
	Pattern string

	csvPaths []string
	depth    int

	frames, height, width int

	// pressure and velocity are [T, H, W] and [T, 2, H, W]; alpha is [H, W].
	pressure *Field
	velocity *Field
	alpha    *Field
}

// NewSimulationDataset loads all CSV files matching pattern (or found in the
// directory pattern) into one simulation with temporal depth depth.
func NewSimulationDataset(pattern string, depth int) (*SimulationDataset, error) {
	// a directory stands for every CSV file inside it
	if info, err := os.Stat(pattern); err == nil && info.IsDir() {
		if pattern, err = FindCSVInDir(pattern); err != nil {
			return nil, err
		}
	}
	csvPaths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}
	if len(csvPaths) == 0 {
		return nil, fmt.Errorf("no CSV files found matching pattern: %s", pattern)
	}
	if depth < 2 {
		return nil, fmt.Errorf("%w: depth %d < 2", ErrInvalidSource, depth)
	}

	ds := &SimulationDataset{
		Pattern:  pattern,
		csvPaths: csvPaths,
		depth:    depth,
	}

	// First pass finds the grid bounds, second pass fills the fields.
	if err := ds.scanBounds(); err != nil {
		return nil, err
	}
	if err := ds.load(); err != nil {
		return nil, err
	}
	if err := Validate(ds); err != nil {
		return nil, fmt.Errorf("simulation has %d frames for depth %d: %w", ds.frames, depth, err)
	}

	klog.V(1).Infof("Loaded simulation %s: %s frames of %dx%d, %s samples",
		pattern, humanize.Comma(int64(ds.frames)), ds.height, ds.width, humanize.Comma(int64(ds.Len())))
	return ds, nil
}

// columns returns the column indices of path, verifying required columns.
func columns(path string) (map[string]int, error) {
	colIndex, err := readHeader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV %s: %w", path, err)
	}
	for _, col := range SimulationColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("required column %q not found in %s", col, path)
		}
	}
	return colIndex, nil
}

func (d *SimulationDataset) scanBounds() error {
	rows := 0
	for _, path := range d.csvPaths {
		colIndex, err := columns(path)
		if err != nil {
			return err
		}
		err = eachCSVRow(path, func(_ int, record []string) error {
			t, i, j, err := cellIndex(record, colIndex)
			if err != nil {
				return err
			}
			d.frames = max(d.frames, t+1)
			d.height = max(d.height, i+1)
			d.width = max(d.width, j+1)
			rows++
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", path, err)
		}
	}
	if d.frames == 0 {
		return fmt.Errorf("no rows found matching pattern: %s", d.Pattern)
	}
	// every cell needs its own row, so indices past the row count are bad data
	if !fitsRows(rows, d.frames, d.height, d.width) {
		return fmt.Errorf("indices span %dx%dx%d cells but only %d rows were read", d.frames, d.height, d.width, rows)
	}
	return nil
}

// fitsRows reports whether the product of dims is at most rows.
func fitsRows(rows int, dims ...int) bool {
	n := 1
	for _, d := range dims {
		if d > rows/n {
			return false
		}
		n *= d
	}
	return true
}

func (d *SimulationDataset) load() error {
	T, H, W := d.frames, d.height, d.width
	d.pressure = NewField(T, H, W)
	d.velocity = NewField(T, 2, H, W)
	d.alpha = NewField(H, W)
	filled := make([]bool, T*H*W)

	for _, path := range d.csvPaths {
		colIndex, err := columns(path)
		if err != nil {
			return err
		}
		err = eachCSVRow(path, func(_ int, record []string) error {
			t, i, j, err := cellIndex(record, colIndex)
			if err != nil {
				return err
			}
			vals := make([]float32, 4)
			for k, col := range []string{"p", "vx", "vy", "alpha"} {
				v, err := parseFloat32(record[colIndex[col]])
				if err != nil {
					return fmt.Errorf("failed to parse %s: %w", col, err)
				}
				vals[k] = v
			}
			cell := i*W + j
			d.pressure.Data[t*H*W+cell] = vals[0]
			d.velocity.Data[(t*2)*H*W+cell] = vals[1]
			d.velocity.Data[(t*2+1)*H*W+cell] = vals[2]
			// alpha is static; frame 0 defines it
			if t == 0 {
				d.alpha.Data[cell] = vals[3]
			}
			filled[t*H*W+cell] = true
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	for idx, ok := range filled {
		if !ok {
			t, rem := idx/(H*W), idx%(H*W)
			return fmt.Errorf("missing cell t=%d i=%d j=%d", t, rem/W, rem%W)
		}
	}
	return nil
}

func cellIndex(record []string, colIndex map[string]int) (t, i, j int, err error) {
	if t, err = parseIndex(record[colIndex["t"]]); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to parse t: %w", err)
	}
	if i, err = parseIndex(record[colIndex["i"]]); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to parse i: %w", err)
	}
	if j, err = parseIndex(record[colIndex["j"]]); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to parse j: %w", err)
	}
	return t, i, j, nil
}

// Len returns the number of samples, T - D + 1.
func (d *SimulationDataset) Len() int {
	return max(d.frames-d.depth+1, 0)
}

// Depth returns the temporal depth D.
func (d *SimulationDataset) Depth() int { return d.depth }

// Frames returns the number of simulation frames T.
func (d *SimulationDataset) Frames() int { return d.frames }

// Grid returns the spatial grid size.
func (d *SimulationDataset) Grid() (height, width int) { return d.height, d.width }

// Sample builds sample idx. Every call returns freshly allocated fields.
func (d *SimulationDataset) Sample(idx int) (Sample, error) {
	if idx < 0 || idx >= d.Len() {
		return Sample{}, fmt.Errorf("index %d out of range [0, %d)", idx, d.Len())
	}
	H, W := d.height, d.width
	plane := H * W

	x := NewField(4, H, W)
	copy(x.Data[0:plane], d.pressure.Data[idx*plane:(idx+1)*plane])
	copy(x.Data[plane:3*plane], d.velocity.Data[idx*2*plane:(idx+1)*2*plane])
	copy(x.Data[3*plane:], d.alpha.Data)

	y := NewField(d.depth, H, W)
	copy(y.Data, d.pressure.Data[idx*plane:(idx+d.depth)*plane])

	v := NewField(2, H, W)
	copy(v.Data, d.velocity.Data[idx*2*plane:(idx+1)*2*plane])

	return Sample{X: x, Y: y, V: v, A: d.alpha.Clone()}, nil
}

// Batch stacks the inputs and targets of the given samples into
// [B, C, H, W] and [B, D, H, W] fields.
func (d *SimulationDataset) Batch(indices []int) (inputs, targets *Field, err error) {
	if len(indices) == 0 {
		return nil, nil, fmt.Errorf("empty batch")
	}
	xs := make([]*Field, len(indices))
	ys := make([]*Field, len(indices))
	for b, idx := range indices {
		s, err := d.Sample(idx)
		if err != nil {
			return nil, nil, err
		}
		xs[b], ys[b] = s.X, s.Y
	}
	if inputs, err = Stack(xs); err != nil {
		return nil, nil, err
	}
	if targets, err = Stack(ys); err != nil {
		return nil, nil, err
	}
	return inputs, targets, nil
}

// Tensors reads a batch of samples and returns them as gomlx tensors.
func (d *SimulationDataset) Tensors(indices []int) (inputs, targets *tensors.Tensor, err error) {
	x, y, err := d.Batch(indices)
	if err != nil {
		return nil, nil, err
	}
	return x.ToTensor(), y.ToTensor(), nil
}

// Name returns the name of the dataset.
func (d *SimulationDataset) Name() string {
	return "SimulationDataset"
}
