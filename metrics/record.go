package metrics

// Record accumulates running metric sums over a sequence of samples.
type Record struct {
	sum   Values
	count int
}

// Add accumulates one sample's metrics.
func (r *Record) Add(v Values) {
	r.sum.MSE += v.MSE
	r.sum.L2Loss += v.L2Loss
	r.sum.H1Loss += v.H1Loss
	r.sum.RelL2 += v.RelL2
	r.sum.MaxError += v.MaxError
	r.count++
}

// Count returns the number of accumulated samples.
func (r *Record) Count() int { return r.count }

// Sum returns the raw running sums.
func (r *Record) Sum() Values { return r.sum }

// Mean divides every sum by n. Callers pass the source length N; it equals
// Count when every sample was visited.
func (r *Record) Mean(n int) Values {
	if n <= 0 {
		return Values{}
	}
	d := float64(n)
	return Values{
		MSE:      r.sum.MSE / d,
		L2Loss:   r.sum.L2Loss / d,
		H1Loss:   r.sum.H1Loss / d,
		RelL2:    r.sum.RelL2 / d,
		MaxError: r.sum.MaxError / d,
	}
}
