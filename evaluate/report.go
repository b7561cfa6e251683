package evaluate

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Noofbiz/acousticEval/metrics"
)

// WriteReport prints one block per model, in name order, with every metric
// to 6 decimal places.
func WriteReport(w io.Writer, results map[string]metrics.Values) error {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := results[name]
		_, err := fmt.Fprintf(w, "%s\nAverage results for model '%s':\n"+
			"  MSE:         %.6f\n"+
			"  L2 Loss:     %.6f\n"+
			"  H1 Loss:     %.6f\n"+
			"  Relative L2: %.6f\n"+
			"  Max Error:   %.6f\n",
			strings.Repeat("-", 40), name, m.MSE, m.L2Loss, m.H1Loss, m.RelL2, m.MaxError)
		if err != nil {
			return err
		}
	}
	return nil
}
