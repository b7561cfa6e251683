package rollout

import (
	"fmt"
	"io"
	"strings"

	"github.com/Noofbiz/acousticEval/metrics"
)

// WriteReport prints the averaged rollout metrics of one model.
func WriteReport(w io.Writer, name string, v metrics.Values) error {
	_, err := fmt.Fprintf(w, "%s\nAverage results for model '%s (iterative)':\n"+
		"  MSE:       %.6f\n"+
		"  L2 Loss:   %.6f\n"+
		"  H1 Loss:   %.6f\n"+
		"  Max Error: %.6f\n",
		strings.Repeat("-", 40), name, v.MSE, v.L2Loss, v.H1Loss, v.MaxError)
	return err
}
