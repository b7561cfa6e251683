package rollout

import (
	"fmt"

	"github.com/Noofbiz/acousticEval/datasets"
	"github.com/Noofbiz/acousticEval/present"
)

// Window selects the part of a finished rollout shown by one presentation
// kind:
//   - pressure: D frames from index (default N/2);
//   - error: D frames from index when given, otherwise the whole sequence;
//   - animation: index frames (default D) from N/2.
//
// Bounds are clamped to [0, N]. The returned slices are new, but the frames
// they hold are the result's own and must not be modified.
func Window(res *Result, kind present.Kind, index *int, depth int) (trueSeq, predSeq []*datasets.Field, err error) {
	if res == nil {
		return nil, nil, fmt.Errorf("nil rollout result")
	}
	n := res.Len()
	var lo, hi int
	switch kind {
	case present.KindPressure:
		lo = n / 2
		if index != nil {
			lo = *index
		}
		hi = lo + depth
	case present.KindError:
		lo, hi = 0, n
		if index != nil {
			lo = *index
			hi = lo + depth
		}
	case present.KindAnimation:
		count := depth
		if index != nil {
			count = *index
		}
		lo = n / 2
		hi = lo + count
	default:
		return nil, nil, fmt.Errorf("%w: %v", present.ErrInvalidKind, kind)
	}

	lo = clamp(lo, 0, n)
	hi = clamp(hi, lo, n)
	trueSeq = append([]*datasets.Field(nil), res.True[lo:hi]...)
	predSeq = append([]*datasets.Field(nil), res.Pred[lo:hi]...)
	return trueSeq, predSeq, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
