package forecast

import (
	"fmt"
	"math"

	domsvc "stockcast/internal/domain/service"
)

// Leaf markers used by the exported tree arrays.
const (
	leafChild        = -1
	undefinedFeature = -2
)

// forestSpec is the on-disk model layout: every decision tree flattened
// into parallel node arrays, plus forest-level metadata.
type forestSpec struct {
	NFeatures          int        `json:"n_features"`
	Classes            []int      `json:"classes"`
	FeatureImportances []float64  `json:"feature_importances"`
	Trees              []treeSpec `json:"trees"`
}

type treeSpec struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Forest is a pre-trained random-forest classifier evaluated natively.
// The probability of the up class is the mean of the per-tree leaf class
// distributions. Immutable after construction.
type Forest struct {
	trees       []treeSpec
	importances []float64
	nFeatures   int
	upIndex     int
}

// newForest validates the exported arrays once so evaluation can walk
// them without bounds checks failing mid-request.
func newForest(spec forestSpec) (*Forest, error) {
	if spec.NFeatures <= 0 {
		return nil, fmt.Errorf("model: n_features must be positive, got %d", spec.NFeatures)
	}
	if len(spec.Trees) == 0 {
		return nil, fmt.Errorf("model: no trees")
	}

	upIndex := -1
	for i, c := range spec.Classes {
		if c == 1 {
			upIndex = i
		}
	}
	if upIndex < 0 {
		return nil, fmt.Errorf("model: classes %v do not include the up class", spec.Classes)
	}

	for ti, tr := range spec.Trees {
		n := len(tr.ChildrenLeft)
		if n == 0 {
			return nil, fmt.Errorf("model: tree %d is empty", ti)
		}
		if len(tr.ChildrenRight) != n || len(tr.Feature) != n || len(tr.Threshold) != n || len(tr.Value) != n {
			return nil, fmt.Errorf("model: tree %d node arrays disagree on length", ti)
		}
		for ni := 0; ni < n; ni++ {
			left, right := tr.ChildrenLeft[ni], tr.ChildrenRight[ni]
			if (left == leafChild) != (right == leafChild) {
				return nil, fmt.Errorf("model: tree %d node %d is half leaf", ti, ni)
			}
			if left == leafChild {
				if len(tr.Value[ni]) != len(spec.Classes) {
					return nil, fmt.Errorf("model: tree %d leaf %d has %d class counts, want %d", ti, ni, len(tr.Value[ni]), len(spec.Classes))
				}
				continue
			}
			if left <= ni || left >= n || right <= ni || right >= n {
				return nil, fmt.Errorf("model: tree %d node %d has out-of-range children", ti, ni)
			}
			if f := tr.Feature[ni]; f < 0 || f >= spec.NFeatures {
				return nil, fmt.Errorf("model: tree %d node %d splits on feature %d of %d", ti, ni, f, spec.NFeatures)
			}
		}
	}

	return &Forest{
		trees:       spec.Trees,
		importances: spec.FeatureImportances,
		nFeatures:   spec.NFeatures,
		upIndex:     upIndex,
	}, nil
}

// ProbUp returns the forest's probability of the up class for one aligned
// feature vector. The vector must be complete; a NaN or infinite value is
// rejected rather than silently routed down one side of a split.
func (f *Forest) ProbUp(features []float64) (float64, error) {
	if len(features) != f.nFeatures {
		return 0, fmt.Errorf("model: got %d features, want %d", len(features), f.nFeatures)
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("model: feature %d is not finite", i)
		}
	}

	sum := 0.0
	for i := range f.trees {
		p, err := f.trees[i].probAt(features, f.upIndex)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += p
	}
	return sum / float64(len(f.trees)), nil
}

// Importances returns the per-column importance weights in schema order.
func (f *Forest) Importances() []float64 { return f.importances }

// NumFeatures returns the width of the feature vector the forest expects.
func (f *Forest) NumFeatures() int { return f.nFeatures }

// probAt walks one tree to its leaf and returns the normalized share of
// the class at classIndex in that leaf's sample counts.
func (t *treeSpec) probAt(features []float64, classIndex int) (float64, error) {
	node := 0
	for t.ChildrenLeft[node] != leafChild {
		if features[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}

	counts := t.Value[node]
	total := 0.0
	for _, c := range counts {
		total += c
	}
	if total <= 0 {
		return 0, fmt.Errorf("leaf %d has no samples", node)
	}
	return counts[classIndex] / total, nil
}

var _ domsvc.Classifier = (*Forest)(nil)
