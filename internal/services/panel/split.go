package panel

import (
	"fmt"
	"sort"

	"QuantShield/internal/domain/models"
)

// SortByWindowEnd sorts the panel ascending by WindowEnd, stably so rows
// sharing a window end keep their portfolio order. The classifier contract
// requires this ordering before any temporal split is taken.
func SortByWindowEnd(p models.Panel) {
	sort.SliceStable(p, func(i, j int) bool {
		return p[i].WindowEnd.Before(p[j].WindowEnd)
	})
}

// Fold is one expanding-window validation fold over a chronologically
// sorted panel: training rows are [0, TrainEnd), test rows are
// [TestStart, TestEnd), and every test row is strictly later than every
// training row.
type Fold struct {
	TrainEnd  int
	TestStart int
	TestEnd   int
}

// ForwardChainingFolds generates k expanding-window folds over n sorted
// rows. The test size is n/(k+1) and fold i trains on everything before
// its test block, so no fold ever trains on the future.
func ForwardChainingFolds(n, k int) ([]Fold, error) {
	if k < 1 {
		return nil, fmt.Errorf("fold count must be >= 1, got %d", k)
	}
	testSize := n / (k + 1)
	if testSize < 1 {
		return nil, fmt.Errorf("cannot split %d rows into %d folds", n, k)
	}

	folds := make([]Fold, 0, k)
	for i := 0; i < k; i++ {
		testStart := n - (k-i)*testSize
		folds = append(folds, Fold{
			TrainEnd:  testStart,
			TestStart: testStart,
			TestEnd:   testStart + testSize,
		})
	}
	return folds, nil
}
