package dataset

import (
	"fmt"

	"github.com/turtacn/CrossSiameseNet/internal/domain/molecule"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// Oversample rebuilds store as every label-0 record in store order followed
// by the label-1 records repeated floor(count0/count1) times, each repetition
// in store order.  Records labelled neither 0 nor 1 are dropped.  It returns
// the new store and the multiplier.
func Oversample(store *molecule.Store) (*molecule.Store, int, error) {
	part := store.Partition()
	if len(part.Indices1) == 0 {
		return nil, 0, errors.New(errors.ErrCodeMinorityClassMissing, "cannot oversample without label-1 records").
			WithDetail(fmt.Sprintf("count0=%d count1=0", len(part.Indices0)))
	}
	multiplier := len(part.Indices0) / len(part.Indices1)

	order := make([]int, 0, len(part.Indices0)+multiplier*len(part.Indices1))
	order = append(order, part.Indices0...)
	for k := 0; k < multiplier; k++ {
		order = append(order, part.Indices1...)
	}
	return store.Select(order), multiplier, nil
}
