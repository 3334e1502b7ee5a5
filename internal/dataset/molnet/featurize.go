package molnet

import (
	"context"

	"github.com/turtacn/CrossSiameseNet/internal/domain/molecule"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// Featurize turns rows into a Store.  Rows whose SMILES cannot be featurized
// are dropped; the number dropped is returned.
func Featurize(ctx context.Context, rows []Row, f molecule.Featurizer, log logging.Logger) (*molecule.Store, int, error) {
	log = logging.OrDefault(log)
	recs := make([]molecule.Record, 0, len(rows))
	dropped := 0
	for i, r := range rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, errors.Wrap(err, errors.ErrCodeCanceled, "featurize dataset")
			}
		}
		fp, err := f.Featurize(r.SMILES)
		if err != nil {
			dropped++
			log.Debug("molecule dropped", logging.Int("row", i), logging.String("smiles", r.SMILES), logging.Err(err))
			continue
		}
		recs = append(recs, molecule.Record{Features: fp, Label: r.Labels, ID: r.SMILES})
	}
	if dropped > 0 {
		log.Warn("failed to featurize some molecules",
			logging.Int("dropped", dropped), logging.Int("kept", len(recs)))
	}
	store, err := molecule.NewStoreFromRecords(recs)
	if err != nil {
		return nil, 0, err
	}
	return store, dropped, nil
}
