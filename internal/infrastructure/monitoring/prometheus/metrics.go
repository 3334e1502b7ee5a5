package prometheus

var (
	EpochDurationBuckets = []float64{.1, .5, 1, 5, 10, 30, 60, 300, 900, 3600}
	DatasetLoadBuckets   = []float64{.01, .1, .5, 1, 5, 10, 30, 60, 300}
	BatchLossBuckets     = []float64{0, .01, .05, .1, .25, .5, 1, 2, 5}
)

// TrainingMetrics holds every metric the training pipeline emits.
type TrainingMetrics struct {
	EpochLoss         GaugeVec     // dataset, phase
	CurrentEpoch      GaugeVec     // dataset
	BatchesTotal      CounterVec   // dataset, phase
	BatchLoss         HistogramVec // dataset, phase
	EpochDuration     HistogramVec // dataset
	CheckpointsTotal  CounterVec   // dataset, store
	DatasetLoad       HistogramVec // dataset, source
	DatasetMolecules  GaugeVec     // dataset, split
	InvalidMolecules  CounterVec   // dataset
	CacheLookupsTotal CounterVec   // result
	EventsPublished   CounterVec   // event_type, result
}

// NewTrainingMetrics registers the training metrics on collector.
func NewTrainingMetrics(collector MetricsCollector) *TrainingMetrics {
	return &TrainingMetrics{
		EpochLoss:         collector.RegisterGauge("epoch_loss", "Mean loss of the last completed epoch", "dataset", "phase"),
		CurrentEpoch:      collector.RegisterGauge("current_epoch", "Last completed epoch", "dataset"),
		BatchesTotal:      collector.RegisterCounter("batches_total", "Batches processed", "dataset", "phase"),
		BatchLoss:         collector.RegisterHistogram("batch_loss", "Per-batch loss", BatchLossBuckets, "dataset", "phase"),
		EpochDuration:     collector.RegisterHistogram("epoch_duration_seconds", "Wall time of one train+test epoch", EpochDurationBuckets, "dataset"),
		CheckpointsTotal:  collector.RegisterCounter("checkpoints_total", "Checkpoints written", "dataset", "store"),
		DatasetLoad:       collector.RegisterHistogram("dataset_load_duration_seconds", "Time to fetch, parse and featurize a dataset", DatasetLoadBuckets, "dataset", "source"),
		DatasetMolecules:  collector.RegisterGauge("dataset_molecules", "Molecules per split after featurization", "dataset", "split"),
		InvalidMolecules:  collector.RegisterCounter("invalid_molecules_total", "SMILES strings that failed featurization", "dataset"),
		CacheLookupsTotal: collector.RegisterCounter("dataset_cache_lookups_total", "Raw dataset cache lookups", "result"),
		EventsPublished:   collector.RegisterCounter("events_published_total", "Training events published", "event_type", "result"),
	}
}

// NewNopTrainingMetrics returns metrics that record nothing.
func NewNopTrainingMetrics() *TrainingMetrics {
	return &TrainingMetrics{
		EpochLoss:         noopGaugeVec{},
		CurrentEpoch:      noopGaugeVec{},
		BatchesTotal:      noopCounterVec{},
		BatchLoss:         noopHistogramVec{},
		EpochDuration:     noopHistogramVec{},
		CheckpointsTotal:  noopCounterVec{},
		DatasetLoad:       noopHistogramVec{},
		DatasetMolecules:  noopGaugeVec{},
		InvalidMolecules:  noopCounterVec{},
		CacheLookupsTotal: noopCounterVec{},
		EventsPublished:   noopCounterVec{},
	}
}

// OrNop returns m, or a no-op set when m is nil.
func OrNop(m *TrainingMetrics) *TrainingMetrics {
	if m == nil {
		return NewNopTrainingMetrics()
	}
	return m
}
