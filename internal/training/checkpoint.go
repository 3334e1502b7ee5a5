package training

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CrossSiameseNet/internal/infrastructure/storage/minio"
	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// SaveTimeLayout formats Checkpoint.SaveDttm.
const SaveTimeLayout = "2006-01-02 15:04:05"

// Checkpoint is the per-epoch training record.  Loss histories are cumulative
// up to and including Epoch.
type Checkpoint struct {
	Epoch                     int       `json:"epoch"`
	ModelStateDict            StateDict `json:"model_state_dict"`
	Dataset                   string    `json:"dataset"`
	TrainLoss                 []float64 `json:"train_loss"`
	TestLoss                  []float64 `json:"test_loss"`
	UsedFixedTrainingTriplets bool      `json:"used_fixed_training_triplets"`
	SaveDttm                  string    `json:"save_dttm"`
	RunID                     string    `json:"run_id,omitempty"`
}

// CheckpointName returns "<dataset>_<epoch>".
func CheckpointName(dataset string, epoch int) string {
	return fmt.Sprintf("%s_%d", dataset, epoch)
}

// CheckpointStore persists checkpoints by name.
type CheckpointStore interface {
	// Save writes cp under name and returns where it landed.
	Save(ctx context.Context, name string, cp *Checkpoint) (string, error)
	Load(ctx context.Context, name string) (*Checkpoint, error)
	Kind() string
}

// FileCheckpointStore writes one JSON file per checkpoint into Dir.
type FileCheckpointStore struct {
	Dir string
}

func (s *FileCheckpointStore) Kind() string { return "file" }

func (s *FileCheckpointStore) Save(ctx context.Context, name string, cp *Checkpoint) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeCanceled, "save checkpoint")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", errors.Wrap(err, errors.CodeCheckpointFailed, "create checkpoints dir").WithDetail(s.Dir)
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeCheckpointFailed, "encode checkpoint").WithDetail(name)
	}
	path := filepath.Join(s.Dir, name)
	tmp, err := os.CreateTemp(s.Dir, "."+name+".*")
	if err != nil {
		return "", errors.Wrap(err, errors.CodeCheckpointFailed, "create checkpoint file").WithDetail(path)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, errors.CodeCheckpointFailed, "write checkpoint").WithDetail(path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, errors.CodeCheckpointFailed, "close checkpoint").WithDetail(path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrap(err, errors.CodeCheckpointFailed, "move checkpoint into place").WithDetail(path)
	}
	return path, nil
}

func (s *FileCheckpointStore) Load(_ context.Context, name string) (*Checkpoint, error) {
	return ReadCheckpointFile(filepath.Join(s.Dir, name))
}

// ReadCheckpointFile decodes a checkpoint written by FileCheckpointStore.
func ReadCheckpointFile(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(err, errors.ErrCodeCheckpointNotFound, "checkpoint not found").WithDetail(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCheckpointFailed, "read checkpoint").WithDetail(path)
	}
	return decodeCheckpoint(data, path)
}

func decodeCheckpoint(data []byte, where string) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, errors.Wrap(err, errors.CodeCheckpointFailed, "decode checkpoint").WithDetail(where)
	}
	return &cp, nil
}

// ObjectCheckpointStore writes checkpoints to an object store below Prefix.
type ObjectCheckpointStore struct {
	Store  minio.ObjectStore
	Prefix string
}

func (s *ObjectCheckpointStore) Kind() string { return "s3" }

func (s *ObjectCheckpointStore) key(name string) string {
	p := strings.Trim(s.Prefix, "/")
	if p == "" {
		return name
	}
	return p + "/" + name
}

func (s *ObjectCheckpointStore) Save(ctx context.Context, name string, cp *Checkpoint) (string, error) {
	data, err := json.Marshal(cp)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeCheckpointFailed, "encode checkpoint").WithDetail(name)
	}
	info, err := s.Store.Put(ctx, s.key(name), data, "application/json", map[string]string{
		"dataset": cp.Dataset,
		"epoch":   fmt.Sprint(cp.Epoch),
	})
	if err != nil {
		return "", errors.Wrap(err, errors.CodeCheckpointFailed, "upload checkpoint").WithDetail(name)
	}
	return info.Key, nil
}

func (s *ObjectCheckpointStore) Load(ctx context.Context, name string) (*Checkpoint, error) {
	data, err := s.Store.Get(ctx, s.key(name))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Wrap(err, errors.ErrCodeCheckpointNotFound, "checkpoint not found").WithDetail(name)
		}
		return nil, errors.Wrap(err, errors.CodeCheckpointFailed, "download checkpoint").WithDetail(name)
	}
	return decodeCheckpoint(data, name)
}

// MirroredCheckpointStore saves to Primary and then to every mirror.  Loads
// read Primary only.
type MirroredCheckpointStore struct {
	Primary CheckpointStore
	Mirrors []CheckpointStore
	Logger  logging.Logger
}

func (s *MirroredCheckpointStore) Kind() string {
	kinds := []string{s.Primary.Kind()}
	for _, m := range s.Mirrors {
		kinds = append(kinds, m.Kind())
	}
	return strings.Join(kinds, "+")
}

func (s *MirroredCheckpointStore) Save(ctx context.Context, name string, cp *Checkpoint) (string, error) {
	loc, err := s.Primary.Save(ctx, name, cp)
	if err != nil {
		return "", err
	}
	for _, m := range s.Mirrors {
		mloc, err := m.Save(ctx, name, cp)
		if err != nil {
			return "", err
		}
		logging.OrDefault(s.Logger).Debug("checkpoint mirrored",
			logging.String("store", m.Kind()), logging.String("location", mloc))
	}
	return loc, nil
}

func (s *MirroredCheckpointStore) Load(ctx context.Context, name string) (*Checkpoint, error) {
	return s.Primary.Load(ctx, name)
}
