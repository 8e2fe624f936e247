package statefs

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

// BanditFile persists bandit state as a single JSON document.
// Writes hold an exclusive lock; loads return fresh snapshots.
type BanditFile struct {
	path string
	mu   sync.Mutex
}

// NewBanditFile returns a store at path; the file may not exist yet.
func NewBanditFile(path string) *BanditFile {
	return &BanditFile{path: path}
}

// Load reads the state document. An absent file yields empty state.
func (b *BanditFile) Load() (*models.BanditState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.NewBanditState(), nil
		}
		return nil, common.WrapError(common.KindFatal, err, "failed to read bandit state")
	}

	var state models.BanditState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, common.WrapError(common.KindFatal, err, "corrupt bandit state %s", b.path)
	}
	if state.Arms == nil {
		state.Arms = make(map[string]*models.ArmState)
	}
	if state.SchemaVersion == 0 {
		state.SchemaVersion = 1
	}
	return &state, nil
}

// Save writes the full state document atomically.
func (b *BanditFile) Save(state *models.BanditState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return common.WrapError(common.KindFatal, err, "failed to marshal bandit state")
	}
	return writeAtomic(b.path, append(data, '\n'))
}
