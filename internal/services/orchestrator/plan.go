package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

// Plan normalizes a request against configured defaults, resolves the
// dataset, and computes the idempotency fingerprint. It is pure: no
// I/O, no clock, no state.
func Plan(req models.OrchestrateRequest, defaults common.LoadConfig) (models.Plan, error) {
	if !models.KnownJobKind(req.Kind) {
		return models.Plan{}, common.ErrInvalidInput("unknown job kind %q", req.Kind)
	}
	if req.DatasetName == "" {
		return models.Plan{}, common.ErrInvalidInput("dataset_name is required")
	}
	if err := common.ValidateJobID(req.DatasetName); err != nil {
		return models.Plan{}, common.ErrInvalidInput("invalid dataset name %q", req.DatasetName)
	}

	entry, err := models.ResolveDataset(req.DatasetName)
	if err != nil {
		return models.Plan{}, err
	}

	norm := req
	if norm.WindowSec <= 0 {
		norm.WindowSec = defaults.WindowSec
	}
	if norm.Rounds <= 0 {
		norm.Rounds = defaults.Rounds
	}
	if norm.QPS <= 0 {
		norm.QPS = defaults.QPS
	}
	if norm.Concurrency <= 0 {
		norm.Concurrency = defaults.Concurrency
	}
	if norm.Seed == 0 {
		norm.Seed = 1
	}
	if len(norm.TopKMix) == 0 {
		norm.TopKMix = append([]int(nil), defaults.TopKMix...)
	}
	if norm.RecallSample <= 0 {
		norm.RecallSample = defaults.RecallSample
	}

	// Two measured phases per round, plus warmup.
	estBatches := norm.Rounds * 2
	estDuration := defaults.WarmupSec + estBatches*norm.WindowSec

	return models.Plan{
		Fingerprint:    fingerprintPlan(norm),
		Request:        norm,
		Collection:     entry.Collection,
		QrelsPath:      entry.QrelsPath,
		EstBatches:     estBatches,
		EstDurationSec: estDuration,
	}, nil
}

// fingerprintPlan hashes the normalized request. Key order is fixed by
// the struct's JSON field order, so the hash is stable.
func fingerprintPlan(norm models.OrchestrateRequest) string {
	raw, err := json.Marshal(norm)
	if err != nil {
		// Marshalling a plain struct cannot fail at runtime.
		raw = []byte(fmt.Sprintf("%+v", norm))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
