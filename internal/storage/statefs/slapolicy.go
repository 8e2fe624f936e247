package statefs

import (
	"os"
	"sync"

	yaml "gopkg.in/yaml.v3"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

// PolicyFile persists the SLA policy as sla_policy.yaml.
type PolicyFile struct {
	path     string
	defaults models.SLAPolicy
	mu       sync.Mutex
}

// NewPolicyFile returns a store at path. defaults are served when the
// file does not exist yet.
func NewPolicyFile(path string, defaults models.SLAPolicy) *PolicyFile {
	if defaults.SchemaVersion == 0 {
		defaults.SchemaVersion = 1
	}
	return &PolicyFile{path: path, defaults: defaults}
}

// Load reads the policy document, falling back to defaults when absent.
func (p *PolicyFile) Load() (models.SLAPolicy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return p.defaults, nil
		}
		return models.SLAPolicy{}, common.WrapError(common.KindFatal, err, "failed to read SLA policy")
	}

	var policy models.SLAPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return models.SLAPolicy{}, common.WrapError(common.KindFatal, err, "corrupt SLA policy %s", p.path)
	}
	if policy.SchemaVersion == 0 {
		policy.SchemaVersion = 1
	}
	return policy, nil
}

// Save writes the policy document atomically.
func (p *PolicyFile) Save(policy models.SLAPolicy) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if policy.SchemaVersion == 0 {
		policy.SchemaVersion = 1
	}
	data, err := yaml.Marshal(policy)
	if err != nil {
		return common.WrapError(common.KindFatal, err, "failed to marshal SLA policy")
	}
	return writeAtomic(p.path, data)
}
