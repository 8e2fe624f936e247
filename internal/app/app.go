// Package app wires configuration, storage, clients, and services into
// the shared core used by cmd/tunex-server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/seralab/tunex/internal/clients/searchbackend"
	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/interfaces"
	"github.com/seralab/tunex/internal/models"
	"github.com/seralab/tunex/internal/services/bandit"
	"github.com/seralab/tunex/internal/services/control"
	"github.com/seralab/tunex/internal/services/jobmanager"
	"github.com/seralab/tunex/internal/services/orchestrator"
	"github.com/seralab/tunex/internal/services/router"
	"github.com/seralab/tunex/internal/services/sla"
	"github.com/seralab/tunex/internal/storage/eventlog"
	"github.com/seralab/tunex/internal/storage/jobstore"
	"github.com/seralab/tunex/internal/storage/statefs"
)

// App holds all initialized services, clients, and storage.
type App struct {
	Config       *common.Config
	Logger       *common.Logger
	JobStore     interfaces.JobStore
	Events       interfaces.EventLog
	Client       interfaces.SearchClient
	Jobs         *jobmanager.Manager
	Orchestrator *orchestrator.Orchestrator
	StartupTime  time.Time

	started bool
}

// NewApp initializes storage, clients, and services from configuration.
// configPath may be empty, in which case TUNEX_CONFIG and then the
// default config/tunex.toml are consulted.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	if configPath == "" {
		configPath = os.Getenv("TUNEX_CONFIG")
	}
	if configPath == "" {
		configPath = "config/tunex.toml"
	}

	config, err := common.LoadConfigFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)

	for _, dir := range []string{config.Storage.DataPath, config.Storage.RunsDir, filepath.Join(config.Storage.DataPath, "logs")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir %s: %w", dir, err)
		}
	}

	store, err := jobstore.Open(logger, filepath.Join(config.Storage.DataPath, "jobs.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to open job store: %w", err)
	}
	events, err := eventlog.New(logger, filepath.Join(config.Storage.DataPath, "events"))
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	client := newSearchClient(config, logger)

	rtr := router.New(config.Router, config.Backends.SimSeed)
	holder, err := control.NewHolder(config.Control)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize controller: %w", err)
	}

	banditStore := statefs.NewBanditFile(config.Bandit.StatePath)
	selector := bandit.New(banditStore, config.Bandit, logger,
		bandit.WithTargetP95(config.Control.TargetP95MS))

	policyStore := statefs.NewPolicyFile(config.SLA.PolicyPath, models.SLAPolicy{
		SchemaVersion: 1,
		RecallAt10Min: config.SLA.RecallAt10Min,
		P95MSMax:      config.SLA.P95MSMax,
		CostMax:       config.SLA.CostMax,
	})

	a := &App{
		Config:      config,
		Logger:      logger,
		JobStore:    store,
		Events:      events,
		Client:      client,
		StartupTime: startupStart,
	}

	// The factory closes over the orchestrator so queued runs execute
	// in-process; jobs carrying an argv run as a subprocess instead.
	var orch *orchestrator.Orchestrator
	factory := func(job *models.Job) (interfaces.Worker, error) {
		if len(job.Cmd) > 0 {
			logPath := filepath.Join(config.Storage.DataPath, "logs", job.JobID+".log")
			if job.Artifacts == nil {
				job.Artifacts = map[string]string{}
			}
			job.Artifacts["log"] = logPath
			return jobmanager.NewSubprocessWorker(job.Cmd, logPath), nil
		}
		j := job.Clone()
		return jobmanager.NewFuncWorker(func(ctx context.Context) error {
			return orch.Execute(ctx, j)
		}), nil
	}

	a.Jobs = jobmanager.NewManager(store, events, factory, logger, config.Jobs)
	orch = orchestrator.New(a.Jobs, events, client, rtr, holder,
		selector, sla.NewEvaluator(logger), sla.NewAutoTuner(policyStore, logger), logger, config)
	a.Orchestrator = orch

	logger.Info().
		Str("environment", config.Environment).
		Str("backends_mode", config.Backends.Mode).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// newSearchClient selects the backend client per [backends].mode.
func newSearchClient(config *common.Config, logger *common.Logger) interfaces.SearchClient {
	if config.Backends.Mode == "http" {
		return searchbackend.NewClient(config.Backends.DenseURL, config.Backends.RichURL,
			searchbackend.WithLogger(logger),
			searchbackend.WithRateLimit(config.Backends.RateLimit),
			searchbackend.WithTimeout(config.Backends.GetTimeout()),
			searchbackend.WithRetries(config.Backends.Retries),
		)
	}
	return searchbackend.NewSimulator(config.Backends, logger)
}

// Start launches the job manager loop: boot reconciliation, queued-job
// recovery, then the single worker goroutine.
func (a *App) Start() error {
	if err := a.Jobs.Start(); err != nil {
		return err
	}
	a.started = true
	return nil
}

// Ready reports whether the job manager loop is accepting work.
func (a *App) Ready() bool {
	return a.started
}

// Close stops the job manager and releases resources. Safe to call
// more than once.
func (a *App) Close() {
	if a.started {
		a.Jobs.Stop()
		a.started = false
	}
}
