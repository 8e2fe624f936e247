// tunexctl is the operator CLI for the tunex admin API.
package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/seralab/tunex/internal/common"
)

var serverURL string

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "tunexctl",
		Short:         "Operate the tunex experiment server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := os.Getenv("TUNEX_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "admin API base URL")

	root.AddCommand(
		submitCmd(),
		statusCmd(),
		logsCmd(),
		cancelCmd(),
		jobsCmd(),
		orchestrateCmd(),
		reportCmd(),
		policyCmd(),
		routingCmd(),
		banditCmd(),
		metricsCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func client() *apiClient {
	return newAPIClient(serverURL)
}

func submitCmd() *cobra.Command {
	var kind, dataset string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an experiment job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().call("POST", "/experiment/run", map[string]string{
				"kind":         kind,
				"dataset_name": dataset,
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "job kind (fiqa-fast, canary, ab, sweep, bandit-round)")
	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset name")
	cmd.MarkFlagRequired("kind")
	cmd.MarkFlagRequired("dataset")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job_id>",
		Short: "Show job status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := common.ValidateJobID(args[0]); err != nil {
				return err
			}
			return client().call("GET", "/experiment/status/"+args[0], nil)
		},
	}
}

func logsCmd() *cobra.Command {
	var tail int
	cmd := &cobra.Command{
		Use:   "logs <job_id>",
		Short: "Tail job logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := common.ValidateJobID(args[0]); err != nil {
				return err
			}
			return client().call("GET", fmt.Sprintf("/experiment/logs/%s?tail=%d", args[0], tail), nil)
		},
	}
	cmd.Flags().IntVar(&tail, "tail", 100, "number of trailing lines")
	return cmd
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job_id>",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := common.ValidateJobID(args[0]); err != nil {
				return err
			}
			return client().call("POST", "/experiment/cancel/"+args[0], nil)
		},
	}
}

func jobsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().call("GET", fmt.Sprintf("/experiment/jobs?limit=%d", limit), nil)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum jobs to list")
	return cmd
}

func orchestrateCmd() *cobra.Command {
	var (
		kind, dataset string
		commit        bool
		windowSec     int
		rounds        int
		qps           float64
		concurrency   int
		seed          int64
	)
	cmd := &cobra.Command{
		Use:   "orchestrate",
		Short: "Plan (and optionally commit) an orchestrated run",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{
				"kind":         kind,
				"dataset_name": dataset,
			}
			if windowSec > 0 {
				body["window_sec"] = windowSec
			}
			if rounds > 0 {
				body["rounds"] = rounds
			}
			if qps > 0 {
				body["qps"] = qps
			}
			if concurrency > 0 {
				body["concurrency"] = concurrency
			}
			if seed > 0 {
				body["seed"] = seed
			}
			path := "/orchestrate/run"
			if commit {
				path += "?commit=true"
			}
			return client().call("POST", path, body)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "ab", "run kind")
	cmd.Flags().StringVar(&dataset, "dataset", "", "dataset name")
	cmd.Flags().BoolVar(&commit, "commit", false, "enqueue the run instead of dry-run")
	cmd.Flags().IntVar(&windowSec, "window", 0, "phase window seconds")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "A/B round count")
	cmd.Flags().Float64Var(&qps, "qps", 0, "target queries per second")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "generator concurrency")
	cmd.Flags().Int64Var(&seed, "seed", 0, "deterministic load seed")
	cmd.MarkFlagRequired("dataset")
	return cmd
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <run_id>",
		Short: "Fetch the report index for a finished run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := common.ValidateJobID(args[0]); err != nil {
				return err
			}
			return client().call("GET", "/orchestrate/report?run_id="+url.QueryEscape(args[0]), nil)
		},
	}
}

func policyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policy <aimd|pid>",
		Short: "Swap the active controller policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().call("POST", "/ops/control/policy", map[string]string{"policy": args[0]})
		},
	}
}

func routingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routing",
		Short: "Inspect or update router flags",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "state",
		Short: "Show router counters and recent decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().call("GET", "/ops/routing/state", nil)
		},
	})

	var (
		enabled bool
		mode    string
		manual  string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Update router flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().call("POST", "/ops/routing/flags", map[string]interface{}{
				"enabled":        enabled,
				"mode":           mode,
				"manual_backend": manual,
			})
		},
	}
	set.Flags().BoolVar(&enabled, "enabled", true, "enable routing")
	set.Flags().StringVar(&mode, "mode", "rules", "routing mode (rules or cost)")
	set.Flags().StringVar(&manual, "manual", "", "pinned backend override (dense or rich)")
	cmd.AddCommand(set)

	return cmd
}

func banditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bandit",
		Short: "Inspect bandit arm state",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "state",
		Short: "Show arm averages, counts, and drift audit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().call("GET", "/ops/bandit/state", nil)
		},
	})
	return cmd
}

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show the live 60-second metrics window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().call("GET", "/metrics/window60s", nil)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show server version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().call("GET", "/api/version", nil)
		},
	}
}
