package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/models"
)

// winnersDocument is the versioned winners.json schema.
type winnersDocument struct {
	SchemaVersion int                `json:"schema_version"`
	RunID         string             `json:"run_id"`
	GeneratedAt   string             `json:"generated_at"`
	Winners       models.Winners     `json:"winners"`
	Verdict       models.SLAVerdict  `json:"verdict"`
	Candidates    []models.Candidate `json:"candidates"`
}

// writeReport dumps the run artifacts under the reports tree and
// returns the role -> path index. Charts are optional: a render
// failure is logged, not fatal.
func (o *Orchestrator) writeReport(
	runID string,
	plan models.Plan,
	aPhases, bPhases []models.PhaseStats,
	candidates []models.Candidate,
	winners models.Winners,
	verdict models.SLAVerdict,
	window models.WindowSnapshot,
) (map[string]string, error) {
	dir := filepath.Join(o.config.Storage.RunsDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, common.WrapError(common.KindFatal, err, "create report dir %s", dir)
	}
	artifacts := map[string]string{}

	doc := winnersDocument{
		SchemaVersion: 1,
		RunID:         runID,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		Winners:       winners,
		Verdict:       verdict,
		Candidates:    candidates,
	}
	winnersJSON := filepath.Join(dir, "winners.json")
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return artifacts, common.WrapError(common.KindFatal, err, "encode winners")
	}
	if err := os.WriteFile(winnersJSON, raw, 0o644); err != nil {
		return artifacts, common.WrapError(common.KindFatal, err, "write winners.json")
	}
	artifacts["winners.json"] = winnersJSON

	winnersMD := filepath.Join(dir, "winners.md")
	if err := os.WriteFile(winnersMD, []byte(renderWinnersMarkdown(runID, winners, verdict, candidates)), 0o644); err != nil {
		return artifacts, common.WrapError(common.KindFatal, err, "write winners.md")
	}
	artifacts["winners.md"] = winnersMD

	summaryMD := filepath.Join(dir, "RUN_SUMMARY.md")
	if err := os.WriteFile(summaryMD, []byte(renderRunSummary(runID, plan, aPhases, bPhases, verdict, window)), 0o644); err != nil {
		return artifacts, common.WrapError(common.KindFatal, err, "write RUN_SUMMARY.md")
	}
	artifacts["summary"] = summaryMD

	if png, err := renderParetoChart(candidates); err != nil {
		o.logger.Warn().Err(err).Str("run_id", runID).Msg("Pareto chart skipped")
	} else {
		path := filepath.Join(dir, "pareto.png")
		if err := os.WriteFile(path, png, 0o644); err == nil {
			artifacts["pareto.png"] = path
		}
	}

	if png, err := renderABDiffChart(aPhases, bPhases); err != nil {
		o.logger.Warn().Err(err).Str("run_id", runID).Msg("A/B diff chart skipped")
	} else {
		path := filepath.Join(dir, "ab_diff.png")
		if err := os.WriteFile(path, png, 0o644); err == nil {
			artifacts["ab_diff.png"] = path
		}
	}

	return artifacts, nil
}

func renderWinnersMarkdown(runID string, winners models.Winners, verdict models.SLAVerdict, candidates []models.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Winners: %s\n\n", runID)
	fmt.Fprintf(&b, "**Verdict**: %s (quality=%s sla=%s cost=%s)\n\n", verdict.Overall, verdict.Quality, verdict.SLA, verdict.Cost)
	if verdict.Reason != "" {
		fmt.Fprintf(&b, "> %s\n\n", verdict.Reason)
	}

	b.WriteString("| Category | Winner | recall@10 | p95 (ms) | cost/query |\n")
	b.WriteString("|---|---|---|---|---|\n")
	writeWinnerRow(&b, "balanced", winners.Balanced)
	writeWinnerRow(&b, "quality", winners.Quality)
	writeWinnerRow(&b, "latency", winners.Latency)

	b.WriteString("\n## Candidates\n\n")
	b.WriteString("| Name | recall@10 | p95 (ms) | QPS | cost/query |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "| %s | %.4f | %.1f | %.1f | %.2e |\n", c.Name, c.RecallAt10, c.P95MS, c.QPS, c.Cost)
	}
	return b.String()
}

func writeWinnerRow(b *strings.Builder, category string, c *models.Candidate) {
	if c == nil {
		fmt.Fprintf(b, "| %s | (none) | | | |\n", category)
		return
	}
	fmt.Fprintf(b, "| %s | %s | %.4f | %.1f | %.2e |\n", category, c.Name, c.RecallAt10, c.P95MS, c.Cost)
}

func renderRunSummary(runID string, plan models.Plan, aPhases, bPhases []models.PhaseStats, verdict models.SLAVerdict, window models.WindowSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run Summary: %s\n\n", runID)
	fmt.Fprintf(&b, "- Kind: %s\n", plan.Request.Kind)
	fmt.Fprintf(&b, "- Dataset: %s (collection %s)\n", plan.Request.DatasetName, plan.Collection)
	fmt.Fprintf(&b, "- Rounds: %d, window: %ds, QPS: %.1f, concurrency: %d\n", plan.Request.Rounds, plan.Request.WindowSec, plan.Request.QPS, plan.Request.Concurrency)
	fmt.Fprintf(&b, "- Seed: %d, topk mix: %v\n", plan.Request.Seed, plan.Request.TopKMix)
	fmt.Fprintf(&b, "- Verdict: **%s**\n\n", verdict.Overall)

	b.WriteString("## Phases\n\n")
	b.WriteString("| Phase | Round | Requests | Errors | p95 (ms) | recall | QPS |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for i := range aPhases {
		p := aPhases[i]
		fmt.Fprintf(&b, "| A | %d | %d | %d | %.1f | %.4f | %.1f |\n", i, p.Requests, p.Errors, p.P95MS, p.RecallMean, p.QPS)
		if i < len(bPhases) {
			p = bPhases[i]
			fmt.Fprintf(&b, "| B | %d | %d | %d | %.1f | %.4f | %.1f |\n", i, p.Requests, p.Errors, p.P95MS, p.RecallMean, p.QPS)
		}
	}

	b.WriteString("\n## Final window\n\n")
	fmt.Fprintf(&b, "- Samples: %d, TPS: %.2f, dropped: %.3f\n", window.Samples, window.TPS, window.DroppedRatio)
	if window.P95MS != nil {
		fmt.Fprintf(&b, "- p95: %.1f ms\n", *window.P95MS)
	}
	if window.RecallMean != nil {
		fmt.Fprintf(&b, "- recall mean: %.4f\n", *window.RecallMean)
	}
	return b.String()
}
