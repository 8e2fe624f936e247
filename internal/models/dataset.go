package models

import (
	"sort"

	"github.com/seralab/tunex/internal/common"
)

// DatasetEntry resolves a dataset name to its search collection and
// relevance judgments file.
type DatasetEntry struct {
	Collection string
	QrelsPath  string
}

// Built-in dataset registry. Qrels paths are relative to the data
// directory.
var datasetRegistry = map[string]DatasetEntry{
	"fiqa":    {Collection: "fiqa_chunks", QrelsPath: "qrels/fiqa.tsv"},
	"quora":   {Collection: "quora_pairs", QrelsPath: "qrels/quora.tsv"},
	"scifact": {Collection: "scifact_chunks", QrelsPath: "qrels/scifact.tsv"},
}

// ResolveDataset looks up a dataset in the registry.
func ResolveDataset(name string) (DatasetEntry, error) {
	entry, ok := datasetRegistry[name]
	if !ok {
		return DatasetEntry{}, common.ErrInvalidInput("unknown dataset %q (known: %v)", name, KnownDatasets())
	}
	return entry, nil
}

// KnownDatasets lists the registry keys in stable order.
func KnownDatasets() []string {
	names := make([]string, 0, len(datasetRegistry))
	for name := range datasetRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
