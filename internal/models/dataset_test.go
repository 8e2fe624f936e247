package models

import (
	"testing"

	"github.com/seralab/tunex/internal/common"
)

func TestResolveDataset(t *testing.T) {
	entry, err := ResolveDataset("fiqa")
	if err != nil {
		t.Errorf("fiqa: %v", err)
	}
	if entry.Collection != "fiqa_chunks" || entry.QrelsPath != "qrels/fiqa.tsv" {
		t.Errorf("fiqa entry = %+v", entry)
	}
	if _, err := ResolveDataset("nosuch"); !common.IsKind(err, common.KindInvalidInput) {
		t.Errorf("unknown dataset err = %v", err)
	}
	known := KnownDatasets()
	if len(known) != 3 || known[0] != "fiqa" {
		t.Errorf("known datasets = %v", known)
	}
}
