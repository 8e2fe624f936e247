package common

import "testing"

func TestParseRewardWeights(t *testing.T) {
	w, err := ParseRewardWeights("recall=1.5,latency=0.5")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if w.Recall != 1.5 || w.Latency != 0.5 {
		t.Errorf("parsed = %+v, want recall=1.5 latency=0.5", w)
	}
	// Omitted keys keep defaults
	def := DefaultRewardWeights()
	if w.Error != def.Error || w.Cost != def.Cost {
		t.Errorf("defaults not preserved: %+v", w)
	}
}

func TestParseRewardWeightsEmpty(t *testing.T) {
	w, err := ParseRewardWeights("")
	if err != nil {
		t.Fatalf("empty spec failed: %v", err)
	}
	if w != DefaultRewardWeights() {
		t.Errorf("empty spec = %+v, want defaults", w)
	}
}

func TestParseRewardWeightsRejectsUnknownKey(t *testing.T) {
	if _, err := ParseRewardWeights("recall=1,throughput=2"); err == nil {
		t.Fatal("unknown key accepted")
	}
	if _, err := ParseRewardWeights("recall"); err == nil {
		t.Fatal("missing = accepted")
	}
	if _, err := ParseRewardWeights("recall=abc"); err == nil {
		t.Fatal("non-numeric value accepted")
	}
}
