package rag

import (
	"strings"
	"testing"

	"github.com/thapargpt/thapargpt/internal/knowledge"
)

func passage(id, content string, sim float32) knowledge.Result {
	return knowledge.Result{
		Document:   knowledge.Document{ID: id, Content: content},
		Similarity: sim,
	}
}

func TestAssembleBudget(t *testing.T) {
	results := []knowledge.Result{
		passage("a", strings.Repeat("x", 40), 0.9),
		passage("b", strings.Repeat("y", 40), 0.8),
		passage("c", strings.Repeat("z", 40), 0.7),
	}

	block := Assemble(results, 100)
	if len(block.Passages) != 2 {
		t.Fatalf("Assemble() selected %d passages, want 2", len(block.Passages))
	}
	if block.Size > 100 {
		t.Errorf("block size %d exceeds budget 100", block.Size)
	}
	if block.Passages[0].Document.ID != "a" || block.Passages[1].Document.ID != "b" {
		t.Errorf("similarity order not preserved: %v", block.Passages)
	}
}

func TestAssembleNeverSplitsPassages(t *testing.T) {
	results := []knowledge.Result{
		passage("a", strings.Repeat("x", 60), 0.9),
		passage("b", strings.Repeat("y", 60), 0.8),
	}

	// The second passage does not fit whole, so it is excluded entirely.
	block := Assemble(results, 100)
	if len(block.Passages) != 1 {
		t.Fatalf("Assemble() selected %d passages, want 1", len(block.Passages))
	}
	if block.Size != 60 {
		t.Errorf("block size = %d, want 60", block.Size)
	}
}

func TestAssembleDedupByDocumentID(t *testing.T) {
	results := []knowledge.Result{
		passage("a", "first copy", 0.9),
		passage("a", "second copy", 0.85),
		passage("b", "other doc", 0.8),
	}

	block := Assemble(results, 1000)
	if len(block.Passages) != 2 {
		t.Fatalf("Assemble() selected %d passages, want 2 after dedup", len(block.Passages))
	}
	seen := map[string]int{}
	for _, p := range block.Passages {
		seen[p.Document.ID]++
	}
	if seen["a"] != 1 {
		t.Errorf("document a included %d times", seen["a"])
	}
}

func TestAssembleEmptyInput(t *testing.T) {
	block := Assemble(nil, 1000)
	if !block.Empty() {
		t.Errorf("Assemble(nil) = %v, want empty block", block)
	}
	if block.Size != 0 {
		t.Errorf("empty block size = %d", block.Size)
	}
}

func TestAssembleFirstPassageOverBudget(t *testing.T) {
	results := []knowledge.Result{
		passage("a", strings.Repeat("x", 500), 0.9),
	}
	block := Assemble(results, 100)
	if !block.Empty() {
		t.Errorf("oversized first passage should yield empty block, got %d passages", len(block.Passages))
	}
}
