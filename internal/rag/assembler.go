// Package rag implements the retrieval-augmented generation pipeline
// stages that sit between vector search and the generation call: context
// assembly under a size budget, prompt construction, and response-language
// normalization.
package rag

import "github.com/thapargpt/thapargpt/internal/knowledge"

// Context is an ordered block of retrieved passages selected under a
// character budget. Invariants: total passage size never exceeds the
// budget, and no document ID appears twice.
type Context struct {
	Passages []knowledge.Result
	Size     int
}

// Empty reports whether no passages were selected.
func (c Context) Empty() bool { return len(c.Passages) == 0 }

// Assemble selects passages into a bounded context block. Input must be
// ordered by similarity descending (the retriever guarantees this).
// Passages with an already-seen document ID are skipped; accumulation
// stops before the first passage that would exceed the budget, so partial
// passages are never included. An empty input produces an empty Context,
// which is a valid outcome, not an error.
func Assemble(results []knowledge.Result, budget int) Context {
	var block Context
	seen := make(map[string]struct{}, len(results))

	for _, r := range results {
		if _, dup := seen[r.Document.ID]; dup {
			continue
		}
		size := len(r.Document.Content)
		if block.Size+size > budget {
			break
		}
		seen[r.Document.ID] = struct{}{}
		block.Passages = append(block.Passages, r)
		block.Size += size
	}
	return block
}
