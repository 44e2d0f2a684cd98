package ingest

import (
	"bufio"
	"fmt"
	"io"
)

// Unit is one reconciled export unit: a parent record together with the
// child records that reference it.
type Unit struct {
	Parent   Record
	Children []Record
}

// ReconcileStats summarizes one pass over an export stream
type ReconcileStats struct {
	Lines            int
	Parents          int
	Children         int
	OrphanedChildren int
	MalformedLines   int
}

// Reconciler regroups a flattened newline-delimited export stream into
// parent/child units. The stream interleaves entity types and may emit a
// child before its parent, so children are buffered by parent reference
// until the end of the stream. Children whose parent never appears are
// dropped and counted, never fabricated into parents.
type Reconciler struct {
	maxLineBytes int
}

// NewReconciler creates a reconciler
func NewReconciler() *Reconciler {
	return &Reconciler{maxLineBytes: 1024 * 1024}
}

// Reconcile reads the stream in a single pass and calls emit once per
// parent, in the order parents appeared, with that parent's buffered
// children. Malformed lines are skipped and counted. An emit error stops
// the pass.
func (rc *Reconciler) Reconcile(r io.Reader, emit func(Unit) error) (ReconcileStats, error) {
	var stats ReconcileStats

	parents := make([]Record, 0, 256)
	childrenOf := make(map[string][]Record)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), rc.maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		rec, err := ParseRecord(line)
		if err != nil {
			stats.MalformedLines++
			continue
		}
		if rec.IDKey() == "" {
			stats.MalformedLines++
			continue
		}

		if rec.IsChild() {
			stats.Children++
			ref := rec.ParentRef()
			childrenOf[ref] = append(childrenOf[ref], rec)
			continue
		}

		stats.Parents++
		parents = append(parents, rec)
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read export stream: %w", err)
	}

	for _, parent := range parents {
		key := parent.IDKey()
		children := childrenOf[key]
		delete(childrenOf, key)
		if err := emit(Unit{Parent: parent, Children: children}); err != nil {
			return stats, err
		}
	}

	for _, leftover := range childrenOf {
		stats.OrphanedChildren += len(leftover)
	}

	return stats, nil
}
