package processors

import (
	"context"

	"acp_dues/internal/ports"
)

// NoopProcessor counts rows without applying them. Useful to validate a sheet.
type NoopProcessor struct{}

func (NoopProcessor) Type() string { return "noop" }

func (NoopProcessor) ProcessBatch(_ context.Context, batch []ports.Row) (ports.BatchResult, error) {
	return ports.BatchResult{OK: len(batch)}, nil
}

// Registry returns the processors keyed by import type.
func Registry(procs ...ports.Processor) map[string]ports.Processor {
	reg := map[string]ports.Processor{"noop": NoopProcessor{}}
	for _, p := range procs {
		reg[p.Type()] = p
	}
	return reg
}
