package diagnostics

import (
	"fmt"
	"os"

	"github.com/tidwall/sjson"
)

// FinalizeReport patches a previously written report's "finalization" block
// in place using sjson, avoiding a full unmarshal-mutate-marshal round trip
// of a report that may contain many attempts' worth of diagnostics.
func FinalizeReport(path string, f Finalization) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading report %s for finalization: %w", path, err)
	}

	patched, err := sjson.SetBytes(data, "finalization.status", f.Status)
	if err != nil {
		return fmt.Errorf("patching finalization.status: %w", err)
	}
	if f.Detail != "" {
		patched, err = sjson.SetBytes(patched, "finalization.detail", f.Detail)
		if err != nil {
			return fmt.Errorf("patching finalization.detail: %w", err)
		}
	}
	if f.MutationOnFailure != "" {
		patched, err = sjson.SetBytes(patched, "finalization.mutation_on_failure", f.MutationOnFailure)
		if err != nil {
			return fmt.Errorf("patching finalization.mutation_on_failure: %w", err)
		}
	}

	return withLock(path, DefaultLockTimeout, func() error {
		return atomicWriteFile(path, patched, 0644)
	})
}
