// Package core defines the shared language of the mktwh system.
//
// This package contains:
//   - Domain values (Window, Stream)
//   - Run ledger entities (Run, StageRun, CheckResult)
//   - Service interfaces (Store)
//   - The error taxonomy of a warehouse build (SchemaError, GrainError, RangeError)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
