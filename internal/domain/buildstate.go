package domain

import "time"

// BuildState tracks the per-project index build lifecycle. Invariant:
// TargetVersion >= CurrentVersion; readers always observe CurrentVersion's
// artifacts.
type BuildState struct {
	ProjectID      string
	CurrentVersion uint64
	TargetVersion  uint64
	Building       bool
	StartedAt      *time.Time
	BuiltAt        *time.Time
	LastError      string
}

// NeedsRebuild reports whether a dirtier target has accrued than what has
// been published.
func (b *BuildState) NeedsRebuild() bool {
	return b.TargetVersion > b.CurrentVersion
}
