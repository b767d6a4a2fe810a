package models

import "time"

// IngestArgs are the per-invocation ingestion knobs. A MaxDepth below zero
// selects the default depth.
type IngestArgs struct {
	// Historical ignores the date window entirely.
	Historical bool
	Since      *time.Time
	Until      *time.Time
	MaxPages   int
	MaxDepth   int
	Now        func() time.Time
}

func (a *IngestArgs) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// EffectiveSince is the lower date bound, nil when unrestricted.
func (a *IngestArgs) EffectiveSince() *time.Time {
	if a == nil || a.Historical {
		return nil
	}
	return a.Since
}

// EffectiveUntil is the upper date bound. Incremental runs that set Since
// without Until are bounded by today.
func (a *IngestArgs) EffectiveUntil() *time.Time {
	if a == nil || a.Historical {
		return nil
	}
	if a.Until != nil {
		return a.Until
	}
	if a.Since != nil {
		now := a.now().UTC()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return &today
	}
	return nil
}

// InWindow reports whether d falls inside the effective window. Unknown dates pass.
func (a *IngestArgs) InWindow(d *time.Time) bool {
	if d == nil {
		return true
	}
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	if since := a.EffectiveSince(); since != nil && day.Before(*since) {
		return false
	}
	if until := a.EffectiveUntil(); until != nil && day.After(*until) {
		return false
	}
	return true
}
