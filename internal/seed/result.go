// Package seed loads a roster file and applies it through the synchronizer.
package seed

import "fmt"

// SeedResult tracks counts and errors from a seeding operation. Counts
// include only rows created by this run; reused rows go to Skipped.
type SeedResult struct {
	Teams    int
	Players  int
	Matches  int
	Sessions int
	Skipped  int
	Errors   []string
}

// Add merges another SeedResult into this one.
func (r *SeedResult) Add(other SeedResult) {
	r.Teams += other.Teams
	r.Players += other.Players
	r.Matches += other.Matches
	r.Sessions += other.Sessions
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
}

// AddErrorf records a formatted error message.
func (r *SeedResult) AddErrorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Summary returns a human-readable summary of the seed operation.
func (r *SeedResult) Summary() string {
	return fmt.Sprintf(
		"teams=%d players=%d matches=%d sessions=%d skipped=%d errors=%d",
		r.Teams, r.Players, r.Matches, r.Sessions, r.Skipped, len(r.Errors),
	)
}
