// Package retrieval translates an allowed-level set into the metadata
// predicate applied to every document search, and ranks candidate chunks
// by embedding similarity.
package retrieval

import "docuchat/internal/access"

// Filter restricts retrieval to documents whose confidentiality level is
// a member of the allowed set. It is a pure value: building one never
// widens the set it was given, and it is applied on every search even
// when the set covers the whole enum.
type Filter struct {
	allowed map[access.Level]bool
	levels  []access.Level
}

// NewFilter builds a filter from the resolved allowed-level set.
// Duplicates are ignored.
func NewFilter(levels []access.Level) Filter {
	f := Filter{allowed: make(map[access.Level]bool, len(levels))}
	for _, l := range levels {
		if !f.allowed[l] {
			f.allowed[l] = true
			f.levels = append(f.levels, l)
		}
	}
	return f
}

// FilterForRole resolves the role's allowed levels and wraps them.
func FilterForRole(role access.Role) (Filter, error) {
	levels, err := access.AllowedLevels(role)
	if err != nil {
		return Filter{}, err
	}
	return NewFilter(levels), nil
}

// Allows reports whether documents at the given level are retrievable.
func (f Filter) Allows(level access.Level) bool {
	return f.allowed[level]
}

// Levels returns the allowed levels in the order they were given.
func (f Filter) Levels() []access.Level {
	out := make([]access.Level, len(f.levels))
	copy(out, f.levels)
	return out
}

// LevelStrings returns the allowed levels as raw strings for use in a
// storage predicate (e.g. an IN clause).
func (f Filter) LevelStrings() []string {
	out := make([]string, len(f.levels))
	for i, l := range f.levels {
		out[i] = string(l)
	}
	return out
}

// Empty reports whether the filter admits no level at all.
func (f Filter) Empty() bool {
	return len(f.levels) == 0
}
