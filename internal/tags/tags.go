package tags

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Tag is a canonical gameplay tag name. Tags compare case-insensitively,
// so names are stored case-folded.
type Tag string

// New canonicalises a tag name. Casers carry state, so one is built per call.
func New(name string) Tag {
	return Tag(cases.Fold().String(strings.TrimSpace(name)))
}

// Set is a sorted, de-duplicated collection of tags. The zero value is an
// empty set. Sets are treated as immutable once built.
type Set struct {
	tags []Tag
}

// NewSet builds a set from raw tag names. Blank names are skipped.
func NewSet(names ...string) Set {
	out := make([]Tag, 0, len(names))
	for _, n := range names {
		t := New(n)
		if t == "" {
			continue
		}
		out = append(out, t)
	}
	return fromTags(out)
}

// Of builds a set from already canonical tags.
func Of(ts ...Tag) Set {
	return fromTags(slices.Clone(ts))
}

func fromTags(ts []Tag) Set {
	slices.Sort(ts)
	ts = slices.Compact(ts)
	if len(ts) == 0 {
		return Set{}
	}
	return Set{tags: ts}
}

func (s Set) Len() int       { return len(s.tags) }
func (s Set) IsEmpty() bool  { return len(s.tags) == 0 }
func (s Set) Slice() []Tag   { return slices.Clone(s.tags) }
func (s Set) String() string { return "{" + strings.Join(s.names(), ",") + "}" }

func (s Set) names() []string {
	out := make([]string, len(s.tags))
	for i, t := range s.tags {
		out[i] = string(t)
	}
	return out
}

// HasTag reports whether t is in the set.
func (s Set) HasTag(t Tag) bool {
	_, found := slices.BinarySearch(s.tags, t)
	return found
}

// HasAll reports whether every tag of other is in s. An empty other is
// always satisfied.
func (s Set) HasAll(other Set) bool {
	for _, t := range other.tags {
		if !s.HasTag(t) {
			return false
		}
	}
	return true
}

// HasAny reports whether s and other share at least one tag. An empty other
// never matches.
func (s Set) HasAny(other Set) bool {
	for _, t := range other.tags {
		if s.HasTag(t) {
			return true
		}
	}
	return false
}

// Union returns a new set holding the tags of both sets.
func (s Set) Union(other Set) Set {
	if other.IsEmpty() {
		return s
	}
	if s.IsEmpty() {
		return other
	}
	merged := make([]Tag, 0, len(s.tags)+len(other.tags))
	merged = append(merged, s.tags...)
	merged = append(merged, other.tags...)
	return fromTags(merged)
}

// Equal reports whether both sets hold the same tags.
func (s Set) Equal(other Set) bool {
	return slices.Equal(s.tags, other.tags)
}
