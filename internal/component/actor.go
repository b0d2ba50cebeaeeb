package component

import "github.com/l1jgo/skillsys/internal/tags"

// Actor names a simulated entity and records the tags it was spawned with.
// Pure data, zero methods; the world state keeps the name index.
type Actor struct {
	Name     string
	BaseTags tags.Set
}
