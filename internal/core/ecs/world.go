package ecs

// World owns the entity pool, the registered component stores and a
// deferred destruction queue drained by the cleanup system at tick end.
type World struct {
	pool         *EntityPool
	stores       []Removable
	destroyHooks []func(EntityID)
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		stores:       make([]Removable, 0, 8),
		destroyQueue: make([]EntityID, 0, 16),
	}
}

// Register adds a component store that should be cleared on destroy.
func (w *World) Register(store Removable) {
	w.stores = append(w.stores, store)
}

// OnDestroy registers fn to run for each queued entity right before its
// components are removed and its generation retired.
func (w *World) OnDestroy(fn func(EntityID)) {
	w.destroyHooks = append(w.destroyHooks, fn)
}

func (w *World) CreateEntity() EntityID { return w.pool.Create() }
func (w *World) Alive(id EntityID) bool { return w.pool.Alive(id) }
func (w *World) Pool() *EntityPool      { return w.pool }
func (w *World) PendingDestroy() int    { return len(w.destroyQueue) }

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// FlushDestroyQueue destroys every queued entity. Entities queued twice or
// already dead are skipped.
func (w *World) FlushDestroyQueue() {
	for _, id := range w.destroyQueue {
		if !w.pool.Alive(id) {
			continue
		}
		for _, hook := range w.destroyHooks {
			hook(id)
		}
		for _, s := range w.stores {
			s.Remove(id)
		}
		w.pool.Destroy(id)
	}
	w.destroyQueue = w.destroyQueue[:0]
}
