package scope

import "sync"

// Variables is the key/value storage of a coordination.
type Variables struct {
	mu     sync.RWMutex
	values map[any]any
}

func newVariables() *Variables {
	return &Variables{values: make(map[any]any)}
}

func (v *Variables) Get(key any) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	value, ok := v.values[key]
	return value, ok
}

func (v *Variables) Put(key, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[key] = value
}

func (v *Variables) Delete(key any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.values, key)
}
