package layer

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dshills/enquote/internal/config/loader"
)

// Manager manages configuration layers and provides merged access.
type Manager struct {
	mu     sync.RWMutex
	layers []*Layer       // Sorted by priority (ascending)
	merged map[string]any // Cached merged result
	dirty  bool           // Whether merged cache needs refresh
}

// NewManager creates a new layer manager.
func NewManager() *Manager {
	return &Manager{dirty: true}
}

// AddLayer adds a layer, replacing any existing layer with the same name.
// Layers are kept sorted by priority.
func (m *Manager) AddLayer(layer *Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.layers {
		if l.Name == layer.Name {
			m.layers[i] = layer
			m.sortLayers()
			m.dirty = true
			return
		}
	}

	m.layers = append(m.layers, layer)
	m.sortLayers()
	m.dirty = true
}

// RemoveLayer removes a layer by name.
// Returns true if the layer was found and removed.
func (m *Manager) RemoveLayer(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, layer := range m.layers {
		if layer.Name == name {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			m.dirty = true
			return true
		}
	}
	return false
}

// GetLayer returns a layer by name.
func (m *Manager) GetLayer(name string) *Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLayer(name)
}

// Layers returns a copy of all layers sorted by priority.
func (m *Manager) Layers() []*Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Layer, len(m.layers))
	copy(result, m.layers)
	return result
}

// Merge returns the merged configuration of all layers.
// The result is a copy and may be modified by the caller.
func (m *Manager) Merge() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return loader.Clone(m.mergedData())
}

// mergedData returns the cached merge, rebuilding it when dirty.
// Caller holds the write lock.
func (m *Manager) mergedData() map[string]any {
	if !m.dirty && m.merged != nil {
		return m.merged
	}

	merged := make(map[string]any)
	for _, layer := range m.layers {
		merged = loader.DeepMerge(merged, layer.Data)
	}
	m.merged = merged
	m.dirty = false
	return merged
}

// Get returns the effective value at path and the layer that provided it.
func (m *Manager) Get(path string) (any, *Layer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.layers) - 1; i >= 0; i-- {
		if v, ok := loader.GetByPath(m.layers[i].Data, path); ok {
			return v, m.layers[i], true
		}
	}
	return nil, nil, false
}

// Set sets a value at path in the named layer.
func (m *Manager) Set(layerName, path string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	layer := m.findLayer(layerName)
	if layer == nil {
		return fmt.Errorf("layer %q not found", layerName)
	}

	loader.SetByPath(layer.Data, path, value)
	layer.LoadedAt = time.Now()
	m.dirty = true
	return nil
}

// Delete removes the value at path from the named layer.
// Returns true if a value was removed.
func (m *Manager) Delete(layerName, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	layer := m.findLayer(layerName)
	if layer == nil {
		return false
	}

	flat := loader.Flatten(layer.Data)
	if _, ok := flat[path]; !ok {
		return false
	}
	delete(flat, path)

	data := make(map[string]any, len(flat))
	for p, v := range flat {
		loader.SetByPath(data, p, v)
	}
	layer.Data = data
	m.dirty = true
	return true
}

// sortLayers sorts layers by priority (ascending). Caller holds the lock.
func (m *Manager) sortLayers() {
	sort.SliceStable(m.layers, func(i, j int) bool {
		return m.layers[i].Priority < m.layers[j].Priority
	})
}

// findLayer finds a layer by name. Caller holds the lock.
func (m *Manager) findLayer(name string) *Layer {
	for _, layer := range m.layers {
		if layer.Name == name {
			return layer
		}
	}
	return nil
}
