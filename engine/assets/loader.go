package assets

import (
	"sync"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/renderer"
)

type Loader interface {
	// Load reads the compiled stage named e.g. "quad.vert".
	Load(name string) (*renderer.ShaderModule, error)
	Unload(*renderer.ShaderModule) error
}

// ShaderLibrary keeps loaded shader modules by name until they are
// invalidated, e.g. after a rebuild.
type ShaderLibrary struct {
	loader  Loader
	mutex   sync.RWMutex
	modules map[string]*renderer.ShaderModule
}

func NewShaderLibrary(loader Loader) *ShaderLibrary {
	return &ShaderLibrary{loader: loader, modules: make(map[string]*renderer.ShaderModule)}
}

func (sl *ShaderLibrary) Get(name string) (*renderer.ShaderModule, error) {
	sl.mutex.RLock()
	m, ok := sl.modules[name]
	sl.mutex.RUnlock()
	if ok {
		return m, nil
	}

	m, err := sl.loader.Load(name)
	if err != nil {
		return nil, err
	}
	sl.mutex.Lock()
	defer sl.mutex.Unlock()
	// another caller may have won the race
	if cur, ok := sl.modules[name]; ok {
		return cur, nil
	}
	sl.modules[name] = m
	return m, nil
}

// Pipeline loads the named stages and merges their bindings.
func (sl *ShaderLibrary) Pipeline(names ...string) ([]*renderer.ShaderModule, error) {
	modules := make([]*renderer.ShaderModule, 0, len(names))
	for _, n := range names {
		m, err := sl.Get(n)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	if _, err := renderer.MergeBindings(modules...); err != nil {
		return nil, err
	}
	return modules, nil
}

// Invalidate drops the named modules so the next Get reloads them. No names
// drops everything.
func (sl *ShaderLibrary) Invalidate(names ...string) {
	sl.mutex.Lock()
	defer sl.mutex.Unlock()
	if len(names) == 0 {
		for n, m := range sl.modules {
			sl.unload(n, m)
		}
		return
	}
	for _, n := range names {
		if m, ok := sl.modules[n]; ok {
			sl.unload(n, m)
		}
	}
}

func (sl *ShaderLibrary) unload(name string, m *renderer.ShaderModule) {
	delete(sl.modules, name)
	if err := sl.loader.Unload(m); err != nil {
		core.LogWarn("unloading shader %s: %v", name, err)
	}
}

func (sl *ShaderLibrary) Len() int {
	sl.mutex.RLock()
	defer sl.mutex.RUnlock()
	return len(sl.modules)
}
