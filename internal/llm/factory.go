package llm

import (
	"fmt"
	"sync"

	"github.com/nulzo/prism-gateway/internal/config"
)

// Factory builds the protocol implementation for a provider kind.
type Factory func() Protocol

var (
	mu        sync.RWMutex
	factories = make(map[config.Kind]Factory)
)

// Register makes a protocol available by kind. Protocol packages call it from init.
func Register(kind config.Kind, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("protocol factory %s already registered", kind))
	}
	factories[kind] = f
}

// Get returns the protocol registered for kind.
func Get(kind config.Kind) (Protocol, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("protocol not registered for kind: %s", kind)
	}
	return f(), nil
}
