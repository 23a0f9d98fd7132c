package plugins

import (
	"fmt"
	"sort"
	"sync"
)

// Host is the shared base table every loading context delegates to. It
// holds the contracts, native types and script libraries that must have a
// single identity across all packages. Contexts only read from it.
type Host struct {
	mu        sync.RWMutex
	contracts map[string]*Contract
	types     map[string]*Type
	libraries map[string]Library
}

var (
	defaultHost     *Host
	defaultHostOnce sync.Once
)

// NewHost creates a host with PluginInterface and the resource bundle
// library registered
func NewHost() *Host {
	h := &Host{
		contracts: make(map[string]*Contract),
		types:     make(map[string]*Type),
		libraries: make(map[string]Library),
	}

	h.contracts[PluginInterfaceName] = PluginInterface
	h.libraries[ResourceBundleLibrary] = openResourceBundle

	return h
}

// DefaultHost returns the process-wide host
func DefaultHost() *Host {
	defaultHostOnce.Do(func() {
		defaultHost = NewHost()
	})
	return defaultHost
}

// RegisterContract publishes a contract under name
func (h *Host) RegisterContract(name string, c *Contract) error {
	if c == nil {
		return fmt.Errorf("cannot register nil contract")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.taken(name) {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}

	h.contracts[name] = c
	return nil
}

// RegisterType publishes a natively compiled entry point. Packages can name
// it as their Main-Class without shipping code for it.
func (h *Host) RegisterType(t *Type) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("cannot register unnamed type")
	}
	if t.New == nil {
		return fmt.Errorf("type %s has no constructor", t.Name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.taken(t.Name) {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, t.Name)
	}

	registered := *t
	registered.Origin = OriginHost
	h.types[t.Name] = &registered
	return nil
}

// RegisterLibrary publishes a script library under name
func (h *Host) RegisterLibrary(name string, lib Library) error {
	if lib == nil {
		return fmt.Errorf("cannot register nil library")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.taken(name) {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}

	h.libraries[name] = lib
	return nil
}

// Contract returns the contract registered under name
func (h *Host) Contract(name string) (*Contract, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.contracts[name]
	return c, ok
}

// Type returns the native type registered under name
func (h *Host) Type(name string) (*Type, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	t, ok := h.types[name]
	return t, ok
}

// Library returns the script library registered under name
func (h *Host) Library(name string) (Library, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	lib, ok := h.libraries[name]
	return lib, ok
}

// Names lists every identifier the host can resolve
func (h *Host) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.contracts)+len(h.types)+len(h.libraries))
	for n := range h.contracts {
		names = append(names, n)
	}
	for n := range h.types {
		names = append(names, n)
	}
	for n := range h.libraries {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}

// taken must be called with h.mu held
func (h *Host) taken(name string) bool {
	_, c := h.contracts[name]
	_, t := h.types[name]
	_, l := h.libraries[name]
	return c || t || l
}
