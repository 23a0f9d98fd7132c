package plugins

import (
	"io"
	"time"

	"golang.org/x/text/language"
)

// Module is a loaded, conformant and preloaded plugin instance together
// with the metadata it was loaded from
type Module struct {
	manifest *Manifest
	path     string
	typ      *Type
	plugin   Plugin
	loadedAt time.Time
}

// ActivateResources forwards to the plugin instance. Errors are the
// module's own and are returned unchanged.
func (m *Module) ActivateResources(locale language.Tag) error {
	return m.plugin.ActivateResources(locale)
}

// Manifest returns the package metadata
func (m *Module) Manifest() *Manifest {
	return m.manifest
}

// Path returns the package file the module was loaded from
func (m *Module) Path() string {
	return m.path
}

// Type returns the resolved entry-point type
func (m *Module) Type() *Type {
	return m.typ
}

// TypeName returns the entry-point identifier
func (m *Module) TypeName() string {
	return m.typ.Name
}

// Title returns the package's Implementation-Title
func (m *Module) Title() string {
	return m.manifest.ImplementationTitle
}

// Plugin returns the underlying instance
func (m *Module) Plugin() Plugin {
	return m.plugin
}

// LoadedAt returns when the module was instantiated
func (m *Module) LoadedAt() time.Time {
	return m.loadedAt
}

// Close releases the instance's script state, if it has one
func (m *Module) Close() error {
	if c, ok := m.plugin.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
