package plugins

import (
	"golang.org/x/text/language"
)

// Plugin is the capability every loaded module must provide.
//
// ActivateResources performs the module's locale-sensitive resource lookups.
// Errors are returned to the caller as-is; the loader never handles them
// because activation only happens after the module has been trusted.
type Plugin interface {
	ActivateResources(locale language.Tag) error
}

// Contract is an identity-bearing interface descriptor. Two contracts are the
// same only if they are the same pointer; equal names or method sets do not
// make a type conformant.
type Contract struct {
	Name    string
	Methods []string
	Extends []*Contract
}

// PluginInterfaceName is the identifier under which the host publishes
// PluginInterface to every loading context.
const PluginInterfaceName = "pluginable.PluginInterface"

// PluginInterface is the host's capability contract. Package entry points
// must list it among their directly implemented interfaces.
var PluginInterface = &Contract{
	Name:    PluginInterfaceName,
	Methods: []string{"activateResources"},
}

func (c *Contract) String() string {
	if c == nil {
		return "<nil contract>"
	}
	return c.Name
}
