// Package plugins discovers, isolates and activates plugin packages dropped
// into a directory.
//
// # Overview
//
// A package is a zip archive under <base>/plugins carrying a metadata block
// (META-INF/MANIFEST.MF, or plugin.yaml) that names its entry point and
// title. Each package is loaded into its own Context: identifiers resolve
// against the shared Host first and only then against the package's
// entries, so contracts published by the host keep one identity in every
// package, even one that bundles its own copy. Host libraries stay inert
// until the package has passed conformance.
//
// Registry: scans the plugin directory and keeps the modules of the last scan
// Loader: runs the per-package pipeline and reports failures as *LoadError
// Host: shared contracts, native entry-point types and script libraries
// Context: isolated resolution, preload caches, resource bundles
//
// # Package Pipeline
//
//	open -> inspect -> resolve Main-Class -> conformance -> preload -> instantiate
//
// Conformance is identity-based and only looks at directly declared
// interfaces. A package that declares its own "pluginable.PluginInterface"
// does not conform, and neither does one whose interface merely extends it.
//
// Preloading compiles every code unit and parses every .properties entry so
// the module keeps working once its archive is closed. A code unit that fails
// to compile is skipped; a properties entry that fails to parse rejects the
// package.
//
// # Code Units
//
// Entry points are Lua scripts. The identifier "com.example.Greeter" maps to
// the entry "com/example/Greeter.lua", which returns a class table:
//
//	local api = require("pluginable.PluginInterface")
//	local rb = require("pluginable.ResourceBundle")
//
//	local Greeter = { implements = { api } }
//
//	function Greeter:activateResources(locale)
//		local msgs = rb.getBundle("messages", locale)
//		print(msgs.greeting)
//	end
//
//	return Greeter
//
// Native Go types registered with Host.RegisterType can be named as a
// Main-Class as well.
//
// # Usage Example
//
//	registry, err := plugins.LoadPlugins(ctx, baseDir, plugins.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer registry.Close()
//
//	for _, m := range registry.LoadedPlugins() {
//		if err := m.ActivateResources(language.English); err != nil {
//			logger.Errorf("%s: %v", m.Title(), err)
//		}
//	}
package plugins
