package plugins

import (
	"fmt"
)

// Origin values for Type descriptors that do not come from a package.
const (
	OriginHost = "host"
)

// Type describes a resolvable entry point: its identifier, the interfaces it
// declares directly, and how to construct an instance.
type Type struct {
	Name       string
	Origin     string      // archive path, or OriginHost for native types
	Interfaces []*Contract // direct interfaces only
	New        func() (Plugin, error)
}

func (t *Type) String() string {
	return fmt.Sprintf("%s (%s)", t.Name, t.Origin)
}

// Manifest holds the package metadata block
type Manifest struct {
	MainClass             string            `yaml:"Main-Class"`             // Entry-point identifier
	ImplementationTitle   string            `yaml:"Implementation-Title"`   // Display title
	ImplementationVersion string            `yaml:"Implementation-Version"` // Optional semver
	ImplementationVendor  string            `yaml:"Implementation-Vendor"`  // Optional vendor
	ManifestVersion       string            `yaml:"Manifest-Version"`       // Optional format version
	Attributes            map[string]string `yaml:"-"`                      // Every attribute as read
}

// Manifest attribute names
const (
	AttrManifestVersion       = "Manifest-Version"
	AttrMainClass             = "Main-Class"
	AttrImplementationTitle   = "Implementation-Title"
	AttrImplementationVersion = "Implementation-Version"
	AttrImplementationVendor  = "Implementation-Vendor"
)

// Well-known metadata entry locations inside a package
const (
	ManifestEntry     = "META-INF/MANIFEST.MF"
	YAMLManifestEntry = "plugin.yaml"
)

// PreloadStats counts what the preloader did with a package's entries
type PreloadStats struct {
	CodeUnits  int
	CodeFailed int
	Structured int
	Properties int
	Skipped    int
}
