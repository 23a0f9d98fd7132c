package plugins

import (
	"errors"
	"fmt"
)

var (
	// ErrPathResolution is returned when a package path cannot be turned into an absolute location
	ErrPathResolution = errors.New("path resolution failed")

	// ErrNotAPackage is returned when a file cannot be opened as a package archive
	ErrNotAPackage = errors.New("not a package archive")

	// ErrMetadataMissing is returned when the manifest or one of its required attributes is absent
	ErrMetadataMissing = errors.New("package metadata missing")

	// ErrResolution is returned when an identifier cannot be resolved to a type
	ErrResolution = errors.New("type resolution failed")

	// ErrNonConformant is returned when the entry point does not implement the plugin contract
	ErrNonConformant = errors.New("entry point does not implement the plugin contract")

	// ErrInstantiation is returned when the entry point cannot be constructed
	ErrInstantiation = errors.New("entry point instantiation failed")

	// ErrResourceCorruption is returned when a properties resource fails to parse during preload
	ErrResourceCorruption = errors.New("package resource is corrupt")

	// ErrContextClosed is returned when an uncached entry is requested from a closed loading context
	ErrContextClosed = errors.New("loading context is closed")

	// ErrAlreadyRegistered is returned when a name is registered twice in a host
	ErrAlreadyRegistered = errors.New("name already registered")
)

// Stage names the step of the load pipeline where a package was rejected.
type Stage string

const (
	StagePath        Stage = "path"
	StageOpen        Stage = "open"
	StageInspect     Stage = "inspect"
	StageResolve     Stage = "resolve"
	StageConformance Stage = "conformance"
	StagePreload     Stage = "preload"
	StageInstantiate Stage = "instantiate"
)

// LoadError records why a single package contributed no module.
type LoadError struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("plugin %s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the failure means the package itself is malformed
// rather than merely ineligible.
func (e *LoadError) Fatal() bool {
	return errors.Is(e.Err, ErrResourceCorruption)
}

func newLoadError(path string, stage Stage, err error) *LoadError {
	return &LoadError{Path: path, Stage: stage, Err: err}
}
