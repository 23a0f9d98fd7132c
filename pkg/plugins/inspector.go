package plugins

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Inspect reads and validates the metadata block of a package. A missing
// manifest, entry point or title is reported as ErrMetadataMissing.
func Inspect(a Archive, log logrus.FieldLogger) (*Manifest, error) {
	manifest, err := ReadManifest(a)
	if err != nil {
		return nil, err
	}

	for _, v := range ValidateManifest(manifest) {
		if v.Severity == "error" {
			return nil, fmt.Errorf("%w: %s", ErrMetadataMissing, v.Message)
		}
		if log != nil {
			log.Warnf("%s: %s", a.Path(), v)
		}
	}

	return manifest, nil
}
