package plugins

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/magiconair/properties"
	"gopkg.in/yaml.v3"
)

var semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// ValidationError represents a manifest validation error
type ValidationError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (v ValidationError) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// propertiesLoader reads key/value text without ${} expansion so that
// values are taken literally.
func propertiesLoader() *properties.Loader {
	return &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
}

// ParseManifest parses the main section of a MANIFEST.MF style block
// ("Key: Value" lines, continuation lines starting with a single space).
// Per-entry sections after the first blank line are ignored.
func ParseManifest(data []byte) (*Manifest, error) {
	p, err := propertiesLoader().LoadBytes(mainSection(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	attrs := make(map[string]string, p.Len())
	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		attrs[key] = value
	}

	return manifestFromAttributes(attrs), nil
}

// ParseYAMLManifest parses a plugin.yaml manifest keyed by the same attribute names
func ParseYAMLManifest(data []byte) (*Manifest, error) {
	var attrs map[string]string
	if err := yaml.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if attrs == nil {
		attrs = map[string]string{}
	}

	return manifestFromAttributes(attrs), nil
}

// ReadManifest loads the metadata block of a package. META-INF/MANIFEST.MF
// wins over plugin.yaml.
func ReadManifest(a Archive) (*Manifest, error) {
	if a.Has(ManifestEntry) {
		data, err := a.ReadEntry(ManifestEntry)
		if err != nil {
			return nil, err
		}
		return ParseManifest(data)
	}

	if a.Has(YAMLManifestEntry) {
		data, err := a.ReadEntry(YAMLManifestEntry)
		if err != nil {
			return nil, err
		}
		return ParseYAMLManifest(data)
	}

	return nil, fmt.Errorf("%w: no manifest", ErrMetadataMissing)
}

// WriteManifest writes m in MANIFEST.MF form, known attributes first
func WriteManifest(w io.Writer, m *Manifest) error {
	bw := bufio.NewWriter(w)

	known := []struct{ key, value string }{
		{AttrManifestVersion, m.ManifestVersion},
		{AttrMainClass, m.MainClass},
		{AttrImplementationTitle, m.ImplementationTitle},
		{AttrImplementationVersion, m.ImplementationVersion},
		{AttrImplementationVendor, m.ImplementationVendor},
	}
	seen := make(map[string]bool, len(known))
	for _, kv := range known {
		seen[kv.key] = true
		if kv.value == "" {
			continue
		}
		if _, err := fmt.Fprintf(bw, "%s: %s\n", kv.key, kv.value); err != nil {
			return err
		}
	}

	extra := make([]string, 0, len(m.Attributes))
	for key := range m.Attributes {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		if _, err := fmt.Fprintf(bw, "%s: %s\n", key, m.Attributes[key]); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// ValidateManifest checks the attributes a package needs to be eligible.
// Entries with severity "error" make the package ineligible.
func ValidateManifest(manifest *Manifest) []ValidationError {
	var errors []ValidationError

	if manifest.MainClass == "" {
		errors = append(errors, ValidationError{
			Field:    AttrMainClass,
			Message:  "no main specified",
			Severity: "error",
		})
	}

	if manifest.ImplementationTitle == "" {
		errors = append(errors, ValidationError{
			Field:    AttrImplementationTitle,
			Message:  "no implementation title specified",
			Severity: "error",
		})
	}

	if manifest.ImplementationVersion != "" && !isValidSemver(manifest.ImplementationVersion) {
		errors = append(errors, ValidationError{
			Field:    AttrImplementationVersion,
			Message:  fmt.Sprintf("Invalid semver format: %s", manifest.ImplementationVersion),
			Severity: "warning",
		})
	}

	return errors
}

// isValidSemver checks if a version string follows semantic versioning
func isValidSemver(version string) bool {
	return semverRegex.MatchString(version)
}

// manifestFromAttributes maps attributes onto a Manifest. Attribute names
// match case-insensitively; an exact-case key wins over other spellings.
func manifestFromAttributes(attrs map[string]string) *Manifest {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	get := func(key string) string {
		if v, ok := attrs[key]; ok {
			return strings.TrimSpace(v)
		}
		for _, k := range keys {
			if strings.EqualFold(k, key) {
				return strings.TrimSpace(attrs[k])
			}
		}
		return ""
	}

	return &Manifest{
		MainClass:             get(AttrMainClass),
		ImplementationTitle:   get(AttrImplementationTitle),
		ImplementationVersion: get(AttrImplementationVersion),
		ImplementationVendor:  get(AttrImplementationVendor),
		ManifestVersion:       get(AttrManifestVersion),
		Attributes:            attrs,
	}
}

// mainSection returns the main attribute section with continuation lines
// joined onto the line they continue
func mainSection(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	lines := strings.Split(string(data), "\n")

	joined := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			break
		}
		if strings.HasPrefix(line, " ") && len(joined) > 0 {
			joined[len(joined)-1] += line[1:]
			continue
		}
		joined = append(joined, line)
	}

	return []byte(strings.Join(joined, "\n"))
}
