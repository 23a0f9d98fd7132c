package plugins

import (
	"path"
	"strings"
)

// EntryKind classifies package entries for preloading
type EntryKind string

const (
	EntryCode       EntryKind = "code"
	EntryStructured EntryKind = "structured"
	EntryProperties EntryKind = "properties"
	EntryOther      EntryKind = "other"
)

var structuredSuffixes = []string{".xml", ".json", ".yaml", ".yml"}

// ClassifyEntry returns the preload kind of an entry name
func ClassifyEntry(name string) EntryKind {
	ext := strings.ToLower(path.Ext(name))
	switch {
	case ext == codeUnitSuffix:
		return EntryCode
	case ext == propertiesSuffix:
		return EntryProperties
	}
	for _, s := range structuredSuffixes {
		if ext == s {
			return EntryStructured
		}
	}
	return EntryOther
}

// Preload walks every entry of the context's package and caches it so that
// later lookups do not need the archive:
//   - code units are compiled; a failure is logged and skipped
//   - structured resources are read without validation
//   - properties files are parsed; a failure aborts with ErrResourceCorruption
func Preload(c *Context) (PreloadStats, error) {
	var stats PreloadStats

	for _, entry := range c.archive.Entries() {
		switch ClassifyEntry(entry) {
		case EntryCode:
			if _, err := c.compile(entry); err != nil {
				stats.CodeFailed++
				c.log.Warnf("%s: failed to preload code unit %s: %v", c.path, entry, err)
				continue
			}
			stats.CodeUnits++

		case EntryStructured:
			if _, err := c.Resource(entry); err != nil {
				c.log.Warnf("%s: failed to read resource %s: %v", c.path, entry, err)
				continue
			}
			stats.Structured++

		case EntryProperties:
			if _, err := c.Properties(entry); err != nil {
				return stats, err
			}
			stats.Properties++

		default:
			stats.Skipped++
		}
	}

	c.log.Debugf("%s: preloaded %d code units (%d failed), %d structured, %d properties, skipped %d",
		c.path, stats.CodeUnits, stats.CodeFailed, stats.Structured, stats.Properties, stats.Skipped)

	return stats, nil
}
