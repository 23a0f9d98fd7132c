package plugins

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

// greeterSource is a conformant code unit that records what it was
// activated with through the test.recorder library
const greeterSource = `
local api = require("pluginable.PluginInterface")
local rb = require("pluginable.ResourceBundle")
local recorder = require("test.recorder")

local Greeter = { implements = { api } }

function Greeter:activateResources(locale)
	local msgs = rb.getBundle("messages", locale)
	recorder.record(msgs.greeting)
end

return Greeter
`

// pkgFile describes one package to build
type pkgFile struct {
	manifest *Manifest
	yaml     string // plugin.yaml contents, used when manifest is nil
	entries  map[string]string
}

// writePackage builds a zip package at dir/name and returns its path
func writePackage(t *testing.T, dir, name string, p pkgFile) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if p.manifest != nil {
		w, err := zw.Create(ManifestEntry)
		require.NoError(t, err)
		require.NoError(t, WriteManifest(w, p.manifest))
	} else if p.yaml != "" {
		w, err := zw.Create(YAMLManifestEntry)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.yaml))
		require.NoError(t, err)
	}

	names := make([]string, 0, len(p.entries))
	for n := range p.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.entries[n]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

// greeterPackage is a valid, conformant package with localized bundles
func greeterPackage(title string) pkgFile {
	return pkgFile{
		manifest: &Manifest{
			ManifestVersion:       "1.0",
			MainClass:             "com.example.Greeter",
			ImplementationTitle:   title,
			ImplementationVersion: "1.2.0",
		},
		entries: map[string]string{
			"com/example/Greeter.lua":   greeterSource,
			"messages.properties":       "greeting=Hello\n",
			"messages_de.properties":    "greeting=Hallo\n",
			"messages_de_CH.properties": "greeting=Grüezi\n",
			"config/defaults.json":      `{"colour":"blue"}`,
			"README.txt":                "not preloaded",
		},
	}
}

// recorder collects values scripts pass to test.recorder.record
type recorder struct {
	mu     sync.Mutex
	values []string
}

func (r *recorder) Values() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

func (r *recorder) library(L *lua.LState, c *Context) lua.LValue {
	mod := L.NewTable()
	L.SetField(mod, "record", L.NewFunction(func(L *lua.LState) int {
		r.mu.Lock()
		r.values = append(r.values, L.ToStringMeta(L.Get(1)).String())
		r.mu.Unlock()
		return 0
	}))
	return mod
}

// newTestHost returns a host with the test.recorder library registered
func newTestHost(t *testing.T) (*Host, *recorder) {
	t.Helper()
	rec := &recorder{}
	h := NewHost()
	require.NoError(t, h.RegisterLibrary("test.recorder", rec.library))
	return h, rec
}

// newTestLogger returns a logger that records entries instead of printing
func newTestLogger() (*logrus.Logger, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

// openContext opens a package and wraps it in a context that is released
// when the test ends
func openContext(t *testing.T, host *Host, path string) *Context {
	t.Helper()
	a, err := OpenArchive(path)
	require.NoError(t, err)
	logger, _ := newTestLogger()
	c := NewContext(host, a, logger)
	t.Cleanup(func() {
		c.Close()
		c.closeState()
	})
	return c
}
