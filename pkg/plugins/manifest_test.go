package plugins

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	data := []byte("Manifest-Version: 1.0\r\n" +
		"Main-Class: com.example.very.long.package.name.Gr\r\n" +
		" eeter\r\n" +
		"Implementation-Title: Greeter\r\n" +
		"Implementation-Vendor: Example Corp\r\n" +
		"Built-By: ci\r\n")

	m, err := ParseManifest(data)
	require.NoError(t, err)

	assert.Equal(t, "1.0", m.ManifestVersion)
	assert.Equal(t, "com.example.very.long.package.name.Greeter", m.MainClass)
	assert.Equal(t, "Greeter", m.ImplementationTitle)
	assert.Equal(t, "Example Corp", m.ImplementationVendor)
	assert.Empty(t, m.ImplementationVersion)
	assert.Equal(t, "ci", m.Attributes["Built-By"])
}

func TestParseManifestMainAttributes(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantMain  string
		wantTitle string
	}{
		{
			name:      "entry sections are ignored",
			data:      "Main-Class: good.Main\nImplementation-Title: Good\n\nName: other/Thing.class\nImplementation-Title: Section\n",
			wantMain:  "good.Main",
			wantTitle: "Good",
		},
		{
			name:      "lower case names",
			data:      "main-class: good.Main\nimplementation-title: Good\n",
			wantMain:  "good.Main",
			wantTitle: "Good",
		},
		{
			name:      "mixed case names",
			data:      "MAIN-CLASS: good.Main\nImplementation-title: Good\n",
			wantMain:  "good.Main",
			wantTitle: "Good",
		},
		{
			name:      "attributes only in an entry section",
			data:      "Manifest-Version: 1.0\n\nName: a/B.class\nMain-Class: hidden.Main\n",
			wantMain:  "",
			wantTitle: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantMain, m.MainClass)
			assert.Equal(t, tt.wantTitle, m.ImplementationTitle)
			assert.NotContains(t, m.Attributes, "Name")
		})
	}
}

func TestParseManifestKeepsValuesLiteral(t *testing.T) {
	m, err := ParseManifest([]byte("Main-Class: a.B\nImplementation-Title: ${user.name}\n"))
	require.NoError(t, err)
	assert.Equal(t, "${user.name}", m.ImplementationTitle)
}

func TestParseYAMLManifest(t *testing.T) {
	m, err := ParseYAMLManifest([]byte(`
Main-Class: com.example.Greeter
Implementation-Title: Greeter
Implementation-Version: 2.0.0
`))
	require.NoError(t, err)
	assert.Equal(t, "com.example.Greeter", m.MainClass)
	assert.Equal(t, "Greeter", m.ImplementationTitle)
	assert.Equal(t, "2.0.0", m.ImplementationVersion)

	_, err = ParseYAMLManifest([]byte("- not\n- a map\n"))
	assert.Error(t, err)
}

func TestWriteManifest(t *testing.T) {
	var buf bytes.Buffer
	err := WriteManifest(&buf, &Manifest{
		ManifestVersion:     "1.0",
		MainClass:           "com.example.Greeter",
		ImplementationTitle: "Greeter",
		Attributes: map[string]string{
			"Main-Class": "ignored, known attribute",
			"Z-Extra":    "z",
			"A-Extra":    "a",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Manifest-Version: 1.0\n"+
		"Main-Class: com.example.Greeter\n"+
		"Implementation-Title: Greeter\n"+
		"A-Extra: a\n"+
		"Z-Extra: z\n", buf.String())

	m, err := ParseManifest(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "com.example.Greeter", m.MainClass)
}

func TestReadManifest(t *testing.T) {
	dir := t.TempDir()

	t.Run("manifest wins over plugin.yaml", func(t *testing.T) {
		p := greeterPackage("From MANIFEST")
		p.entries[YAMLManifestEntry] = "Main-Class: other.Main\nImplementation-Title: From YAML\n"
		a, err := OpenArchive(writePackage(t, dir, "both.pkg", p))
		require.NoError(t, err)
		defer a.Close()

		m, err := ReadManifest(a)
		require.NoError(t, err)
		assert.Equal(t, "From MANIFEST", m.ImplementationTitle)
	})

	t.Run("plugin.yaml fallback", func(t *testing.T) {
		a, err := OpenArchive(writePackage(t, dir, "yaml.pkg", pkgFile{
			yaml: "Main-Class: com.example.Greeter\nImplementation-Title: From YAML\n",
		}))
		require.NoError(t, err)
		defer a.Close()

		m, err := ReadManifest(a)
		require.NoError(t, err)
		assert.Equal(t, "From YAML", m.ImplementationTitle)
	})

	t.Run("no manifest", func(t *testing.T) {
		a, err := OpenArchive(writePackage(t, dir, "none.pkg", pkgFile{
			entries: map[string]string{"hello.txt": "hi"},
		}))
		require.NoError(t, err)
		defer a.Close()

		_, err = ReadManifest(a)
		assert.ErrorIs(t, err, ErrMetadataMissing)
	})
}

func TestValidateManifest(t *testing.T) {
	tests := []struct {
		name     string
		manifest Manifest
		fields   []string
		errors   int
	}{
		{
			name:     "valid",
			manifest: Manifest{MainClass: "a.B", ImplementationTitle: "B", ImplementationVersion: "1.0.0"},
		},
		{
			name:     "missing main",
			manifest: Manifest{ImplementationTitle: "B"},
			fields:   []string{AttrMainClass},
			errors:   1,
		},
		{
			name:     "missing title",
			manifest: Manifest{MainClass: "a.B"},
			fields:   []string{AttrImplementationTitle},
			errors:   1,
		},
		{
			name:     "missing both",
			manifest: Manifest{},
			fields:   []string{AttrMainClass, AttrImplementationTitle},
			errors:   2,
		},
		{
			name:     "non-semver version is only a warning",
			manifest: Manifest{MainClass: "a.B", ImplementationTitle: "B", ImplementationVersion: "build-42"},
			fields:   []string{AttrImplementationVersion},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := ValidateManifest(&tt.manifest)

			var fields []string
			errs := 0
			for _, r := range results {
				fields = append(fields, r.Field)
				if r.Severity == "error" {
					errs++
				}
			}
			assert.Equal(t, tt.fields, fields)
			assert.Equal(t, tt.errors, errs)
		})
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	logger, hook := newTestLogger()

	t.Run("valid with warning", func(t *testing.T) {
		p := greeterPackage("Greeter")
		p.manifest.ImplementationVersion = "nightly"
		a, err := OpenArchive(writePackage(t, dir, "warn.pkg", p))
		require.NoError(t, err)
		defer a.Close()

		hook.Reset()
		m, err := Inspect(a, logger)
		require.NoError(t, err)
		assert.Equal(t, "Greeter", m.ImplementationTitle)
		require.NotNil(t, hook.LastEntry())
		assert.Contains(t, hook.LastEntry().Message, "Invalid semver format: nightly")
	})

	t.Run("missing title", func(t *testing.T) {
		p := greeterPackage("")
		a, err := OpenArchive(writePackage(t, dir, "untitled.pkg", p))
		require.NoError(t, err)
		defer a.Close()

		_, err = Inspect(a, logger)
		assert.ErrorIs(t, err, ErrMetadataMissing)
		assert.Contains(t, err.Error(), "no implementation title specified")
	})
}
