package plugins

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestBundleCandidates(t *testing.T) {
	tests := []struct {
		name   string
		bundle string
		locale language.Tag
		want   []string
	}{
		{
			name:   "language and region",
			bundle: "messages",
			locale: language.MustParse("de-CH"),
			want:   []string{"messages_de_CH.properties", "messages_de.properties", "messages.properties"},
		},
		{
			name:   "language only",
			bundle: "messages",
			locale: language.English,
			want:   []string{"messages_en.properties", "messages.properties"},
		},
		{
			name:   "undetermined",
			bundle: "messages",
			locale: language.Und,
			want:   []string{"messages.properties"},
		},
		{
			name:   "dotted base name",
			bundle: "i18n.labels",
			locale: language.French,
			want:   []string{"i18n/labels_fr.properties", "i18n/labels.properties"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BundleCandidates(tt.bundle, tt.locale))
		})
	}
}

func TestContextBundle(t *testing.T) {
	host, _ := newTestHost(t)
	c := openContext(t, host, writePackage(t, t.TempDir(), "a.pkg", greeterPackage("A")))

	tests := []struct {
		locale string
		want   string
	}{
		{locale: "de-CH", want: "Grüezi"},
		{locale: "de-AT", want: "Hallo"},
		{locale: "de", want: "Hallo"},
		{locale: "en", want: "Hello"},
		{locale: "ja", want: "Hello"},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			p, err := c.Bundle("messages", language.MustParse(tt.locale))
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.MustGetString("greeting"))
		})
	}

	_, err := c.Bundle("labels", language.English)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't find bundle for base name labels")
}

func TestContextBundleAfterClose(t *testing.T) {
	host, _ := newTestHost(t)
	c := openContext(t, host, writePackage(t, t.TempDir(), "a.pkg", greeterPackage("A")))

	_, err := Preload(c)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	p, err := c.Bundle("messages", language.MustParse("de-CH"))
	require.NoError(t, err)
	assert.Equal(t, "Grüezi", p.MustGetString("greeting"))

	// No messages_en entry: falls back to the base bundle
	p, err = c.Bundle("messages", language.English)
	require.NoError(t, err)
	assert.Equal(t, "Hello", p.MustGetString("greeting"))

	_, err = c.Bundle("labels", language.English)
	assert.ErrorIs(t, err, ErrContextClosed)
}

func TestResourceBundleLibrary(t *testing.T) {
	host, rec := newTestHost(t)
	c := openContext(t, host, writePackage(t, t.TempDir(), "lib.pkg", pkgFile{
		manifest: &Manifest{MainClass: "lib.Reader", ImplementationTitle: "Reader"},
		entries: map[string]string{
			"lib/Reader.lua": `
local rb = require("pluginable.ResourceBundle")
local recorder = require("test.recorder")

recorder.record(rb.getBundle("messages", "de").greeting)
recorder.record(rb.getBundle("messages").greeting)
recorder.record(rb.getResource("config/defaults.json"))

local data, err = rb.getResource("missing.json")
recorder.record(tostring(data))
recorder.record(err ~= nil)

local ok = pcall(rb.getBundle, "labels", "en")
recorder.record(ok)

return true
`,
			"messages.properties":    "greeting=Hello\n",
			"messages_de.properties": "greeting=Hallo\n",
			"config/defaults.json":   `{"colour":"blue"}`,
		},
	}))

	c.trust()
	_, err := c.require("lib.Reader")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hallo", "Hello", `{"colour":"blue"}`, "nil", "true", "false"}, rec.Values())
}
