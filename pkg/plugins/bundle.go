package plugins

import (
	"fmt"
	"strings"

	"github.com/magiconair/properties"
	lua "github.com/yuin/gopher-lua"
	"golang.org/x/text/language"
)

// ResourceBundleLibrary is the identifier scripts require to look up
// localized bundles and raw resources
const ResourceBundleLibrary = "pluginable.ResourceBundle"

const propertiesSuffix = ".properties"

// BundleCandidates lists the entries searched for a bundle, most specific
// first: name_lang_REGION, name_lang, name. Dots in name are path separators.
func BundleCandidates(name string, locale language.Tag) []string {
	base := strings.ReplaceAll(name, ".", "/")

	var candidates []string
	if locale != language.Und {
		lang, _ := locale.Base()
		region, conf := locale.Region()
		if conf == language.Exact {
			candidates = append(candidates, fmt.Sprintf("%s_%s_%s%s", base, lang, region, propertiesSuffix))
		}
		candidates = append(candidates, fmt.Sprintf("%s_%s%s", base, lang, propertiesSuffix))
	}
	candidates = append(candidates, base+propertiesSuffix)

	return candidates
}

// Bundle resolves a localized properties bundle within the package. Results
// are cached per name and locale.
func (c *Context) Bundle(name string, locale language.Tag) (*properties.Properties, error) {
	key := name + "|" + locale.String()
	if p, ok := c.bundles.Get(key); ok {
		return p, nil
	}

	var lastErr error
	for _, entry := range BundleCandidates(name, locale) {
		// Preload caches every properties entry, so once the archive is
		// released an uncached candidate does not exist
		if _, cached := c.props[entry]; !cached && (c.closed || !c.archive.Has(entry)) {
			continue
		}
		p, err := c.Properties(entry)
		if err != nil {
			if isNotExist(err) {
				continue
			}
			lastErr = err
			break
		}
		c.bundles.Add(key, p)
		return p, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	if c.closed {
		return nil, fmt.Errorf("%w: can't find bundle for base name %s, locale %s", ErrContextClosed, name, locale)
	}
	return nil, fmt.Errorf("can't find bundle for base name %s, locale %s", name, locale)
}

// openResourceBundle builds the script side of ResourceBundleLibrary:
//
//	local rb = require("pluginable.ResourceBundle")
//	local msgs = rb.getBundle("messages", locale)
//	local raw = rb.getResource("config/defaults.xml")
func openResourceBundle(L *lua.LState, c *Context) lua.LValue {
	mod := L.NewTable()

	L.SetFuncs(mod, map[string]lua.LGFunction{
		"getBundle": func(L *lua.LState) int {
			name := L.CheckString(1)
			locale := language.Und
			if L.GetTop() >= 2 && L.Get(2) != lua.LNil {
				tag, err := language.Parse(L.CheckString(2))
				if err != nil {
					L.ArgError(2, err.Error())
					return 0
				}
				locale = tag
			}

			p, err := c.Bundle(name, locale)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}

			tbl := L.NewTable()
			for _, k := range p.Keys() {
				v, _ := p.Get(k)
				tbl.RawSetString(k, lua.LString(v))
			}
			L.Push(tbl)
			return 1
		},
		"getResource": func(L *lua.LState) int {
			name := L.CheckString(1)
			data, err := c.Resource(name)
			if err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(err.Error()))
				return 2
			}
			L.Push(lua.LString(data))
			return 1
		},
	})

	return mod
}
