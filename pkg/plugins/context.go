package plugins

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/magiconair/properties"
	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

const (
	codeUnitSuffix   = ".lua"
	bundleCacheSize  = 64
	contractTypeName = "pluginable.Contract"
)

// Context is the isolated loading context of one package. It delegates to
// the shared Host first and only then looks at the package's own entries,
// so host contracts keep one identity in every package even when a package
// bundles its own copy.
//
// Until the loader accepts the package (see trust), host libraries are
// handed out as inert stubs: a code unit may require them at the top level
// but cannot call into them.
//
// A Context is not safe for concurrent use.
type Context struct {
	host    *Host
	archive Archive
	path    string
	log     logrus.FieldLogger

	L *lua.LState

	protos    map[string]*lua.FunctionProto // compiled code units by entry name
	modules   map[string]lua.LValue         // require results by identifier
	loading   map[string]bool
	types     map[string]*Type
	resources map[string][]byte
	props     map[string]*properties.Properties
	local     map[*lua.LTable]*Contract
	bundles   *lru.Cache[string, *properties.Properties]

	closed      bool
	stateClosed bool
	trusted     bool
}

// NewContext creates a loading context bound to one archive
func NewContext(host *Host, archive Archive, log logrus.FieldLogger) *Context {
	if host == nil {
		host = DefaultHost()
	}
	if log == nil {
		log = logrus.New()
	}

	bundles, _ := lru.New[string, *properties.Properties](bundleCacheSize)

	c := &Context{
		host:      host,
		archive:   archive,
		path:      archive.Path(),
		log:       log,
		protos:    make(map[string]*lua.FunctionProto),
		modules:   make(map[string]lua.LValue),
		loading:   make(map[string]bool),
		types:     make(map[string]*Type),
		resources: make(map[string][]byte),
		props:     make(map[string]*properties.Properties),
		local:     make(map[*lua.LTable]*Contract),
		bundles:   bundles,
	}
	c.L = newSandbox(c)

	return c
}

// Path returns the archive path this context is bound to
func (c *Context) Path() string {
	return c.path
}

// Host returns the shared host this context delegates to
func (c *Context) Host() *Host {
	return c.host
}

// Resolve resolves an entry-point identifier to a Type. Host types and
// contracts win over package code units.
func (c *Context) Resolve(name string) (*Type, error) {
	if t, ok := c.types[name]; ok {
		return t, nil
	}

	if t, ok := c.host.Type(name); ok {
		c.types[name] = t
		return t, nil
	}

	if _, ok := c.host.Contract(name); ok {
		return nil, fmt.Errorf("%w: %s is an interface", ErrResolution, name)
	}

	if c.hasCodeUnit(name) {
		value, err := c.require(name)
		if err != nil {
			return nil, err
		}
		t, err := c.typeFromValue(name, value)
		if err != nil {
			return nil, err
		}
		c.types[name] = t
		return t, nil
	}

	return nil, fmt.Errorf("%w: %s not found in %s", ErrResolution, name, c.path)
}

// Close releases the archive handle. Cached code units and resources stay
// usable; anything not cached fails with ErrContextClosed afterwards.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.archive.Close()
}

// Closed reports whether the archive handle has been released
func (c *Context) Closed() bool {
	return c.closed
}

// closeState releases the script state. Called by the loader when no
// module instance retains it.
func (c *Context) closeState() {
	if c.stateClosed {
		return
	}
	c.stateClosed = true
	c.L.Close()
}

// Resource returns the bytes of an entry, from the preload cache when possible
func (c *Context) Resource(name string) ([]byte, error) {
	if data, ok := c.resources[name]; ok {
		return data, nil
	}
	data, err := c.readEntry(name)
	if err != nil {
		return nil, err
	}
	c.resources[name] = data
	return data, nil
}

// Properties returns the parsed properties entry, from the preload cache
// when possible
func (c *Context) Properties(name string) (*properties.Properties, error) {
	if p, ok := c.props[name]; ok {
		return p, nil
	}
	data, err := c.readEntry(name)
	if err != nil {
		return nil, err
	}
	p, err := propertiesLoader().LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrResourceCorruption, name, err)
	}
	c.props[name] = p
	return p, nil
}

func (c *Context) readEntry(name string) ([]byte, error) {
	if c.closed {
		return nil, fmt.Errorf("%w: %s", ErrContextClosed, name)
	}
	return c.archive.ReadEntry(name)
}

func (c *Context) hasCodeUnit(name string) bool {
	entry := codeUnitEntry(name)
	if _, ok := c.protos[entry]; ok {
		return true
	}
	return !c.closed && c.archive.Has(entry)
}

// compile returns the compiled form of a code unit entry, compiling and
// caching it on first use
func (c *Context) compile(entry string) (*lua.FunctionProto, error) {
	if proto, ok := c.protos[entry]; ok {
		return proto, nil
	}

	data, err := c.readEntry(entry)
	if err != nil {
		return nil, err
	}

	chunk, err := parse.Parse(bytes.NewReader(data), entry)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", entry, err)
	}
	proto, err := lua.Compile(chunk, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", entry, err)
	}

	c.protos[entry] = proto
	return proto, nil
}

// require resolves an identifier to a script value: module cache, host
// contracts and libraries, then package code units
func (c *Context) require(name string) (lua.LValue, error) {
	if v, ok := c.modules[name]; ok {
		return v, nil
	}
	if c.loading[name] {
		return nil, fmt.Errorf("%w: loop while loading %s", ErrResolution, name)
	}

	if contract, ok := c.host.Contract(name); ok {
		v := c.contractValue(contract)
		c.modules[name] = v
		return v, nil
	}

	if lib, ok := c.host.Library(name); ok {
		v := c.libraryValue(name, lib)
		c.modules[name] = v
		return v, nil
	}

	if c.hasCodeUnit(name) {
		c.loading[name] = true
		defer delete(c.loading, name)

		v, err := c.execCodeUnit(codeUnitEntry(name))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrResolution, name, err)
		}
		c.modules[name] = v
		return v, nil
	}

	return nil, fmt.Errorf("%w: module %s not found in %s", ErrResolution, name, c.path)
}

// trust marks the package as accepted. Host libraries required before this
// point start forwarding to the real library.
func (c *Context) trust() {
	c.trusted = true
}

// libraryValue returns the script value of a host library. Before the
// package is trusted it is a stub whose fields resolve to the real library
// only once trust has been granted; touching it earlier raises an error.
func (c *Context) libraryValue(name string, lib Library) lua.LValue {
	if c.trusted {
		return lib(c.L, c)
	}

	var real lua.LValue
	stub := c.L.NewTable()
	mt := c.L.NewTable()
	c.L.SetField(mt, "__index", c.L.NewFunction(func(L *lua.LState) int {
		if !c.trusted {
			L.RaiseError("%s is not available before %s is accepted", name, c.path)
			return 0
		}
		if real == nil {
			real = lib(L, c)
		}
		L.Push(L.GetField(real, L.CheckString(2)))
		return 1
	}))
	c.L.SetField(mt, "__newindex", c.L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s is read-only", name)
		return 0
	}))
	c.L.SetMetatable(stub, mt)
	return stub
}

func (c *Context) execCodeUnit(entry string) (lua.LValue, error) {
	proto, err := c.compile(entry)
	if err != nil {
		return nil, err
	}

	top := c.L.GetTop()
	c.L.Push(c.L.NewFunctionFromProto(proto))
	if err := c.L.PCall(0, 1, nil); err != nil {
		c.L.SetTop(top)
		return nil, err
	}
	v := c.L.Get(-1)
	c.L.Pop(1)

	if v == lua.LNil {
		v = lua.LTrue
	}
	return v, nil
}

// codeUnitEntry maps a dotted identifier to its entry name
func codeUnitEntry(name string) string {
	return strings.ReplaceAll(name, ".", "/") + codeUnitSuffix
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
