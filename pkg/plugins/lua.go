package plugins

import (
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"golang.org/x/text/language"
)

// Library builds a host-provided script module for one loading context
type Library func(L *lua.LState, c *Context) lua.LValue

// newSandbox creates the script state of a context. Only pure libraries are
// opened; every filesystem-reaching function is removed and require is
// routed through the context.
func newSandbox(c *Context) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, pair := range []struct {
		n string
		f lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage}, // must be first
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(pair.f),
			NRet:    0,
			Protect: true,
		}, lua.LString(pair.n)); err != nil {
			panic(err)
		}
	}

	for _, name := range []string{"dofile", "loadfile", "module", "package"} {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("require", L.NewFunction(c.luaRequire))
	L.SetGlobal("print", L.NewFunction(c.luaPrint))

	mt := L.NewTypeMetatable(contractTypeName)
	L.SetField(mt, "__tostring", L.NewFunction(contractToString))

	return L
}

func (c *Context) luaRequire(L *lua.LState) int {
	name := L.CheckString(1)
	v, err := c.require(name)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(v)
	return 1
}

func (c *Context) luaPrint(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	c.log.Infof("%s: %s", c.path, strings.Join(parts, "\t"))
	return 0
}

func contractToString(L *lua.LState) int {
	ud := L.CheckUserData(1)
	if ct, ok := ud.Value.(*Contract); ok {
		L.Push(lua.LString(ct.Name))
		return 1
	}
	L.Push(lua.LString("contract"))
	return 1
}

// contractValue wraps a host contract for scripts. Every context gets its
// own userdata, but all of them point at the same *Contract.
func (c *Context) contractValue(contract *Contract) lua.LValue {
	ud := c.L.NewUserData()
	ud.Value = contract
	c.L.SetMetatable(ud, c.L.GetTypeMetatable(contractTypeName))
	return ud
}

// contractFromValue maps an entry of an implements/extends list to a
// contract. Host userdata keeps its host identity; tables declared by the
// package become package-local contracts.
func (c *Context) contractFromValue(v lua.LValue) (*Contract, error) {
	switch val := v.(type) {
	case *lua.LUserData:
		if ct, ok := val.Value.(*Contract); ok {
			return ct, nil
		}
	case *lua.LTable:
		return c.localContract(val)
	}
	return nil, fmt.Errorf("%w: %s is not an interface", ErrResolution, v.Type())
}

func (c *Context) localContract(tbl *lua.LTable) (*Contract, error) {
	if ct, ok := c.local[tbl]; ok {
		return ct, nil
	}

	ct := &Contract{}
	if name, ok := tbl.RawGetString("name").(lua.LString); ok {
		ct.Name = string(name)
	}
	c.local[tbl] = ct

	if methods, ok := tbl.RawGetString("methods").(*lua.LTable); ok {
		for i := 1; i <= methods.Len(); i++ {
			if m, ok := methods.RawGetInt(i).(lua.LString); ok {
				ct.Methods = append(ct.Methods, string(m))
			}
		}
	}

	if extends, ok := tbl.RawGetString("extends").(*lua.LTable); ok {
		for i := 1; i <= extends.Len(); i++ {
			parent, err := c.contractFromValue(extends.RawGetInt(i))
			if err != nil {
				return nil, err
			}
			ct.Extends = append(ct.Extends, parent)
		}
	}

	return ct, nil
}

// typeFromValue turns the value returned by an entry-point code unit into a
// Type. The value must be a class table; its implements list holds the
// directly declared interfaces.
func (c *Context) typeFromValue(name string, v lua.LValue) (*Type, error) {
	class, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: %s evaluates to %s, not a class table", ErrResolution, name, v.Type())
	}

	var ifaces []*Contract
	if implements := class.RawGetString("implements"); implements != lua.LNil {
		list, ok := implements.(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("%w: %s.implements must be a list", ErrResolution, name)
		}
		for i := 1; i <= list.Len(); i++ {
			ct, err := c.contractFromValue(list.RawGetInt(i))
			if err != nil {
				return nil, fmt.Errorf("%s.implements[%d]: %w", name, i, err)
			}
			ifaces = append(ifaces, ct)
		}
	}

	return &Type{
		Name:       name,
		Origin:     c.path,
		Interfaces: ifaces,
		New: func() (Plugin, error) {
			return c.instantiate(name, class)
		},
	}, nil
}

// instantiate calls class:new() when defined, otherwise creates an empty
// object whose methods come from the class
func (c *Context) instantiate(name string, class *lua.LTable) (Plugin, error) {
	if c.stateClosed {
		return nil, fmt.Errorf("%s: loading context is released", name)
	}

	L := c.L
	var obj lua.LValue

	switch ctor := L.GetField(class, "new").(type) {
	case *lua.LFunction:
		top := L.GetTop()
		if err := L.CallByParam(lua.P{Fn: ctor, NRet: 1, Protect: true}, class); err != nil {
			L.SetTop(top)
			return nil, fmt.Errorf("%s.new: %w", name, err)
		}
		obj = L.Get(-1)
		L.Pop(1)
	case *lua.LNilType:
		self := L.NewTable()
		mt := L.NewTable()
		mt.RawSetString("__index", class)
		L.SetMetatable(self, mt)
		obj = self
	default:
		return nil, fmt.Errorf("%s.new is a %s, not a function", name, ctor.Type())
	}

	self, ok := obj.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%s.new returned %s, not an object", name, obj.Type())
	}

	return &luaInstance{name: name, ctx: c, self: self}, nil
}

// luaInstance adapts a script object to Plugin
type luaInstance struct {
	mu   sync.Mutex
	name string
	ctx  *Context
	self *lua.LTable
}

func (i *luaInstance) ActivateResources(locale language.Tag) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.ctx.stateClosed {
		return fmt.Errorf("%s: module is closed", i.name)
	}

	L := i.ctx.L
	fn, ok := L.GetField(i.self, "activateResources").(*lua.LFunction)
	if !ok {
		return fmt.Errorf("%s: activateResources is not defined", i.name)
	}

	top := L.GetTop()
	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, i.self, lua.LString(locale.String())); err != nil {
		L.SetTop(top)
		return fmt.Errorf("%s: %w", i.name, err)
	}
	return nil
}

func (i *luaInstance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.ctx.closeState()
	return nil
}
