package luascan

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/partscan/internal/partition"
)

const (
	nodeTypeName = "partscan.node"
	scanTypeName = "partscan.scan"
)

// scan is the Lua-side view of a session.
type scan struct {
	sc *Scanner
	s  *partition.Session
}

func registerTypes(L *lua.LState) {
	mt := L.NewTypeMetatable(nodeTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), nodeMethods))
	L.SetField(mt, "__eq", L.NewFunction(nodeEqual))
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(checkNode(L, 1).String()))
		return 1
	}))

	mt = L.NewTypeMetatable(scanTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), scanMethods))
}

// newNode wraps n, or returns nil for an invalid handle.
func newNode(L *lua.LState, n partition.Node) lua.LValue {
	if !n.Valid() {
		return lua.LNil
	}
	ud := L.NewUserData()
	ud.Value = n
	L.SetMetatable(ud, L.GetTypeMetatable(nodeTypeName))
	return ud
}

func newScan(L *lua.LState, sc *scan) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = sc
	L.SetMetatable(ud, L.GetTypeMetatable(scanTypeName))
	return ud
}

func checkNode(L *lua.LState, i int) partition.Node {
	n, ok := L.CheckUserData(i).Value.(partition.Node)
	if !ok {
		L.ArgError(i, "node expected")
	}
	return n
}

func checkScan(L *lua.LState) *scan {
	sc, ok := L.CheckUserData(1).Value.(*scan)
	if !ok {
		L.ArgError(1, "scan expected")
	}
	return sc
}

// raise turns a session error into a Lua error.
func raise(L *lua.LState, err error) {
	L.RaiseError("%s", err.Error())
}

func nodeEqual(L *lua.LState) int {
	L.Push(lua.LBool(checkNode(L, 1) == checkNode(L, 2)))
	return 1
}

var nodeMethods = map[string]lua.LGFunction{
	"offset": func(L *lua.LState) int {
		L.Push(lua.LNumber(checkNode(L, 1).Offset()))
		return 1
	},
	"length": func(L *lua.LState) int {
		L.Push(lua.LNumber(checkNode(L, 1).Length()))
		return 1
	},
	"end_offset": func(L *lua.LState) int {
		L.Push(lua.LNumber(checkNode(L, 1).End()))
		return 1
	},
	"type": func(L *lua.LState) int {
		t := checkNode(L, 1).Type()
		if t == nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(t.ID()))
		return 1
	},
	"parent": func(L *lua.LState) int {
		p, _ := checkNode(L, 1).Parent()
		L.Push(newNode(L, p))
		return 1
	},
	"is_root": func(L *lua.LState) int {
		L.Push(lua.LBool(checkNode(L, 1).IsRoot()))
		return 1
	},
	"child_count": func(L *lua.LState) int {
		L.Push(lua.LNumber(checkNode(L, 1).ChildCount()))
		return 1
	},
	"child": func(L *lua.LState) int {
		L.Push(newNode(L, checkNode(L, 1).Child(L.CheckInt(2))))
		return 1
	},
}

var scanMethods = map[string]lua.LGFunction{
	"begin_offset": func(L *lua.LState) int {
		L.Push(lua.LNumber(checkScan(L).s.BeginOffset()))
		return 1
	},
	"begin_node": func(L *lua.LState) int {
		L.Push(newNode(L, checkScan(L).s.BeginNode()))
		return 1
	},
	"root": func(L *lua.LState) int {
		L.Push(newNode(L, checkScan(L).s.Root()))
		return 1
	},
	"len": func(L *lua.LState) int {
		L.Push(lua.LNumber(checkScan(L).s.Len()))
		return 1
	},
	"text": func(L *lua.LState) int {
		text, err := checkScan(L).s.Slice(L.CheckInt(2), L.CheckInt(3))
		if err != nil {
			raise(L, err)
		}
		L.Push(lua.LString(text))
		return 1
	},
	"byte": func(L *lua.LState) int {
		b, err := checkScan(L).s.ByteAt(L.CheckInt(2))
		if err != nil {
			raise(L, err)
		}
		L.Push(lua.LNumber(b))
		return 1
	},
	"add": func(L *lua.LState) int {
		sc := checkScan(L)
		name := L.CheckString(2)
		typ, ok := sc.sc.types[name]
		if !ok {
			L.ArgError(2, "undeclared node type "+name)
		}
		n, err := sc.s.Add(typ, checkNode(L, 3), L.CheckInt(4), L.CheckInt(5))
		if err != nil {
			raise(L, err)
		}
		L.Push(newNode(L, n))
		return 1
	},
	"expand": func(L *lua.LState) int {
		sc := checkScan(L)
		if err := sc.s.Expand(checkNode(L, 2), L.CheckInt(3), L.OptBool(4, false)); err != nil {
			raise(L, err)
		}
		return 0
	},
	"mark_dirty_end": func(L *lua.LState) int {
		if err := checkScan(L).s.MarkDirtyEnd(L.CheckInt(2)); err != nil {
			raise(L, err)
		}
		return 0
	},
}
