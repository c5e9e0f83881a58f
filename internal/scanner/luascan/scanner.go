package luascan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/partscan/internal/logging"
	"github.com/dshills/partscan/internal/partition"
)

// DefaultTimeout bounds every call into a script.
const DefaultTimeout = 5 * time.Second

// Scanner is a partition.Scanner backed by a Lua script.
//
// gopher-lua's LState is not goroutine-safe; calls into the script are
// serialized, so one Scanner may serve several partitioners.
type Scanner struct {
	mu sync.Mutex
	L  *lua.LState

	name    string
	root    partition.BasicType
	types   map[string]partition.BasicType
	restart *lua.LFunction
	execute *lua.LFunction

	timeout time.Duration
	log     logrus.FieldLogger
	closed  bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithTimeout sets the time limit of each script call.
func WithTimeout(d time.Duration) Option {
	return func(sc *Scanner) {
		if d > 0 {
			sc.timeout = d
		}
	}
}

// WithLogger sets the logger receiving the script's print output at debug
// level.
func WithLogger(log logrus.FieldLogger) Option {
	return func(sc *Scanner) {
		sc.log = log
	}
}

// Load creates a Scanner from a script file.
func Load(path string, opts ...Option) (*Scanner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	return New(filepath.Base(path), string(data), opts...)
}

// New runs source and creates a Scanner from its declarations. name is
// used in error messages.
func New(name, source string, opts ...Option) (*Scanner, error) {
	sc := &Scanner{
		name:    name,
		types:   make(map[string]partition.BasicType),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(sc)
	}
	if sc.log == nil {
		sc.log = logging.Discard()
	}
	sc.log = sc.log.WithField("script", name)

	sc.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(sc.L)
	sc.installPrint()
	registerTypes(sc.L)

	chunk, err := sc.L.Load(strings.NewReader(source), name)
	if err != nil {
		sc.L.Close()
		return nil, &ScriptError{Script: name, Err: err}
	}
	if _, err := sc.call("", chunk); err != nil {
		sc.L.Close()
		return nil, err
	}
	if err := sc.declare(); err != nil {
		sc.L.Close()
		return nil, err
	}
	return sc, nil
}

// declare reads the globals the script must define.
func (sc *Scanner) declare() error {
	L := sc.L
	tbl, ok := L.GetGlobal("types").(*lua.LTable)
	if !ok {
		return sc.invalid("types must be a table")
	}
	var err error
	tbl.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		name, ok := k.(lua.LString)
		if !ok || name == "" {
			err = sc.invalid("type names must be non-empty strings")
			return
		}
		t := partition.BasicType{Name: string(name)}
		switch v := v.(type) {
		case lua.LString:
			t.Content = string(v)
		case *lua.LTable:
			t.Content = lua.LVAsString(v.RawGetString("content"))
			t.OpenAtBegin = lua.LVAsBool(v.RawGetString("open_begin"))
			t.OpenAtEnd = lua.LVAsBool(v.RawGetString("open_end"))
		default:
			err = sc.invalid(fmt.Sprintf("type %s: want string or table, got %s", name, v.Type()))
			return
		}
		sc.types[t.Name] = t
	})
	if err != nil {
		return err
	}

	root, ok := sc.types[lua.LVAsString(L.GetGlobal("root"))]
	if !ok {
		return sc.invalid("root must name a declared type")
	}
	sc.root = root

	if sc.execute, ok = L.GetGlobal("execute").(*lua.LFunction); !ok {
		return sc.invalid("execute must be a function")
	}
	switch fn := L.GetGlobal("restart").(type) {
	case *lua.LFunction:
		sc.restart = fn
	case *lua.LNilType:
	default:
		return sc.invalid("restart must be a function")
	}
	return nil
}

func (sc *Scanner) invalid(msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidScript, sc.name, msg)
}

// call runs fn under the timeout and returns its first result.
func (sc *Scanner) call(fname string, fn *lua.LFunction, args ...lua.LValue) (ret lua.LValue, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), sc.timeout)
	defer cancel()
	sc.L.SetContext(ctx)
	defer sc.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = &ScriptError{Script: sc.name, Func: fname, Err: fmt.Errorf("lua panic: %v", r)}
		}
	}()

	top := sc.L.GetTop()
	if err := sc.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		sc.L.SetTop(top)
		if ctx.Err() != nil {
			err = ErrTimeout
		}
		return lua.LNil, &ScriptError{Script: sc.name, Func: fname, Err: err}
	}
	ret = sc.L.Get(-1)
	sc.L.SetTop(top)
	return ret, nil
}

// Name returns the script name.
func (sc *Scanner) Name() string {
	return sc.name
}

// RootType implements partition.Scanner.
func (sc *Scanner) RootType() partition.NodeType {
	return sc.root
}

// RestartOffset implements partition.Scanner. Without a restart function
// the candidate is used.
func (sc *Scanner) RestartOffset(node partition.Node, _ partition.TextBuffer, candidate int) (int, error) {
	if sc.restart == nil {
		return candidate, nil
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.closed {
		return 0, ErrClosed
	}
	ret, err := sc.call("restart", sc.restart, newNode(sc.L, node), lua.LNumber(candidate))
	if err != nil {
		return 0, err
	}
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, &ScriptError{
			Script: sc.name,
			Func:   "restart",
			Err:    fmt.Errorf("returned %s, want number", ret.Type()),
		}
	}
	return int(n), nil
}

// Execute implements partition.Scanner.
func (sc *Scanner) Execute(s *partition.Session) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.closed {
		return ErrClosed
	}
	_, err := sc.call("execute", sc.execute, newScan(sc.L, &scan{sc: sc, s: s}))
	switch {
	case s.Err() != nil:
		return s.Err()
	case s.Broken():
		return partition.ErrBreak
	}
	return err
}

// Close releases the Lua state. Later scans fail with ErrClosed.
func (sc *Scanner) Close() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.closed {
		return nil
	}
	sc.L.Close()
	sc.closed = true
	return nil
}

// installPrint routes print to the logger.
func (sc *Scanner) installPrint() {
	sc.L.SetGlobal("print", sc.L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		sc.log.Debug(strings.Join(parts, "\t"))
		return 0
	}))
}

// openSafeLibraries opens the base, table, string and math libraries and
// removes the functions that load code.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}
