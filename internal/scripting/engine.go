package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/core/resource"
)

// APIVersion is exposed to scripts as the API_VERSION global.
const APIVersion = 1

// Engine wraps a single gopher-lua VM for script components.
// Single-goroutine access only: scripts run in the Sync phase.
type Engine struct {
	vm        *lua.LState
	log       *zap.Logger
	resources *resource.Manager
}

// NewEngine creates a Lua engine. Script sources are acquired through res.
func NewEngine(res *resource.Manager, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(APIVersion))

	e := &Engine{vm: vm, log: log, resources: res}
	vm.SetGlobal("log_info", vm.NewFunction(e.luaLogInfo))
	vm.SetGlobal("log_warn", vm.NewFunction(e.luaLogWarn))
	return e
}

func (e *Engine) Close() { e.vm.Close() }

// LoadDir runs every .lua file in dir, for shared helpers. A missing
// directory is not an error.
func (e *Engine) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk in the global environment.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// compile runs a script chunk and returns the table it yields. Scripts return
// a table with optional init(self) and update(self, dt) functions.
func (e *Engine) compile(name, src string) (*lua.LTable, error) {
	fn, err := e.vm.Load(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}); err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	ret := e.vm.Get(-1)
	e.vm.Pop(1)

	t, ok := ret.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("script %s returned %s, expected table", name, ret.Type())
	}
	return t, nil
}

// call invokes module[name](args...) if present.
func (e *Engine) call(module *lua.LTable, name string, args ...lua.LValue) error {
	fn := module.RawGetString(name)
	if fn == lua.LNil {
		return nil
	}
	return e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...)
}

func (e *Engine) luaLogInfo(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

func (e *Engine) luaLogWarn(L *lua.LState) int {
	e.log.Warn("lua", zap.String("msg", L.CheckString(1)))
	return 0
}
