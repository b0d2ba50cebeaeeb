package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/skillsys/internal/effect"
	"github.com/l1jgo/skillsys/internal/tags"
)

// Engine wraps a single gopher-lua VM hosting effect extensions written in
// Lua. Single-goroutine access only (simulation loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory. Scripts register capabilities by filling the global tables
// `extensions` and `stacking`.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState()

	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("extensions", vm.NewTable())
	vm.SetGlobal("stacking", vm.NewTable())

	e := &Engine{vm: vm, log: log}

	// shared helpers first, then capability scripts
	for _, sub := range []string{"lib", "extensions", "stacking"} {
		if err := e.loadDir(filepath.Join(scriptsDir, sub)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
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

// Register binds every capability the scripts declared into reg and
// returns how many were registered.
func (e *Engine) Register(reg *effect.Registry) (int, error) {
	n := 0
	exts, err := e.globalTable("extensions")
	if err != nil {
		return 0, err
	}
	for _, id := range sortedKeys(exts) {
		def, ok := exts.RawGetString(id).(*lua.LTable)
		if !ok {
			return n, fmt.Errorf("extension %q: want table, got %s", id, exts.RawGetString(id).Type())
		}
		ext := &luaExtension{
			engine: e,
			id:     id,
			pre:    lFunc(def, "pre_evaluate"),
			post:   lFunc(def, "post_evaluate"),
		}
		if ext.pre == nil && ext.post == nil {
			return n, fmt.Errorf("extension %q: neither pre_evaluate nor post_evaluate is a function", id)
		}
		if err := reg.RegisterExtension(ext); err != nil {
			return n, err
		}
		n++
	}

	stacking, err := e.globalTable("stacking")
	if err != nil {
		return n, err
	}
	for _, id := range sortedKeys(stacking) {
		fn, ok := stacking.RawGetString(id).(*lua.LFunction)
		if !ok {
			return n, fmt.Errorf("stacking %q: want function, got %s", id, stacking.RawGetString(id).Type())
		}
		if err := reg.RegisterStacking(&luaStacking{engine: e, id: id, fn: fn}); err != nil {
			return n, err
		}
		n++
	}

	e.log.Info("lua capabilities registered", zap.Int("count", n))
	return n, nil
}

func (e *Engine) globalTable(name string) (*lua.LTable, error) {
	t, ok := e.vm.GetGlobal(name).(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("lua global %s is not a table", name)
	}
	return t, nil
}

// luaExtension runs Lua hooks during aggregator evaluation. Hooks receive a
// context table and edit its value and tags in place.
type luaExtension struct {
	engine    *Engine
	id        string
	pre, post *lua.LFunction
}

func (x *luaExtension) ID() string { return x.id }

func (x *luaExtension) PreEvaluate(d *effect.ModCallbackData) {
	x.engine.runHook(x.id, "pre_evaluate", x.pre, d)
}

func (x *luaExtension) PostEvaluate(d *effect.ModCallbackData) {
	x.engine.runHook(x.id, "post_evaluate", x.post, d)
}

func (e *Engine) runHook(id, hook string, fn *lua.LFunction, d *effect.ModCallbackData) {
	if fn == nil {
		return
	}
	ctx := e.vm.NewTable()
	ctx.RawSetString("value", lua.LNumber(d.Value))
	ctx.RawSetString("level", lua.LNumber(d.Level))
	ctx.RawSetString("magnitude", lua.LNumber(d.Magnitude))
	ctx.RawSetString("handle", lua.LNumber(d.Handle))
	tagList := e.vm.NewTable()
	for _, t := range d.Tags.Slice() {
		tagList.Append(lua.LString(t))
	}
	ctx.RawSetString("tags", tagList)

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, ctx); err != nil {
		e.log.Error("lua extension error",
			zap.String("extension", id),
			zap.String("hook", hook),
			zap.Error(err))
		return
	}

	if v, ok := ctx.RawGetString("value").(lua.LNumber); ok {
		d.Value = float64(v)
	}
	if tl, ok := ctx.RawGetString("tags").(*lua.LTable); ok {
		d.Tags = lTags(tl)
	}
}

// luaStacking delegates stacking winner selection to a Lua function that
// receives the candidate list and returns a handle.
type luaStacking struct {
	engine *Engine
	id     string
	fn     *lua.LFunction
}

func (s *luaStacking) ID() string { return s.id }

func (s *luaStacking) SelectStackingWinner(cs []effect.StackingCandidate) effect.Handle {
	e := s.engine
	list := e.vm.NewTable()
	for _, c := range cs {
		t := e.vm.NewTable()
		t.RawSetString("handle", lua.LNumber(c.Handle))
		t.RawSetString("effect", lua.LString(c.Effect))
		t.RawSetString("magnitude", lua.LNumber(c.Magnitude))
		t.RawSetString("start_time", lua.LNumber(c.StartWorldTime))
		list.Append(t)
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      s.fn,
		NRet:    1,
		Protect: true,
	}, list); err != nil {
		e.log.Error("lua stacking error", zap.String("stacking", s.id), zap.Error(err))
		return effect.InvalidHandle
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return effect.Handle(lua.LVAsNumber(result))
}

// --- Lua helpers ---

// lFunc reads a function field from a Lua table, or nil.
func lFunc(t *lua.LTable, key string) *lua.LFunction {
	fn, _ := t.RawGetString(key).(*lua.LFunction)
	return fn
}

// lTags reads an array of tag names.
func lTags(t *lua.LTable) tags.Set {
	var names []string
	t.ForEach(func(_, v lua.LValue) {
		if s, ok := v.(lua.LString); ok {
			names = append(names, string(s))
		}
	})
	return tags.NewSet(names...)
}

// sortedKeys lists the string keys of t so registration order is stable.
func sortedKeys(t *lua.LTable) []string {
	var keys []string
	t.ForEach(func(k, _ lua.LValue) {
		if s, ok := k.(lua.LString); ok {
			keys = append(keys, string(s))
		}
	})
	sort.Strings(keys)
	return keys
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
