package scripting

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/l1jgo/worldcore/internal/core/ecs"
	"github.com/l1jgo/worldcore/internal/core/resource"
	"github.com/l1jgo/worldcore/internal/core/world"
)

type memLoader map[string]string

func (m memLoader) Load(_ context.Context, key string) ([]byte, error) {
	src, ok := m[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(src), nil
}

const walker = `
local m = {}
function m.init(self)
	log_info("hello from " .. self:name())
end
function m.update(self, dt)
	local x, y, z = self:position()
	self:set_position(x + 10 * dt, y, z)
end
return m
`

const suicidal = `
return { update = function(self) self:delete() end }
`

func setup(t *testing.T, sources memLoader) (*world.World, *Engine) {
	t.Helper()
	res := resource.NewManager(sources, nil)
	t.Cleanup(res.Close)
	e := NewEngine(res, nil)
	t.Cleanup(e.Close)

	reg := world.NewRegistry()
	if _, err := Register(reg, e, 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	return world.New("test", reg, nil, nil), e
}

func attachScript(t *testing.T, w *world.World, name, source string) (ecs.ObjectHandle, *world.GameObject, *Script) {
	t.Helper()
	h, o := w.CreateObject(world.ObjectDesc{Name: name})
	_, s, err := world.CreateComponent[Script](w)
	if err != nil {
		t.Fatal(err)
	}
	s.Source = source
	if err := o.AttachComponent(s); err != nil {
		t.Fatal(err)
	}
	return h, o, s
}

// settle runs the first frame, which starts the source load, and waits for it.
func settle(t *testing.T, w *world.World, s *Script) {
	t.Helper()
	if err := w.Update(); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _ = s.src.Wait(ctx)
}

func TestScriptMovesOwner(t *testing.T) {
	w, _ := setup(t, memLoader{"walker.lua": walker})
	_, o, s := attachScript(t, w, "walker", "walker.lua")
	settle(t, w, s)

	start := o.Transform().Position.X
	for i := 0; i < 3; i++ {
		if err := w.Update(); err != nil {
			t.Fatal(err)
		}
	}
	if !s.Loaded() {
		t.Fatal("expected script loaded")
	}
	got := o.Transform().Position.X - start
	if got < 2.999 || got > 3.001 {
		t.Errorf("expected 3 units moved in 3 frames, got %f", got)
	}
}

func TestScriptDeletesOwner(t *testing.T) {
	w, _ := setup(t, memLoader{"die.lua": suicidal})
	h, _, s := attachScript(t, w, "mayfly", "die.lua")
	settle(t, w, s)

	if err := w.Update(); err != nil {
		t.Fatal(err)
	}
	if _, ok := w.TryGetObject(h); ok {
		t.Error("expected object deleted by its script")
	}
}

func TestBrokenScriptsAreDisabled(t *testing.T) {
	w, _ := setup(t, memLoader{
		"syntax.lua": "return {",
		"number.lua": "return 42",
		"boom.lua":   `return { update = function() error("boom") end }`,
	})
	var scripts []*Script
	for _, src := range []string{"syntax.lua", "number.lua", "boom.lua", "missing.lua"} {
		_, _, s := attachScript(t, w, src, src)
		scripts = append(scripts, s)
	}
	for _, s := range scripts {
		settle(t, w, s)
	}
	for i := 0; i < 2; i++ {
		if err := w.Update(); err != nil {
			t.Fatalf("expected script failures to stay inside the component, got %v", err)
		}
	}
	for _, s := range scripts {
		if !s.failed {
			t.Errorf("expected %s disabled", s.Source)
		}
	}
}

func TestEngineGlobals(t *testing.T) {
	e := NewEngine(nil, nil)
	defer e.Close()
	if err := e.DoString(`assert(API_VERSION == 1); log_info("ok")`); err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := os.WriteFile(dir+"/lib.lua", []byte("function double(x) return x * 2 end"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.LoadDir(dir); err != nil {
		t.Fatal(err)
	}
	if err := e.DoString(`assert(double(21) == 42)`); err != nil {
		t.Error(err)
	}
	if err := e.LoadDir(dir + "/missing"); err != nil {
		t.Errorf("expected missing dir ignored, got %v", err)
	}
}
