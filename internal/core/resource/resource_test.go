package resource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

// gateLoader blocks every load until release is closed.
type gateLoader struct {
	release chan struct{}
	data    map[string]string
}

func (g *gateLoader) Load(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	v, ok := g.data[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(v), nil
}

func TestHandleNotReadyUntilLoaded(t *testing.T) {
	g := &gateLoader{release: make(chan struct{}), data: map[string]string{"a": "alpha"}}
	m := NewManager(g, nil)
	defer m.Close()

	h := Acquire(m, "a", Text)
	if _, err := h.Get(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	close(g.release)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := h.Wait(ctx)
	if err != nil || v != "alpha" {
		t.Fatalf("expected alpha, got %q (%v)", v, err)
	}
	if v, err := h.Get(); err != nil || v != "alpha" {
		t.Errorf("expected Get after load to succeed, got %q (%v)", v, err)
	}
}

func TestHandlesShareAndEvict(t *testing.T) {
	g := &gateLoader{release: make(chan struct{}), data: map[string]string{"a": "alpha"}}
	close(g.release)
	m := NewManager(g, nil)
	defer m.Close()

	h1 := Acquire(m, "a", Text)
	h2 := Acquire(m, "a", Text)
	raw := Acquire(m, "a", Bytes)
	if m.Len() != 2 {
		t.Fatalf("expected one entry per type, got %d", m.Len())
	}

	h1.Release()
	h1.Release()
	if _, err := h1.Get(); !errors.Is(err, ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("expected entry kept while h2 holds it, got %d", m.Len())
	}
	h2.Release()
	raw.Release()
	if m.Len() != 0 {
		t.Errorf("expected all entries evicted, got %d", m.Len())
	}
}

func TestDecodeErrorIsSticky(t *testing.T) {
	g := &gateLoader{release: make(chan struct{}), data: map[string]string{"n": "not a number"}}
	close(g.release)
	m := NewManager(g, nil)
	defer m.Close()

	h := Acquire(m, "n", func(_ string, raw []byte) (int, error) {
		return strconv.Atoi(string(raw))
	})
	if _, err := h.Wait(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := h.Get(); err == nil || errors.Is(err, ErrNotReady) {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestCloseCancelsLoads(t *testing.T) {
	g := &gateLoader{release: make(chan struct{})}
	m := NewManager(g, nil)
	h := Acquire(m, "slow", Text)
	m.Close()

	if _, err := h.Get(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	late := Acquire(m, "late", Text)
	if _, err := late.Get(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "scripts"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scripts", "a.lua"), []byte("return 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := FileLoader{Root: dir}

	raw, err := l.Load(context.Background(), "scripts/a.lua")
	if err != nil || string(raw) != "return 1" {
		t.Fatalf("expected file contents, got %q (%v)", raw, err)
	}
	if _, err := l.Load(context.Background(), "../etc/passwd"); err == nil {
		t.Error("expected escaping key rejected")
	}
	if _, err := l.Load(context.Background(), "missing.lua"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Load(ctx, "scripts/a.lua"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
