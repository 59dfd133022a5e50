package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var errWire = errors.New("wire unplugged")

// mockDriver records every call as a short string.
type mockDriver struct {
	mu          sync.Mutex
	calls       []string
	reading     Reading
	reserve     *Reading
	connectErrs int    // Connect fails this many times before succeeding
	failOn      string // call name that fails once
	connects    int
	closes      int
}

func (m *mockDriver) record(s string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, s)
	if m.failOn != "" && s == m.failOn {
		m.failOn = ""
		return errWire
	}
	return nil
}

func (m *mockDriver) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockDriver) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *mockDriver) Name() string { return "mock" }

func (m *mockDriver) Connect(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	if m.connectErrs > 0 {
		m.connectErrs--
		return errWire
	}
	return nil
}

func (m *mockDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

func (m *mockDriver) Reserve(context.Context) (*Reading, error) {
	return m.reserve, m.record("reserve")
}

func (m *mockDriver) Release(context.Context) error { return m.record("release") }

func (m *mockDriver) SetLevelA(_ context.Context, v int) error { return m.record(fmt.Sprintf("a=%d", v)) }

func (m *mockDriver) SetLevelB(_ context.Context, v int) error { return m.record(fmt.Sprintf("b=%d", v)) }

func (m *mockDriver) SetMode(_ context.Context, mode string) error { return m.record("mode=" + mode) }

func (m *mockDriver) SetMA(_ context.Context, v int) error { return m.record(fmt.Sprintf("ma=%d", v)) }

func (m *mockDriver) ReadLevels(context.Context) (Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reading, nil
}

func (m *mockDriver) MARange() (int, int) { return 0, 255 }

// mockCues records played cue names.
type mockCues struct {
	mu    sync.Mutex
	names []string
}

func (c *mockCues) Play(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = append(c.names, name)
}

func (c *mockCues) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.names...)
}

func (c *mockCues) Count(name string) int {
	n := 0
	for _, got := range c.Names() {
		if got == name {
			n++
		}
	}
	return n
}
