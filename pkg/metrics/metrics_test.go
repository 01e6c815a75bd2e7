package metrics

import "testing"

func TestDisabledByDefaultWithinTest(t *testing.T) {
	mu.Lock()
	registry = nil
	mu.Unlock()

	if IsEnabled() {
		t.Fatal("expected metrics to be disabled before InitRegistry")
	}
	if NewRecorder() != nil {
		t.Fatal("expected a nil recorder while disabled")
	}
}

func TestInitRegistryEnablesMetrics(t *testing.T) {
	reg := InitRegistry()
	defer func() {
		mu.Lock()
		registry = nil
		mu.Unlock()
	}()

	if reg == nil {
		t.Fatal("expected a non-nil registry")
	}
	if !IsEnabled() {
		t.Fatal("expected metrics to be enabled after InitRegistry")
	}
	if GetRegistry() != reg {
		t.Fatal("expected GetRegistry to return the active registry")
	}
}

func TestNewRecorderWithoutConstructorReturnsNil(t *testing.T) {
	InitRegistry()
	defer func() {
		mu.Lock()
		registry = nil
		mu.Unlock()
	}()

	saved := newPrometheusRecorder
	newPrometheusRecorder = nil
	defer func() { newPrometheusRecorder = saved }()

	if NewRecorder() != nil {
		t.Fatal("expected a nil recorder when no constructor is registered")
	}
}
