package lsm

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestEngineInvariants uses property-based testing to verify invariants
// that must hold for any sequence of engine operations.
func TestEngineInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("put then get returns the written value", prop.ForAll(
		func(key, value string) bool {
			if key == "" {
				return true
			}
			e := newPropertyTestEngine(t)
			defer e.Close()

			if _, err := e.Put([]byte(key), []byte(value), 0); err != nil {
				return true
			}

			entry, ok, err := e.Get([]byte(key), 0)
			if err != nil || !ok {
				return false
			}
			return string(entry.Value) == value
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("remove makes a key absent", prop.ForAll(
		func(key, value string) bool {
			if key == "" {
				return true
			}
			e := newPropertyTestEngine(t)
			defer e.Close()

			if _, err := e.Put([]byte(key), []byte(value), 0); err != nil {
				return true
			}
			if _, err := e.Remove([]byte(key), 0); err != nil {
				return false
			}

			_, ok, err := e.Get([]byte(key), 0)
			return err == nil && !ok
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("newest put wins on repeated writes to the same key", prop.ForAll(
		func(key string, values []string) bool {
			if key == "" || len(values) == 0 {
				return true
			}
			e := newPropertyTestEngine(t)
			defer e.Close()

			for _, v := range values {
				if _, err := e.Put([]byte(key), []byte(v), 0); err != nil {
					return true
				}
			}

			entry, ok, err := e.Get([]byte(key), 0)
			if err != nil || !ok {
				return false
			}
			return string(entry.Value) == values[len(values)-1]
		},
		gen.AlphaString(),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("a key absent from the engine is reported as not found", prop.ForAll(
		func(key string) bool {
			if key == "" {
				return true
			}
			e := newPropertyTestEngine(t)
			defer e.Close()

			_, ok, err := e.Get([]byte(key), 0)
			return err == nil && !ok
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func newPropertyTestEngine(t *testing.T) *Engine {
	dir := t.TempDir()
	opts := DefaultOptions(dir)

	e, err := Open(opts, nil, nil)
	if err != nil {
		t.Skipf("failed to open engine: %v", err)
	}
	return e
}
