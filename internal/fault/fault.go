// Package fault injects the failures and latency a real network and server
// would produce, so that callers exercise their rollback paths.
package fault

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"talentflow/internal/config"
)

// Op selects which failure rate applies.
type Op string

const (
	OpWrite   Op = "write"
	OpReorder Op = "reorder"
)

// ErrSimulated marks every injected failure.
var ErrSimulated = errors.New("simulated failure")

// Error is an injected failure for one action.
type Error struct {
	Op     Op
	Action string
}

func (e *Error) Error() string {
	if e.Op == OpReorder {
		return fmt.Sprintf("simulated reorder conflict during %s", e.Action)
	}
	return fmt.Sprintf("simulated network error during %s", e.Action)
}

func (e *Error) Unwrap() error { return ErrSimulated }

// Injector draws failures and delays from a shared random source.
// A nil *Injector never fails and never delays.
type Injector struct {
	mu         sync.Mutex
	rng        *rand.Rand
	rates      map[Op]float64
	minLatency time.Duration
	maxLatency time.Duration
}

// New builds an Injector from configuration. A disabled simulation yields nil.
func New(cfg config.SimulationConfig, seed int64) *Injector {
	if !cfg.Enabled {
		return nil
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Injector{
		rng: rand.New(rand.NewSource(seed)),
		rates: map[Op]float64{
			OpWrite:   cfg.WriteFailureRate,
			OpReorder: cfg.ReorderFailureRate,
		},
		minLatency: cfg.MinLatency,
		maxLatency: cfg.MaxLatency,
	}
}

// Inject returns an *Error wrapping ErrSimulated with the configured probability for op.
func (i *Injector) Inject(op Op, action string) error {
	if i == nil {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	rate := i.rates[op]
	if rate <= 0 {
		return nil
	}
	if i.rng.Float64() < rate {
		return &Error{Op: op, Action: action}
	}
	return nil
}

// Delay returns a uniform duration within [min, max].
func (i *Injector) Delay() time.Duration {
	if i == nil || i.maxLatency <= 0 {
		return 0
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	span := int64(i.maxLatency - i.minLatency)
	if span <= 0 {
		return i.minLatency
	}
	return i.minLatency + time.Duration(i.rng.Int63n(span+1))
}

// Always fails every op in ops. Tests use it to force the failure path.
type Always []Op

// Inject fails when op is listed.
func (a Always) Inject(op Op, action string) error {
	for _, o := range a {
		if o == op {
			return &Error{Op: op, Action: action}
		}
	}
	return nil
}
