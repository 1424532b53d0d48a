// Package engine runs the learning loop: on every tick it samples a batch of
// symbols and simulates each one concurrently.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"candle-learning-lab/internal/domain"
	"candle-learning-lab/internal/logging"
	"candle-learning-lab/internal/observability"
	"candle-learning-lab/internal/simulation"
	"candle-learning-lab/internal/universe"
)

// Defaults for a new Engine.
const (
	DefaultBatchSize     = 100
	DefaultCycleInterval = 2000 * time.Millisecond

	// failure logs are sampled at roughly one in failureLogRate
	failureLogRate = 100
)

// ErrInvalidConfig is returned for non-positive batch sizes or intervals.
var ErrInvalidConfig = errors.New("invalid engine config")

// Simulator runs one simulation for a symbol.
type Simulator interface {
	SimulateOne(ctx context.Context, pair string) (simulation.Outcome, error)
}

// Options for creating an Engine.
type Options struct {
	Simulator Simulator
	Universe  *universe.Universe
	Logger    zerolog.Logger

	BatchSize     int           // symbols per tick, default 100
	CycleInterval time.Duration // time between ticks, default 2s

	// MaxConcurrency caps simultaneous simulations per tick. 0 means one goroutine per symbol.
	MaxConcurrency int

	// Rand drives symbol sampling. Nil uses the global source.
	Rand *rand.Rand
}

// Stats is a read-only view of engine state.
type Stats struct {
	Running           bool          `json:"running"`
	UniverseSize      int           `json:"universeSize"`
	BatchSize         int           `json:"batchSize"`
	CycleInterval     time.Duration `json:"-"`
	CycleIntervalMs   int64         `json:"cycleInterval"`
	MaxConcurrency    int           `json:"maxConcurrency"`
	TicksStarted      int64         `json:"ticksStarted"`
	TicksCompleted    int64         `json:"ticksCompleted"`
	SimulationsOK     int64         `json:"simulationsOk"`
	SimulationsFailed int64         `json:"simulationsFailed"`
	LastTickAt        *time.Time    `json:"lastTickAt,omitempty"`
}

// Update carries optional configuration changes. Nil fields are left as-is.
type Update struct {
	BatchSize     *int
	CycleInterval *time.Duration
}

// TickReport summarizes one settled tick.
type TickReport struct {
	Dispatched int
	Succeeded  int
	Failed     int
	Duration   time.Duration
}

// Engine schedules learning ticks. Ticks run in their own goroutines and may
// overlap when a tick outlives the interval. Safe for concurrent use.
type Engine struct {
	sim      Simulator
	universe *universe.Universe
	logger   zerolog.Logger
	failLog  zerolog.Logger

	randMu sync.Mutex
	rng    *rand.Rand

	batchSize      atomic.Int64
	maxConcurrency int

	mu       sync.Mutex // guards the fields below
	interval time.Duration
	running  bool
	cancel   context.CancelFunc
	loopDone chan struct{}

	// ticks run on workCtx so Stop does not abort them; Shutdown may
	workCtx    context.Context
	workCancel context.CancelFunc
	inflight   sync.WaitGroup

	ticksStarted   atomic.Int64
	ticksCompleted atomic.Int64
	simsOK         atomic.Int64
	simsFailed     atomic.Int64
	lastTick       atomic.Pointer[time.Time]
}

// New creates a stopped Engine.
func New(opts Options) (*Engine, error) {
	if opts.Simulator == nil {
		return nil, fmt.Errorf("%w: simulator is required", ErrInvalidConfig)
	}
	if opts.Universe == nil {
		opts.Universe = universe.Default()
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.CycleInterval == 0 {
		opts.CycleInterval = DefaultCycleInterval
	}
	if err := validate(opts.BatchSize, opts.CycleInterval); err != nil {
		return nil, err
	}
	if opts.MaxConcurrency < 0 {
		return nil, fmt.Errorf("%w: max concurrency %d", ErrInvalidConfig, opts.MaxConcurrency)
	}

	logger := logging.Component(opts.Logger, "engine")
	workCtx, workCancel := context.WithCancel(context.Background())

	e := &Engine{
		sim:            opts.Simulator,
		universe:       opts.Universe,
		logger:         logger,
		failLog:        logging.Sampled(logger, failureLogRate),
		rng:            opts.Rand,
		maxConcurrency: opts.MaxConcurrency,
		interval:       opts.CycleInterval,
		workCtx:        workCtx,
		workCancel:     workCancel,
	}
	e.batchSize.Store(int64(opts.BatchSize))
	observability.SetEngineConfig(opts.BatchSize, opts.CycleInterval.Seconds())
	return e, nil
}

func validate(batchSize int, interval time.Duration) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size %d", ErrInvalidConfig, batchSize)
	}
	if interval <= 0 {
		return fmt.Errorf("%w: cycle interval %s", ErrInvalidConfig, interval)
	}
	return nil
}

// Start begins ticking. Returns false if the engine was already running.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return false
	}
	e.running = true
	e.arm()
	observability.SetEngineRunning(true)

	e.logger.Info().
		Int("universe", e.universe.Size()).
		Int64("batch_size", e.batchSize.Load()).
		Dur("interval", e.interval).
		Msg("learning engine started")
	return true
}

// Stop halts ticking and returns once the scheduling loop has exited, so no
// new tick can begin afterwards. Ticks already dispatched keep running.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}
	e.disarm()
	e.running = false
	observability.SetEngineRunning(false)
	e.logger.Info().Msg("learning engine stopped")
}

// Shutdown stops the engine and waits for in-flight ticks. If ctx ends first
// the remaining simulations are cancelled and ctx.Err() is returned.
// The engine must not be restarted afterwards.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.Stop()

	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		e.workCancel()
		<-done
		return ctx.Err()
	}
}

// Running reports whether the engine is ticking.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Stats returns a snapshot of engine state and counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	running, interval := e.running, e.interval
	e.mu.Unlock()

	return Stats{
		Running:           running,
		UniverseSize:      e.universe.Size(),
		BatchSize:         int(e.batchSize.Load()),
		CycleInterval:     interval,
		CycleIntervalMs:   interval.Milliseconds(),
		MaxConcurrency:    e.maxConcurrency,
		TicksStarted:      e.ticksStarted.Load(),
		TicksCompleted:    e.ticksCompleted.Load(),
		SimulationsOK:     e.simsOK.Load(),
		SimulationsFailed: e.simsFailed.Load(),
		LastTickAt:        e.lastTick.Load(),
	}
}

// UpdateConfig applies u. A new batch size takes effect on the next tick.
// A new interval while running cancels the current timer and re-arms it.
func (e *Engine) UpdateConfig(u Update) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	batch := int(e.batchSize.Load())
	interval := e.interval
	if u.BatchSize != nil {
		batch = *u.BatchSize
	}
	if u.CycleInterval != nil {
		interval = *u.CycleInterval
	}
	if err := validate(batch, interval); err != nil {
		return err
	}

	e.batchSize.Store(int64(batch))
	if interval != e.interval {
		e.interval = interval
		if e.running {
			e.disarm()
			e.arm()
		}
	}
	observability.SetEngineConfig(batch, interval.Seconds())

	e.logger.Info().Int("batch_size", batch).Dur("interval", interval).Msg("engine config updated")
	return nil
}

// arm starts the scheduling loop. Caller holds e.mu.
func (e *Engine) arm() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.loopDone = done
	go e.loop(ctx, e.interval, done)
}

// disarm cancels the scheduling loop and waits for it to exit. Caller holds e.mu.
func (e *Engine) disarm() {
	e.cancel()
	<-e.loopDone
	e.cancel = nil
	e.loopDone = nil
}

func (e *Engine) loop(ctx context.Context, interval time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// the loop exits only via ctx, so Add never races with Shutdown's Wait
			e.inflight.Add(1)
			go func() {
				defer e.inflight.Done()
				e.RunTick(e.workCtx)
			}()
		}
	}
}

// RunTick samples one batch and simulates every symbol concurrently,
// returning after all simulations have settled. Individual failures are
// counted and sample-logged, never propagated.
func (e *Engine) RunTick(ctx context.Context) TickReport {
	start := time.Now()
	e.ticksStarted.Add(1)
	observability.RecordTickStarted()

	pairs := e.sample(int(e.batchSize.Load()))

	var ok, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	if e.maxConcurrency > 0 {
		g.SetLimit(e.maxConcurrency)
	}
	for _, pair := range pairs {
		g.Go(func() error {
			out, err := e.sim.SimulateOne(gctx, pair)
			if err != nil {
				failed.Add(1)
				e.simsFailed.Add(1)
				observability.RecordSimulationFailure()
				e.failLog.Warn().Err(err).Str("pair", pair).Msg("simulation failed")
				return nil
			}
			ok.Add(1)
			e.simsOK.Add(1)
			observability.RecordSimulation(domain.ResultFromWin(out.IsWin).String())
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	now := time.Now().UTC()
	e.lastTick.Store(&now)
	e.ticksCompleted.Add(1)
	observability.RecordTickCompleted(elapsed.Seconds())

	report := TickReport{
		Dispatched: len(pairs),
		Succeeded:  int(ok.Load()),
		Failed:     int(failed.Load()),
		Duration:   elapsed,
	}
	e.logger.Debug().
		Int("dispatched", report.Dispatched).
		Int("failed", report.Failed).
		Dur("duration", elapsed).
		Msg("tick settled")
	return report
}

func (e *Engine) sample(n int) []string {
	if e.rng == nil {
		return e.universe.Sample(n, nil)
	}
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.universe.Sample(n, e.rng)
}
