// Package orchestrate coordinates the recognition engines. It owns the two
// execution strategies: sequential fallback, which stops at the first
// acceptable result, and fusion, which runs every engine and hands the full
// result set to the fusion stage.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docufuse/docufuse/internal/engine"
)

// Mode selects the execution strategy.
type Mode int

const (
	// ModeSequential tries engines in priority order and accepts the first
	// result that clears the confidence threshold.
	ModeSequential Mode = iota
	// ModeFusion runs all engines concurrently and returns every result.
	ModeFusion
)

func (m Mode) String() string {
	switch m {
	case ModeSequential:
		return "sequential"
	case ModeFusion:
		return "fusion"
	default:
		return "unknown"
	}
}

// ParseMode converts a config string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "sequential":
		return ModeSequential, nil
	case "fusion", "":
		return ModeFusion, nil
	default:
		return ModeFusion, fmt.Errorf("unknown orchestration mode %q", s)
	}
}

// Outcome summarizes how a run went across all invoked engines.
type Outcome int

const (
	OutcomeAll      Outcome = iota // every invoked engine succeeded
	OutcomePartial                 // some engines succeeded
	OutcomeNone                    // every invoked engine failed
	OutcomeCanceled                // the caller's context ended the run
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAll:
		return "all"
	case OutcomePartial:
		return "partial"
	case OutcomeNone:
		return "none"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Config controls orchestration.
type Config struct {
	Mode Mode
	// ConfidenceThreshold is the sequential acceptance bar. The last engine
	// in the chain is accepted unconditionally.
	ConfidenceThreshold float64
	// PerEngineTimeout bounds a single engine invocation. Zero disables it.
	PerEngineTimeout time.Duration
	// OverallTimeout bounds the whole run. Zero disables it.
	OverallTimeout time.Duration
	Logger         *slog.Logger
}

// DefaultConfig returns the orchestration defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                ModeFusion,
		ConfidenceThreshold: 0.8,
		PerEngineTimeout:    60 * time.Second,
	}
}

// Validate checks config consistency.
func (c Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold %.2f outside [0,1]", c.ConfidenceThreshold)
	}
	return nil
}

// RunResult is the outcome of one orchestration run. Results appear in
// engine priority order; in sequential mode only the engines actually
// invoked are present.
type RunResult struct {
	Results []engine.Result
	Outcome Outcome
}

// Orchestrator drives a fixed, priority-ordered set of engines.
type Orchestrator struct {
	cfg     Config
	engines []engine.Engine
	log     *slog.Logger
}

// New builds an orchestrator over the given engines, highest priority first.
func New(cfg Config, engines ...engine.Engine) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(engines) == 0 {
		return nil, errors.New("at least one engine required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{cfg: cfg, engines: engines, log: log}, nil
}

// Engines returns the engines in priority order.
func (o *Orchestrator) Engines() []engine.Engine { return o.engines }

// Run executes the configured strategy.
func (o *Orchestrator) Run(ctx context.Context, in engine.Input) RunResult {
	if o.cfg.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.OverallTimeout)
		defer cancel()
	}

	if o.cfg.Mode == ModeSequential {
		return o.runSequential(ctx, in)
	}
	return o.runFusion(ctx, in)
}

// runSequential walks the priority chain and stops at the first result that
// clears the threshold. Later engines are never invoked after acceptance.
func (o *Orchestrator) runSequential(ctx context.Context, in engine.Input) RunResult {
	results := make([]engine.Result, 0, len(o.engines))
	for i, eng := range o.engines {
		res := o.invoke(ctx, eng, in)
		results = append(results, res)

		if res.OK() {
			last := i == len(o.engines)-1
			if res.Confidence >= o.cfg.ConfidenceThreshold || last {
				o.log.Debug("sequential run accepted result",
					"engine", res.EngineID,
					"confidence", res.Confidence,
					"attempts", i+1)
				break
			}
			o.log.Debug("result below threshold, falling back",
				"engine", res.EngineID,
				"confidence", res.Confidence)
			continue
		}

		o.log.Warn("engine failed, falling back",
			"engine", eng.ID(),
			"kind", res.Err.Kind.String())
		if res.Err.Kind == engine.FailureCanceled {
			break
		}
	}
	return RunResult{Results: results, Outcome: outcomeOf(ctx, results)}
}

// runFusion fans out to every engine and waits for the full set. Failures
// stay in the result slice as data; fusion decides what to do with them.
func (o *Orchestrator) runFusion(ctx context.Context, in engine.Input) RunResult {
	results := make([]engine.Result, len(o.engines))
	var wg sync.WaitGroup
	for i := range o.engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = o.invoke(ctx, o.engines[i], in)
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		if !res.OK() {
			o.log.Warn("engine failed during fusion run",
				"engine", res.EngineID,
				"kind", res.Err.Kind.String())
		}
	}
	return RunResult{Results: results, Outcome: outcomeOf(ctx, results)}
}

// invoke runs one engine under the per-engine deadline. The engine runs in
// its own goroutine so a hung provider cannot stall the run; its result is
// dropped once the deadline classification has been made.
func (o *Orchestrator) invoke(ctx context.Context, eng engine.Engine, in engine.Input) engine.Result {
	if err := ctx.Err(); err != nil {
		return engine.Failure(eng.ID(), classifyCtxErr(err), err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if o.cfg.PerEngineTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.PerEngineTimeout)
		defer cancel()
	}

	ch := make(chan engine.Result, 1)
	go func() {
		ch <- eng.Recognize(runCtx, in)
	}()

	select {
	case res := <-ch:
		return res
	case <-runCtx.Done():
		if err := ctx.Err(); err != nil {
			return engine.Failure(eng.ID(), classifyCtxErr(err), err)
		}
		return engine.Failure(eng.ID(), engine.FailureTimeout, runCtx.Err())
	}
}

// classifyCtxErr keeps caller cancellation distinct from deadline expiry.
// The shared deadline surfaces on the parent context too, so a non-nil
// parent error alone does not imply cancellation.
func classifyCtxErr(err error) engine.FailureKind {
	if errors.Is(err, context.Canceled) {
		return engine.FailureCanceled
	}
	return engine.FailureTimeout
}

// outcomeOf classifies a finished run.
func outcomeOf(ctx context.Context, results []engine.Result) Outcome {
	if errors.Is(ctx.Err(), context.Canceled) {
		return OutcomeCanceled
	}
	var ok, failed int
	for _, r := range results {
		if r.OK() {
			ok++
		} else {
			failed++
		}
	}
	switch {
	case ok > 0 && failed == 0:
		return OutcomeAll
	case ok > 0:
		return OutcomePartial
	default:
		return OutcomeNone
	}
}
