package detect

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
)

// ErrStale is returned by Runner.Run when the configuration changed while the run was in flight.
var ErrStale = errors.New("detect: configuration changed during run")

// Run is the outcome of one detector over one frame.
type Run struct {
	TrialID     string
	Detector    string
	Version     string
	Fingerprint string
	Events      []gait.Event
	Warnings    []fault.ValidationWarning
	Elapsed     time.Duration
}

type memoKey struct {
	trialID     string
	frame       uint64
	fingerprint string
}

// frameDigest identifies the samples of a frame. Sliced frames keep the trial id of their parent,
// so the id alone cannot tell a window from the full recording.
func frameDigest(f *gait.Frame) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	write := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}

	write(f.SampleRate)
	write(float64(f.Len()))
	for _, p := range []*gait.Plate{&f.Left, &f.Right} {
		for _, v := range p.Fz() {
			write(v)
		}
	}
	for _, ch := range f.EMG {
		for _, v := range ch {
			write(v)
		}
	}
	return h.Sum64()
}

// WithRunnerLogger sets the logger for the runner
func WithRunnerLogger(logger *slog.Logger) func(r *Runner) {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRegistry replaces the built-in detector registry.
func WithRegistry(registry *Registry) func(r *Runner) {
	return func(r *Runner) {
		r.registry = registry
	}
}

// Runner executes a set of detectors concurrently over one frame and memoizes their output per
// (trial, frame samples, detector fingerprint).
type Runner struct {
	names    []string
	registry *Registry
	logger   *slog.Logger

	mu        sync.Mutex
	detectors []Detector
	memo      map[memoKey]Run

	generation Generation[[]Run]
}

// NewRunner validates cfg and builds the named detectors; no names selects every registered one.
func NewRunner(cfg Config, names []string, options ...func(r *Runner)) (*Runner, error) {
	r := Runner{
		names:    names,
		registry: NewRegistry(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		memo:     make(map[memoKey]Run),
	}
	for _, option := range options {
		option(&r)
	}
	if len(r.names) == 0 {
		r.names = r.registry.Names()
	}

	if err := r.SetConfig(cfg); err != nil {
		return nil, err
	}
	return &r, nil
}

// SetConfig rebuilds the detectors, discards memoized results and invalidates runs in flight.
func (r *Runner) SetConfig(cfg Config) error {
	detectors := make([]Detector, 0, len(r.names))
	for _, name := range r.names {
		d, err := r.registry.New(name, cfg)
		if err != nil {
			return fmt.Errorf("error creating %s detector: %w", name, err)
		}
		detectors = append(detectors, d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.detectors = detectors
	r.memo = make(map[memoKey]Run)
	r.generation.Begin()
	return nil
}

// Detectors returns the configured detectors in run order.
func (r *Runner) Detectors() []Detector {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Detector(nil), r.detectors...)
}

// Run executes every detector over f. Results already computed for the same samples and fingerprint
// are reused. When SetConfig is called before the run completes, the results are dropped and ErrStale
// is returned.
func (r *Runner) Run(ctx context.Context, f *gait.Frame) ([]Run, error) {
	r.mu.Lock()
	detectors := r.detectors
	gen := r.generation.Current()
	r.mu.Unlock()

	runs := make([]Run, len(detectors))
	errs := make([]error, len(detectors))

	digest := frameDigest(f)

	var wg sync.WaitGroup
	for i, d := range detectors {
		key := memoKey{trialID: f.TrialID, frame: digest, fingerprint: d.Fingerprint()}

		r.mu.Lock()
		cached, ok := r.memo[key]
		r.mu.Unlock()
		if ok {
			runs[i] = cached
			r.logger.Debug("detector result reused", slog.String("detector", d.Name()), slog.String("trial", f.TrialID))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			start := time.Now()
			res, err := d.Detect(ctx, f)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", d.Name(), err)
				return
			}

			runs[i] = Run{
				TrialID:     f.TrialID,
				Detector:    d.Name(),
				Version:     d.Version(),
				Fingerprint: d.Fingerprint(),
				Events:      res.Value,
				Warnings:    res.Warnings,
				Elapsed:     time.Since(start),
			}

			r.logger.Info("detector finished",
				slog.String("detector", d.Name()),
				slog.String("trial", f.TrialID),
				slog.Int("events", len(res.Value)),
				slog.Duration("elapsed", runs[i].Elapsed),
			)
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.generation.Commit(gen, runs) {
		return nil, ErrStale
	}
	for _, run := range runs {
		r.memo[memoKey{trialID: run.TrialID, frame: digest, fingerprint: run.Fingerprint}] = run
	}
	return runs, nil
}

// Latest returns the runs of the last completed Run under the current configuration.
func (r *Runner) Latest() ([]Run, bool) {
	return r.generation.Latest()
}
