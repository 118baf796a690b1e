package shadertools

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/gfxhal/engine/core"
	"github.com/spaghettifunk/gfxhal/engine/systems"
)

// LockFileName guards an output directory against concurrent builds.
const LockFileName = ".gfxhal-shaders.lock"

type Failure struct {
	Unit
	Err error
}

// BatchResult sorts every unit of a batch by outcome.
type BatchResult struct {
	ID      string
	Built   []Unit
	Skipped []Unit
	Failed  []Failure
}

func (r *BatchResult) OK() bool { return len(r.Failed) == 0 }

func (r *BatchResult) sort() {
	byName := func(units []Unit) {
		sort.Slice(units, func(i, j int) bool { return units[i].String() < units[j].String() })
	}
	byName(r.Built)
	byName(r.Skipped)
	sort.Slice(r.Failed, func(i, j int) bool { return r.Failed[i].String() < r.Failed[j].String() })
}

// Build compiles every file for every target into outDir/<target>. A tool
// failure only fails its own unit and the rest of the batch goes on. Any
// other error stops the batch and is returned next to the partial result.
func (c *Compiler) Build(ctx context.Context, files []string, outDir string, targets []Target) (*BatchResult, error) {
	res := &BatchResult{ID: uuid.NewString()}
	logger := core.LogWith("batch", res.ID[:8])

	lock, err := c.fs.Lock(filepath.Join(outDir, LockFileName), c.opts.LockTimeout)
	if err != nil {
		return res, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("releasing build lock", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	units := make([]Unit, 0, len(files)*len(targets))
	for _, f := range files {
		for _, t := range targets {
			units = append(units, Unit{Source: f, Target: t})
		}
	}
	logger.Info("building shaders", "files", len(files), "targets", len(targets), "workers", c.opts.Workers)

	js, err := systems.NewJobSystem(ctx, c.opts.Workers, len(units))
	if err != nil {
		return res, core.WrapError(core.KindUsageViolation, "Build", err, "starting workers")
	}

	var mu sync.Mutex
	var fatal error
	for _, u := range units {
		var built bool
		js.Submit(systems.Job{
			Name: u.String(),
			Run: func(ctx context.Context) error {
				var err error
				built, err = c.Compile(ctx, u, outDir)
				return err
			},
			OnComplete: func() {
				mu.Lock()
				defer mu.Unlock()
				if built {
					logger.Info("built", "target", u.Target, "file", u.Source)
					res.Built = append(res.Built, u)
				} else {
					logger.Debug("up to date", "target", u.Target, "file", u.Source)
					res.Skipped = append(res.Skipped, u)
				}
			},
			OnFailure: func(err error) {
				mu.Lock()
				defer mu.Unlock()
				res.Failed = append(res.Failed, Failure{Unit: u, Err: err})
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Error("failed", "target", u.Target, "file", u.Source, "err", err)
				if fatal == nil && !errors.Is(err, core.ErrToolFailure) {
					fatal = err
					cancel()
				}
			},
		})
	}
	js.Wait()
	_ = js.Shutdown()

	res.sort()
	logger.Info("done", "built", len(res.Built), "skipped", len(res.Skipped), "failed", len(res.Failed))
	if fatal != nil {
		return res, fatal
	}
	return res, ctx.Err()
}
