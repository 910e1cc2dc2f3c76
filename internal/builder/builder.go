// Package builder orchestrates a full two-pass build: concurrent
// parsing of the candidate files, sequential Pass 1 (definitions)
// and Pass 2 (uses) over the resulting ASTs, and the Adjuster. It is
// the one place that owns the shared graph, symbol tables, and the
// append-only diagnostics log, grounded in gts-suite's pkg/index
// Builder and its goroutine-per-worker parsing pool.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"cxref/internal/adjuster"
	"cxref/internal/resolver"
	"cxref/internal/symtab"
	"cxref/internal/walker"
	"cxref/pkg/cast"
	"cxref/pkg/cgraph"
	"cxref/pkg/cparse"
)

// Config carries the booleans the external-interface contract names,
// plus verbosity.
type Config struct {
	TypesDependencies      bool
	FieldsDependencies     bool
	TypedefsDependencies   bool
	PropagateDepsDefToDecl bool
	Verbose                bool
}

// DefaultConfig matches walker.DefaultConfig's defaults, with
// propagation off until a caller opts in.
func DefaultConfig() Config {
	return Config{
		TypesDependencies:    true,
		FieldsDependencies:   true,
		TypedefsDependencies: false,
	}
}

func (c Config) walkerConfig() walker.Config {
	return walker.Config{
		TypesDependencies:    c.TypesDependencies,
		FieldsDependencies:   c.FieldsDependencies,
		TypedefsDependencies: c.TypedefsDependencies,
	}
}

// Builder runs one build of the code graph rooted at Root.
type Builder struct {
	Root   string
	Config Config
	Hook   resolver.Hook
	Log    *slog.Logger

	// Progress, when set, receives a tick per file per stage while
	// Config.Verbose is true. Defaults to a line on stderr.
	Progress func(stage string, done, total int)
}

// New returns a Builder. A nil logger falls back to slog.Default.
func New(root string, cfg Config, hook resolver.Hook, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{Root: root, Config: cfg, Hook: hook, Log: logger}
}

// OpenLog opens (creating if absent) the append-only pfff.log file at
// root and wraps it in a slog.Logger. Every Logger call issues one
// unbuffered write to the file, so diagnostics survive a crash
// mid-build; the returned closer should run when the build finishes.
func OpenLog(root string) (*slog.Logger, func() error, error) {
	path := filepath.Join(root, "pfff.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler), f.Close, nil
}

// Build runs both passes and the Adjuster over files, returning the
// finished graph and the sink nodes the Adjuster pruned.
func (b *Builder) Build(ctx context.Context, files []string) (*cgraph.Graph, []cgraph.ID, error) {
	asts, err := b.parseAll(ctx, files)
	if err != nil {
		return nil, nil, err
	}

	g := cgraph.New()
	tabs := symtab.New(b.Log)
	defW := walker.NewDefWalker(g, tabs, b.Config.walkerConfig(), b.Log)

	total := len(files)
	for i, f := range asts {
		if f == nil {
			continue
		}
		b.tick("definitions", i+1, total)
		f.Path = b.relPath(files[i])
		if err := defW.WalkFile(f); err != nil {
			return nil, nil, fmt.Errorf("pass 1 on %s: %w", f.Path, err)
		}
	}

	res := resolver.New(g, tabs, b.Hook, b.Log)
	useW := walker.NewUseWalker(g, tabs, res, b.Config.walkerConfig(), b.Log)
	for i, f := range asts {
		if f == nil {
			continue
		}
		b.tick("uses", i+1, total)
		if err := useW.WalkFile(f); err != nil {
			return nil, nil, fmt.Errorf("pass 2 on %s: %w", f.Path, err)
		}
	}

	removed := adjuster.Run(g, b.Config.PropagateDepsDefToDecl)
	return g, removed, nil
}

func (b *Builder) relPath(path string) string {
	rel, err := filepath.Rel(b.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (b *Builder) tick(stage string, done, total int) {
	if !b.Config.Verbose {
		return
	}
	if b.Progress != nil {
		b.Progress(stage, done, total)
		return
	}
	fmt.Fprintf(os.Stderr, "[%s] %d/%d\n", stage, done, total)
}

type parseOutcome struct {
	index int
	file  *cast.File
	err   error
}

// parseAll reads and parses files concurrently — pure per-file work
// with no shared mutable state, so it is safe to shard even though
// the two graph-mutating passes that follow stay sequential, per the
// baseline contract. A read failure is logged once per file and
// aborts the build; a context cancellation or deadline propagates
// unchanged without being logged; recoverable syntax diagnostics from
// the parser itself are logged but do not abort, since the AST they
// come with is still a usable partial result.
func (b *Builder) parseAll(ctx context.Context, files []string) ([]*cast.File, error) {
	n := len(files)
	if n == 0 {
		return nil, nil
	}

	results := make([]*cast.File, n)
	outcomes := make(chan parseOutcome, n)
	taskCh := make(chan int, n)
	workers := parseWorkerCount(n)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range taskCh {
				if err := ctx.Err(); err != nil {
					outcomes <- parseOutcome{index: idx, err: err}
					continue
				}
				path := files[idx]
				src, readErr := os.ReadFile(path)
				if readErr != nil {
					outcomes <- parseOutcome{index: idx, err: readErr}
					continue
				}
				f, parseErr := cparse.Parse(path, src, true)
				if parseErr != nil {
					b.Log.Warn("parse diagnostics", "file", path, "error", parseErr)
				}
				outcomes <- parseOutcome{index: idx, file: f}
			}
		}()
	}
	for i := range files {
		taskCh <- i
	}
	close(taskCh)
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	loggedFailures := make(map[string]bool)
	var fatal error
	for out := range outcomes {
		if out.err == nil {
			results[out.index] = out.file
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil && out.err == ctxErr {
			if fatal == nil {
				fatal = ctxErr
			}
			continue
		}
		path := files[out.index]
		if !loggedFailures[path] {
			loggedFailures[path] = true
			b.Log.Error("parse failure", "file", path, "error", out.err)
		}
		if fatal == nil {
			fatal = out.err
		}
	}
	if fatal != nil {
		return nil, fatal
	}
	return results, nil
}

func parseWorkerCount(taskCount int) int {
	if taskCount <= 0 {
		return 0
	}
	if raw := strings.TrimSpace(os.Getenv("CXREF_PARSE_WORKERS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > taskCount {
				return taskCount
			}
			return parsed
		}
	}
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > taskCount {
		workers = taskCount
	}
	return workers
}
