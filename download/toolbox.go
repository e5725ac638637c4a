package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/adamwoolhether/fetch/internal/process"
)

const (
	DefaultTool      = "wget"
	DefaultImage     = "busybox:musl"
	defaultImagePath = "/bin/busybox"
)

// DefaultEngines are the container engines tried, in order, to
// bootstrap the fetch tool.
var DefaultEngines = []string{"singularity", "apptainer", "docker"}

// Tool is a resolved fetch utility.
type Tool struct {
	// Path is the executable, or the command name inside Image when
	// Engine is set.
	Path string
	// Engine runs Path from the Image container when set.
	Engine string
	Image  string
}

// Command returns the argv prefix that runs the tool with bind mounted
// into its container, when it has one.
func (t Tool) Command(bind string) (string, []string) {
	if t.Engine == "" {
		return t.Path, nil
	}
	return t.Engine, []string{"exec", "--bind", bind, t.Image, t.Path}
}

// ToolboxConfig configures a Toolbox. Zero values select defaults.
type ToolboxConfig struct {
	Runner process.Runner
	Logger *slog.Logger

	Tool      string
	Image     string
	ImagePath string
	Engines   []string

	// TempDir is the parent of bootstrap directories, os.TempDir()
	// when empty.
	TempDir string
}

// Toolbox resolves the external fetch tool once and owns the temporary
// directories created to bootstrap it. Close releases them.
type Toolbox struct {
	runner    process.Runner
	logger    *slog.Logger
	name      string
	image     string
	imagePath string
	engines   []string
	tempDir   string

	mu           sync.Mutex
	onPath       *Tool
	bootstrapped *Tool
	dirs         []string
}

func NewToolbox(cfg ToolboxConfig) *Toolbox {
	tb := &Toolbox{
		runner:    cfg.Runner,
		logger:    cfg.Logger,
		name:      cfg.Tool,
		image:     cfg.Image,
		imagePath: cfg.ImagePath,
		engines:   cfg.Engines,
		tempDir:   cfg.TempDir,
	}

	if tb.logger == nil {
		tb.logger = slog.Default()
	}
	if tb.runner == nil {
		tb.runner = process.Exec{Logger: tb.logger}
	}
	if tb.name == "" {
		tb.name = DefaultTool
	}
	if tb.image == "" {
		tb.image = DefaultImage
	}
	if tb.imagePath == "" {
		tb.imagePath = defaultImagePath
	}
	if tb.engines == nil {
		tb.engines = DefaultEngines
	}

	return tb
}

// Resolve returns the fetch tool, looking it up on PATH and, when
// bootstrap is set, provisioning it from a container image. A
// bootstrapped tool is only ever returned to callers that permit
// bootstrapping.
func (tb *Toolbox) Resolve(ctx context.Context, bootstrap bool) (Tool, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.onPath != nil {
		return *tb.onPath, nil
	}

	if path, err := tb.runner.LookPath(tb.name); err == nil {
		tb.onPath = &Tool{Path: path}
		return *tb.onPath, nil
	}

	if !bootstrap {
		return Tool{}, &Error{Err: ErrToolUnavailable, Detail: fmt.Sprintf("%s not found on PATH", tb.name)}
	}

	if tb.bootstrapped != nil {
		return *tb.bootstrapped, nil
	}

	dir, err := os.MkdirTemp(tb.tempDir, "fetch-tool-*")
	if err != nil {
		return Tool{}, fmt.Errorf("creating bootstrap dir: %w", err)
	}
	tb.dirs = append(tb.dirs, dir)

	var errs []error
	for _, engine := range tb.engines {
		enginePath, err := tb.runner.LookPath(engine)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", engine, err))
			continue
		}

		tool, err := tb.provision(ctx, engine, enginePath, dir)
		if err != nil {
			if ctx.Err() != nil {
				return Tool{}, cancelled(ctx.Err())
			}
			tb.logger.Debug("bootstrapping fetch tool failed", "engine", engine, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", engine, err))
			continue
		}

		tb.logger.Debug("bootstrapped fetch tool", "engine", engine, "tool", tool.Path)
		tb.bootstrapped = &tool
		return tool, nil
	}

	return Tool{}, &Error{
		Err:    ErrToolUnavailable,
		Detail: fmt.Sprintf("bootstrapping %s: %v", tb.name, errors.Join(errs...)),
	}
}

func (tb *Toolbox) provision(ctx context.Context, engine, enginePath, dir string) (Tool, error) {
	if engine == "docker" {
		return tb.extract(ctx, enginePath, dir)
	}

	sif := filepath.Join(dir, tb.name+".sif")
	if err := tb.runner.Run(ctx, enginePath, "pull", sif, "docker://"+tb.image); err != nil {
		return Tool{}, fmt.Errorf("pulling %s: %w", tb.image, err)
	}

	return Tool{Path: tb.name, Engine: enginePath, Image: sif}, nil
}

// extract copies the tool binary out of a stopped docker container.
func (tb *Toolbox) extract(ctx context.Context, docker, dir string) (Tool, error) {
	name := "fetch-" + uuid.NewString()
	if err := tb.runner.Run(ctx, docker, "create", "--name", name, tb.image); err != nil {
		return Tool{}, fmt.Errorf("creating container from %s: %w", tb.image, err)
	}
	defer func() {
		if err := tb.runner.Run(context.WithoutCancel(ctx), docker, "rm", name); err != nil {
			tb.logger.Error("removing bootstrap container", "name", name, "error", err)
		}
	}()

	dst := filepath.Join(dir, tb.name)
	if err := tb.runner.Run(ctx, docker, "cp", name+":"+tb.imagePath, dst); err != nil {
		return Tool{}, fmt.Errorf("copying %s: %w", tb.imagePath, err)
	}

	return Tool{Path: dst}, nil
}

// Close removes every directory created by Resolve and forgets the
// resolved tools.
func (tb *Toolbox) Close() error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	var errs []error
	for _, dir := range tb.dirs {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	tb.dirs = nil
	tb.onPath = nil
	tb.bootstrapped = nil

	return errors.Join(errs...)
}
