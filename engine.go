package effers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"github.com/jward/effers/internal/emit"
	"github.com/jward/effers/internal/gen"
	"github.com/jward/effers/internal/scan"
	"github.com/jward/effers/internal/store"
)

// Engine runs the generator over input files and records what it produced
// in a SQLite manifest.
type Engine struct {
	store  *store.Store
	logger *zap.Logger
	namer  gen.Namer

	suffix   string
	strict   bool
	force    bool
	receiver string
	settings string

	// useParallel enables the parallel generation pipeline.
	useParallel bool

	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSuffix sets the suffix inserted before ".go" in output file names.
// The default is "_effers".
func WithSuffix(suffix string) Option {
	return func(e *Engine) {
		e.suffix = suffix
	}
}

// WithStrict makes an operation name claimed by two effects of the same
// program an error instead of a warning.
func WithStrict(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}

// WithNamer sets how programs without an explicit name are named. Outputs
// are regenerated when the namer's type changes, or when its
// [gen.Fingerprinter] fingerprint does.
func WithNamer(namer gen.Namer) Option {
	return func(e *Engine) {
		e.namer = namer
	}
}

// WithForce regenerates files even when neither the input nor the output
// changed since the last run.
func WithForce(force bool) Option {
	return func(e *Engine) {
		e.force = force
	}
}

// WithReceiver sets the receiver name used in generated methods. Collisions
// with identifiers in a program's function are still resolved by numbering.
func WithReceiver(name string) Option {
	return func(e *Engine) {
		e.receiver = name
	}
}

// WithParallel controls parallel generation. When true (default), files are
// parsed and generated by a worker pool while outputs are written and
// recorded by a single goroutine. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// New creates an Engine backed by a SQLite manifest at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("effers: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("effers: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		logger:      zap.NewNop(),
		namer:       gen.DefaultNamer,
		suffix:      emit.DefaultSuffix,
		useParallel: true,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.settings = e.settingsHash()
	return e, nil
}

// settingsHash fingerprints everything besides the input that shapes an
// output. A recorded file whose settings differ is regenerated.
func (e *Engine) settingsHash() string {
	namer := fmt.Sprintf("%T", e.namer)
	if fp, ok := e.namer.(gen.Fingerprinter); ok {
		namer += ":" + fp.Fingerprint()
	}
	return store.ContentHash([]byte(strings.Join([]string{
		"version=" + gen.Version,
		"strict=" + strconv.FormatBool(e.strict),
		"receiver=" + e.receiver,
		"namer=" + namer,
	}, "\n")))
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Report is the outcome of one generation run.
type Report struct {
	Run   *Run          `json:"run"`
	Files []*FileReport `json:"files"`
}

// FileReport is the outcome for one input file.
type FileReport struct {
	Path     string   `json:"path"`
	Output   string   `json:"output,omitempty"`
	Skipped  bool     `json:"skipped,omitempty"`
	Removed  bool     `json:"removed,omitempty"`
	Programs []string `json:"programs,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// GenerateFile generates the output for a single input file.
func (e *Engine) GenerateFile(ctx context.Context, path string) (*Report, error) {
	return e.GenerateFiles(ctx, []string{path})
}

// GenerateFiles generates outputs for paths. Files without a directive are
// ignored, unless the manifest records an earlier output for them: that
// output and its manifest rows are removed. Files whose input, output and
// settings are unchanged since the last run are skipped. A failing file does not stop the others: all failures
// are returned together, and the report lists every file that was
// considered.
func (e *Engine) GenerateFiles(ctx context.Context, paths []string) (*Report, error) {
	run, err := e.store.BeginRun(uuid.NewString(), e.now())
	if err != nil {
		return nil, fmt.Errorf("effers: begin run: %w", err)
	}
	log := e.logger.With(zap.String("run", run.ID))
	report := &Report{Run: run}

	var genErr error
	if e.useParallel {
		genErr = e.generateParallel(ctx, log, run, report, paths)
	} else {
		genErr = e.generateSerial(ctx, log, run, report, paths)
	}

	sort.Slice(report.Files, func(i, j int) bool { return report.Files[i].Path < report.Files[j].Path })
	for _, fr := range report.Files {
		switch {
		case fr.Error != "":
			run.Errors++
		case fr.Skipped:
			run.Skipped++
		case fr.Removed:
			run.Removed++
		default:
			run.Files++
			run.Programs += len(fr.Programs)
		}
	}
	if err := e.store.FinishRun(run, e.now()); err != nil {
		genErr = multierr.Append(genErr, fmt.Errorf("effers: finish run: %w", err))
	}
	log.Info("run finished",
		zap.Int("files", run.Files),
		zap.Int("skipped", run.Skipped),
		zap.Int("removed", run.Removed),
		zap.Int("programs", run.Programs),
		zap.Int("errors", run.Errors))
	return report, genErr
}

// generateSerial runs the same three steps as the parallel pipeline, one
// file at a time.
func (e *Engine) generateSerial(ctx context.Context, log *zap.Logger, run *Run, report *Report, paths []string) error {
	var errs error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		item, skip, err := e.prepareFile(ctx, log, path)
		if err != nil {
			errs = multierr.Append(errs, e.fail(log, report, path, err))
			continue
		}
		if skip != nil {
			report.Files = append(report.Files, skip)
			continue
		}
		if item == nil {
			continue
		}
		e.generateItem(ctx, item)
		errs = multierr.Append(errs, e.commitItem(log, run, report, item))
	}
	return errs
}

// workItem carries one input file through the pipeline.
type workItem struct {
	path    string
	content []byte
	hash    string
	output  string

	// Set by generateItem.
	pkg      string
	code     []byte
	programs []*store.Program
	names    []string
	shadows  []shadowWarning
	err      error
}

type shadowWarning struct {
	program string
	shadow  gen.Shadow
}

// prepareFile reads path and decides whether it needs generating. It returns
// a nil item when path carries no directive, and a report instead of an item
// when the recorded manifest says nothing changed or the file's directives
// are gone.
func (e *Engine) prepareFile(ctx context.Context, log *zap.Logger, path string) (*workItem, *FileReport, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read file: %w", err)
	}
	ok, err := scan.HasDirectives(ctx, content)
	if err != nil {
		return nil, nil, fmt.Errorf("scan: %w", err)
	}
	if !ok {
		return e.removeStale(log, path)
	}

	item := &workItem{
		path:    path,
		content: content,
		hash:    store.ContentHash(content),
		output:  emit.OutputPath(path, e.suffix),
	}
	if e.force {
		return item, nil, nil
	}

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup file: %w", err)
	}
	if existing == nil || existing.Hash != item.hash || existing.Output != item.output ||
		existing.Settings != e.settings {
		return item, nil, nil
	}
	out, err := os.ReadFile(item.output)
	if err != nil || store.ContentHash(out) != existing.OutputHash {
		return item, nil, nil
	}
	return nil, &FileReport{Path: path, Output: item.output, Skipped: true}, nil
}

// removeStale forgets a file that no longer carries a directive. Its
// recorded output is deleted unless it was edited since it was written.
func (e *Engine) removeStale(log *zap.Logger, path string) (*workItem, *FileReport, error) {
	existing, err := e.store.FileByPath(path)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup file: %w", err)
	}
	if existing == nil {
		return nil, nil, nil
	}

	out, err := os.ReadFile(existing.Output)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, nil, fmt.Errorf("read output: %w", err)
	case store.ContentHash(out) != existing.OutputHash:
		log.Warn("output was edited, keeping it",
			zap.String("path", path),
			zap.String("output", existing.Output))
	default:
		if err := os.Remove(existing.Output); err != nil {
			return nil, nil, fmt.Errorf("remove output: %w", err)
		}
	}
	if err := e.store.DeleteFileData(existing.ID); err != nil {
		return nil, nil, fmt.Errorf("forget file: %w", err)
	}

	log.Info("directives removed, forgetting file",
		zap.String("path", path),
		zap.String("output", existing.Output))
	return nil, &FileReport{Path: path, Output: existing.Output, Removed: true}, nil
}

// generateItem parses the input and renders its output. It touches neither
// the filesystem nor the store, so it is safe to run concurrently.
func (e *Engine) generateItem(ctx context.Context, item *workItem) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, item.path, item.content, parser.ParseComments)
	if err != nil {
		item.err = fmt.Errorf("parse: %w", err)
		return
	}
	item.pkg = file.Name.Name

	progs := make(map[*ast.FuncDecl]*gen.Program)
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		dir, ok := gen.FindDirective(fn.Doc)
		if !ok {
			continue
		}
		line := fset.Position(fn.Pos()).Line

		d, err := dir.Parse(fset)
		if err != nil {
			item.err = multierr.Append(item.err, err)
			continue
		}
		if d.Program == "" {
			d.Program, err = e.namer.ProgramName(ctx, fn.Name.Name)
			if err != nil {
				item.err = multierr.Append(item.err, fmt.Errorf("%s: name %s: %w", fset.Position(fn.Pos()), fn.Name.Name, err))
				continue
			}
		}

		prog, err := gen.Generate(fn, d, gen.Options{Strict: e.strict, Receiver: e.receiver})
		if err != nil {
			item.err = multierr.Append(item.err, fmt.Errorf("%s: %w", fset.Position(fn.Pos()), err))
			continue
		}
		progs[fn] = prog
		item.names = append(item.names, prog.Name)
		item.programs = append(item.programs, programRecord(prog, line))
		for _, sh := range prog.Table.Shadows() {
			item.shadows = append(item.shadows, shadowWarning{program: prog.Name, shadow: sh})
		}
	}
	if item.err != nil {
		return
	}

	item.code, err = emit.File(fset, file, item.path, progs)
	if err != nil {
		item.err = err
	}
}

// commitItem writes a generated output and records it in the manifest.
func (e *Engine) commitItem(log *zap.Logger, run *Run, report *Report, item *workItem) error {
	if item.err != nil {
		return e.fail(log, report, item.path, item.err)
	}
	for _, w := range item.shadows {
		log.Warn("operation shadowed by an earlier effect",
			zap.String("path", item.path),
			zap.String("program", w.program),
			zap.String("operation", w.shadow.Name),
			zap.Int("winner", w.shadow.Winner),
			zap.Int("loser", w.shadow.Loser))
	}
	if !hasBuildTag(item.content) {
		log.Warn("input is not excluded from normal builds",
			zap.String("path", item.path),
			zap.String("want", "//go:build "+emit.BuildTag))
	}

	if err := os.WriteFile(item.output, item.code, 0o644); err != nil {
		return e.fail(log, report, item.path, fmt.Errorf("write output: %w", err))
	}
	f := &store.File{
		Path:        item.path,
		Package:     item.pkg,
		Output:      item.output,
		Hash:        item.hash,
		OutputHash:  store.ContentHash(item.code),
		Settings:    e.settings,
		RunID:       run.ID,
		GeneratedAt: e.now(),
	}
	if err := e.store.CommitFile(f, item.programs); err != nil {
		return e.fail(log, report, item.path, fmt.Errorf("commit: %w", err))
	}

	log.Info("generated",
		zap.String("path", item.path),
		zap.String("output", item.output),
		zap.Strings("programs", item.names))
	report.Files = append(report.Files, &FileReport{Path: item.path, Output: item.output, Programs: item.names})
	return nil
}

func (e *Engine) fail(log *zap.Logger, report *Report, path string, err error) error {
	log.Error("generation failed", zap.String("path", path), zap.Error(err))
	report.Files = append(report.Files, &FileReport{Path: path, Error: err.Error()})
	return fmt.Errorf("%s: %w", path, err)
}

// programRecord flattens a generated program into its manifest rows.
func programRecord(prog *gen.Program, line int) *store.Program {
	rec := &store.Program{
		Name:        prog.Name,
		FuncName:    prog.FuncName,
		Receiver:    prog.Receiver,
		Line:        line,
		Rewritten:   prog.Rewritten,
		Passthrough: prog.Passthrough,
	}
	n := len(prog.Effects)
	for i, eff := range prog.Effects {
		l := prog.Layers[i]
		rec.Layers = append(rec.Layers, &store.Layer{
			Ordinal:   l.Index,
			Name:      l.Name,
			Label:     l.Label,
			Interface: eff.Interface(),
		})
		for _, op := range eff.Ops {
			target, ok := prog.Table.Lookup(op.CallName())
			rec.Operations = append(rec.Operations, &store.Operation{
				LayerOrdinal: l.Index,
				Name:         op.Name,
				Alias:        op.Alias,
				Mode:         op.Mode.String(),
				AccessPath:   gen.AccessPath{Prev: n - i - 1, Mode: op.Mode}.String(),
				Shadowed:     !ok || target.Effect != i,
			})
		}
	}
	return rec
}

// hasBuildTag reports whether src carries the input build constraint.
func hasBuildTag(src []byte) bool {
	for _, line := range strings.Split(string(src), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "package ") {
			return false
		}
		if line == "//go:build "+emit.BuildTag {
			return true
		}
	}
	return false
}

// skipDirs are excluded from directory walks.
var skipDirs = map[string]bool{
	"vendor":   true,
	"testdata": true,
}

// GenerateDirectory generates every input file under root, as listed by
// ListFiles.
func (e *Engine) GenerateDirectory(ctx context.Context, root string) (*Report, error) {
	paths, err := ListFiles(root, e.suffix)
	if err != nil {
		return nil, fmt.Errorf("effers: %w", err)
	}
	e.logger.Debug("listed directory", zap.String("root", root), zap.Int("files", len(paths)))
	return e.GenerateFiles(ctx, paths)
}

// GeneratePackages loads the packages matching patterns, relative to dir,
// with the input build tag set, and generates every input file among them.
func (e *Engine) GeneratePackages(ctx context.Context, dir string, patterns ...string) (*Report, error) {
	cfg := &packages.Config{
		Context:    ctx,
		Dir:        dir,
		Mode:       packages.NeedName | packages.NeedFiles,
		BuildFlags: []string{"-tags=" + emit.BuildTag},
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("effers: load packages: %w", err)
	}

	seen := make(map[string]bool)
	var paths []string
	for _, pkg := range pkgs {
		for _, perr := range pkg.Errors {
			e.logger.Debug("package load error", zap.String("package", pkg.PkgPath), zap.String("error", perr.Msg))
		}
		for _, path := range pkg.GoFiles {
			if seen[path] || !isCandidate(path, e.suffix) {
				continue
			}
			seen[path] = true
			paths = append(paths, path)
		}
	}
	return e.GenerateFiles(ctx, paths)
}

// skipDir reports whether the go tool would ignore a directory called name,
// or whether it holds code that is not ours to generate.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || skipDirs[name]
}

// inSkippedDir reports whether any directory of the slash-separated
// relative path rel is skipped.
func inSkippedDir(rel string) bool {
	dirs := strings.Split(rel, "/")
	for _, d := range dirs[:len(dirs)-1] {
		if skipDir(d) {
			return true
		}
	}
	return false
}

// ListFiles returns the Go files under root that could be input files:
// outputs carrying suffix and test files are left out. If root is inside a
// git repository, uses git ls-files to respect .gitignore. Falls back to a
// filesystem walk (skipping hidden dirs, vendor and testdata) if git is
// unavailable.
func ListFiles(root, suffix string) ([]string, error) {
	paths, err := gitListFiles(root, suffix)
	if err != nil {
		// Not a git repo or git not available, fall back to walk.
		return walkListFiles(root, suffix)
	}
	return paths, nil
}

// isCandidate reports whether path could be an input file.
func isCandidate(path, suffix string) bool {
	return strings.HasSuffix(path, ".go") &&
		!strings.HasSuffix(path, "_test.go") &&
		!emit.IsOutput(path, suffix)
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) Go files under root.
func gitListFiles(root, suffix string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard", "--", "*.go")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if inSkippedDir(line) {
			continue
		}
		absPath := filepath.Join(root, line)
		if isCandidate(absPath, suffix) {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used as a fallback
// when git is not available.
func walkListFiles(root, suffix string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && skipDir(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if isCandidate(path, suffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// Programs returns every recorded program ordered by file path and line.
func (e *Engine) Programs() ([]*Program, error) {
	progs, err := e.store.Programs()
	if err != nil {
		return nil, fmt.Errorf("effers: list programs: %w", err)
	}
	return progs, nil
}

// Program returns the recorded programs named name with their layers and
// operations. Programs in different packages may share a name.
func (e *Engine) Program(name string) ([]*Program, error) {
	progs, err := e.store.ProgramsByName(name)
	if err != nil {
		return nil, fmt.Errorf("effers: program %s: %w", name, err)
	}
	return progs, nil
}

// Files returns every recorded input file.
func (e *Engine) Files() ([]*File, error) {
	files, err := e.store.Files()
	if err != nil {
		return nil, fmt.Errorf("effers: list files: %w", err)
	}
	return files, nil
}

// LatestRun returns the most recent run, or nil if none was recorded.
func (e *Engine) LatestRun() (*Run, error) {
	run, err := e.store.LatestRun()
	if err != nil {
		return nil, fmt.Errorf("effers: latest run: %w", err)
	}
	return run, nil
}
