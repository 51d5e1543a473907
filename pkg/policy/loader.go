package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// reloadDelay folds a burst of file events into one reload.
const reloadDelay = 500 * time.Millisecond

// Loader reads policies from .rego and .json files.
type Loader struct {
	fs     afero.Fs
	logger zerolog.Logger
}

func NewLoader(fsys afero.Fs, logger zerolog.Logger) *Loader {
	return &Loader{
		fs:     fsys,
		logger: logger.With().Str("component", "policy-loader").Logger(),
	}
}

// LoadFromPaths loads every policy file named by paths. Directories are
// walked recursively; a broken file inside a directory is skipped with a
// warning, while a broken file named directly is an error.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var all []Policy
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		found, err := l.load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", path, err)
		}
		all = append(all, found...)
	}
	l.logger.Info().Int("total", len(all)).Int("sources", len(paths)).Msg("Policies loaded")
	return all, nil
}

func (l *Loader) load(root string) ([]Policy, error) {
	info, err := l.fs.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		p, err := l.readFile(root)
		if err != nil {
			return nil, err
		}
		return []Policy{p}, nil
	}

	var out []Policy
	err = afero.Walk(l.fs, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isPolicyFile(path) {
			return nil
		}
		p, err := l.readFile(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Skipping policy file")
			return nil
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func (l *Loader) readFile(path string) (Policy, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return Policy{}, err
	}

	var p Policy
	switch filepath.Ext(path) {
	case ".rego":
		p = parseRego(strings.TrimSuffix(filepath.Base(path), ".rego"), string(data))
	case ".json":
		if p, err = parseJSON(data); err != nil {
			return Policy{}, err
		}
	default:
		return Policy{}, fmt.Errorf("unsupported policy file %s", path)
	}
	p.Source = path
	l.logger.Debug().Str("path", path).Str("policy", p.Name).Msg("Policy read")
	return p, nil
}

// parseRego builds a blocking policy named after its file. The comment block
// heading the module becomes the description.
func parseRego(name, module string) Policy {
	var desc []string
	for _, line := range strings.Split(module, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			if line != "" && len(desc) > 0 {
				break
			}
			continue
		}
		if c := strings.TrimSpace(strings.TrimPrefix(line, "#")); c != "" {
			desc = append(desc, c)
		}
	}
	return Policy{
		Name:        name,
		Description: strings.Join(desc, " "),
		Rego:        module,
		Severity:    SeverityError,
		Enabled:     true,
	}
}

// parseJSON decodes a Policy document. Enabled defaults to true and Severity
// to error.
func parseJSON(data []byte) (Policy, error) {
	p := Policy{Enabled: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("invalid JSON policy: %w", err)
	}
	if p.Name == "" {
		return Policy{}, fmt.Errorf("JSON policy has no name")
	}
	if p.Severity == "" {
		p.Severity = SeverityError
	}
	return p, nil
}

func isPolicyFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".rego" || ext == ".json"
}

// Watch reloads the policies under paths after any of their files changes
// and hands the result to reloadFn. It needs paths on the OS filesystem and
// stops when ctx is done.
func (l *Loader) Watch(ctx context.Context, paths []string, reloadFn func([]Policy) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	for _, path := range paths {
		info, err := l.fs.Stat(path)
		if err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Not watching missing path")
			continue
		}
		if !info.IsDir() {
			path = filepath.Dir(path)
		}
		if err := watcher.Add(path); err != nil {
			l.logger.Warn().Err(err).Str("path", path).Msg("Failed to watch path")
		}
	}

	go l.watch(ctx, watcher, func() {
		policies, err := l.LoadFromPaths(ctx, paths)
		if err == nil {
			err = reloadFn(policies)
		}
		if err != nil {
			l.logger.Error().Err(err).Msg("Failed to reload policies")
			return
		}
		l.logger.Info().Int("count", len(policies)).Msg("Policies reloaded")
	})
	return nil
}

func (l *Loader) watch(ctx context.Context, watcher *fsnotify.Watcher, reload func()) {
	defer watcher.Close()

	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&relevant == 0 || !isPolicyFile(event.Name) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDelay, reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Policy watcher error")
		}
	}
}
