package groupconfig

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// OnChange is invoked with a newly loaded, already-validated Options
// whenever a reload's hash differs from the last one applied.
type OnChange func(Options)

// FileSource polls a YAML file on disk and reports changes to a callback.
// Polling stands in for filesystem-event notification: both are
// edge-triggered from the Configurator's point of view, since Configure
// itself is idempotent on unchanged input.
type FileSource struct {
	path     string
	limiter  *rate.Limiter
	logger   *slog.Logger
	onChange OnChange
	lastHash string
}

// NewFileSource builds a FileSource that will poll no more often than once
// per interval, regardless of how eagerly Run's caller drives it.
func NewFileSource(path string, interval time.Duration, onChange OnChange, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &FileSource{
		path:     path,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		logger:   logger,
		onChange: onChange,
	}
}

// Load reads and validates the file once, without touching lastHash or
// invoking onChange. Callers use it for the initial synchronous load at
// startup, before handing the source to Run for background polling.
func (f *FileSource) Load() (Options, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return Options{}, errors.Wrapf(err, "groupconfig: reading %s", f.path)
	}
	var opts Options
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return Options{}, errors.Wrapf(err, "groupconfig: parsing %s", f.path)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, errors.Wrap(err, "groupconfig: misconfiguration")
	}
	return opts, nil
}

// Run polls the file until ctx is cancelled, invoking onChange every time a
// successful, validated load's hash differs from the last one seen. A
// malformed or invalid file is logged and skipped; it never crashes the
// poller and never calls onChange with bad data.
func (f *FileSource) Run(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !f.limiter.Allow() {
				continue
			}
			opts, err := f.Load()
			if err != nil {
				f.logger.Warn("group configuration reload skipped", "error", err)
				continue
			}
			h := Hash(opts)
			if h == f.lastHash {
				continue
			}
			f.lastHash = h
			f.logger.Info("group configuration reloaded", "path", f.path)
			if f.onChange != nil {
				f.onChange(opts)
			}
		}
	}
}
