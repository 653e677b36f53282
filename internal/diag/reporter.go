package diag

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger serializes all diagnostic output through a single mutex, wrapping
// logrus for the structured fields (job id, function name, pass name) the
// backend attaches while it works.
type Logger struct {
	mu  sync.Mutex
	log *logrus.Logger
}

// NewLogger builds a Logger writing to w. Verbose selects debug-level
// output; colored selects logrus's forced-color text formatter.
func NewLogger(w io.Writer, verbose, colored bool) *Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{ForceColors: colored, DisableColors: !colored})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return &Logger{log: log}
}

// Debugf logs a debug-level line with structured fields.
func (l *Logger) Debugf(fields map[string]any, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.WithFields(fields).Debugf(format, args...)
}

// Infof logs an info-level line.
func (l *Logger) Infof(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Infof(format, args...)
}

// Errorf logs an error-level line with structured fields.
func (l *Logger) Errorf(fields map[string]any, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.WithFields(fields).Errorf(format, args...)
}

// Reporter collects diagnostics from concurrently running codegen jobs and
// renders them at top level once the driver aggregates: jobs report and
// return Done, the driver reports.
type Reporter struct {
	mu    sync.Mutex
	diags []Diagnostic
	opts  RenderOptions
}

// NewReporter returns an empty Reporter rendering with opts.
func NewReporter(opts RenderOptions) *Reporter {
	return &Reporter{opts: opts}
}

// Report records d. Safe for concurrent use.
func (r *Reporter) Report(d Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diags = append(r.diags, d)
}

// HasErrors reports whether any recorded diagnostic is an error.
func (r *Reporter) HasErrors() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Diagnostics returns a snapshot of everything recorded so far.
func (r *Reporter) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Diagnostic, len(r.diags))
	copy(out, r.diags)
	return out
}

// Flush renders every recorded diagnostic to w in report order.
func (r *Reporter) Flush(w io.Writer) error {
	for _, d := range r.Diagnostics() {
		if _, err := io.WriteString(w, Render(d, r.opts)); err != nil {
			return err
		}
	}
	return nil
}
