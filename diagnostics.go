package unitboot

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/goliatone/go-unitboot/pkg/activity"
	"github.com/google/uuid"
)

// NoticeKind classifies a diagnostics notice.
type NoticeKind string

const (
	NoticeDeprecated           NoticeKind = "deprecated"
	NoticeIgnored              NoticeKind = "ignored"
	NoticeRemoved              NoticeKind = "removed"
	NoticeStrategyOverridden   NoticeKind = "strategy-overridden"
	NoticeEnhancementFailed    NoticeKind = "enhancement-failed"
	NoticeCleanupFailed        NoticeKind = "cleanup-failed"
	NoticePhaseEntered         NoticeKind = "phase"
	NoticeBootstrapFailed      NoticeKind = "bootstrap-failed"
	NoticeRuntimeFactoryClosed NoticeKind = "runtime-factory-closed"
)

// Notice is one structured diagnostics record.
type Notice struct {
	Kind        NoticeKind
	AttemptID   string
	Unit        string
	Key         string
	Replacement string
	Message     string
	Err         error
	At          time.Time
}

// Diagnostics collects the notices of one bootstrap attempt, logs them and
// fans them out as activity events. The zero value is not usable; call
// NewDiagnostics. A nil *Diagnostics discards everything.
type Diagnostics struct {
	mu         sync.Mutex
	attemptID  string
	unit       string
	logger     *slog.Logger
	emitter    *activity.Emitter
	notices    []Notice
	deprecated map[string]bool
	now        func() time.Time
}

// DiagnosticsOption configures a Diagnostics sink.
type DiagnosticsOption func(*Diagnostics)

// DiagnosticsWithLogger logs every notice through logger.
func DiagnosticsWithLogger(logger *slog.Logger) DiagnosticsOption {
	return func(d *Diagnostics) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// DiagnosticsWithHooks forwards notices as activity events.
func DiagnosticsWithHooks(hooks activity.Hooks, cfg activity.Config) DiagnosticsOption {
	return func(d *Diagnostics) {
		cfg.Enabled = true
		d.emitter = activity.NewEmitter(hooks, cfg)
	}
}

// DiagnosticsWithAttemptID overrides the generated attempt identifier.
func DiagnosticsWithAttemptID(id string) DiagnosticsOption {
	return func(d *Diagnostics) {
		if id != "" {
			d.attemptID = id
		}
	}
}

// NewDiagnostics returns a sink for one bootstrap attempt.
func NewDiagnostics(opts ...DiagnosticsOption) *Diagnostics {
	d := &Diagnostics{
		attemptID:  uuid.NewString(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		deprecated: map[string]bool{},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// AttemptID identifies the bootstrap attempt.
func (d *Diagnostics) AttemptID() string {
	if d == nil {
		return ""
	}
	return d.attemptID
}

func (d *Diagnostics) setUnit(unit string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	d.unit = unit
	d.mu.Unlock()
}

// Notices returns every recorded notice in order.
func (d *Diagnostics) Notices() []Notice {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Notice(nil), d.notices...)
}

// NoticesOf returns the recorded notices of kind.
func (d *Diagnostics) NoticesOf(kind NoticeKind) []Notice {
	var out []Notice
	for _, notice := range d.Notices() {
		if notice.Kind == kind {
			out = append(out, notice)
		}
	}
	return out
}

// Deprecated records a legacy key in use. Repeats for the same key within
// an attempt are dropped.
func (d *Diagnostics) Deprecated(key, replacement string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.deprecated[key] {
		d.mu.Unlock()
		return
	}
	d.deprecated[key] = true
	d.mu.Unlock()
	d.record(Notice{
		Kind:        NoticeDeprecated,
		Key:         key,
		Replacement: replacement,
		Message:     "setting is deprecated, use " + replacement,
	}, slog.LevelWarn, activity.BuildSettingDeprecatedEvent)
}

// Ignored records a setting forced back to its safe value.
func (d *Diagnostics) Ignored(key string, forced any) {
	d.record(Notice{
		Kind:        NoticeIgnored,
		Key:         key,
		Replacement: formatValue(forced),
		Message:     "setting is not supported and was reset",
	}, slog.LevelWarn, activity.BuildSettingIgnoredEvent)
}

// Removed records a key dropped by normalization.
func (d *Diagnostics) Removed(key, reason string) {
	d.record(Notice{
		Kind:    NoticeRemoved,
		Key:     key,
		Message: reason,
	}, slog.LevelDebug, activity.BuildSettingRemovedEvent)
}

// StrategyOverridden records an explicitly configured strategy replacing a
// built-in one.
func (d *Diagnostics) StrategyOverridden(key string) {
	d.record(Notice{
		Kind:    NoticeStrategyOverridden,
		Key:     key,
		Message: "overriding the built-in strategy is dangerous",
	}, slog.LevelWarn, activity.BuildStrategyOverriddenEvent)
}

// EnhancementFailed records a class whose type discovery failed.
func (d *Diagnostics) EnhancementFailed(className string, err error) {
	d.record(Notice{
		Kind:    NoticeEnhancementFailed,
		Key:     className,
		Message: "enhancement discovery failed",
		Err:     err,
	}, slog.LevelWarn, activity.BuildEnhancementFailedEvent)
}

// CleanupFailed records a swallowed failure while releasing a service.
func (d *Diagnostics) CleanupFailed(role string, err error) {
	d.record(Notice{
		Kind:    NoticeCleanupFailed,
		Key:     role,
		Message: "cleanup failed",
		Err:     err,
	}, slog.LevelWarn, activity.BuildCleanupFailedEvent)
}

// PhaseEntered records a pipeline state transition.
func (d *Diagnostics) PhaseEntered(phase Phase) {
	d.record(Notice{
		Kind: NoticePhaseEntered,
		Key:  phase.String(),
	}, slog.LevelDebug, activity.BuildPhaseEnteredEvent)
}

// BootstrapFailed records an aborted bootstrap attempt.
func (d *Diagnostics) BootstrapFailed(phase Phase, err error) {
	d.record(Notice{
		Kind:    NoticeBootstrapFailed,
		Key:     phase.String(),
		Message: "bootstrap failed",
		Err:     err,
	}, slog.LevelError, activity.BuildBootstrapFailedEvent)
}

// RuntimeFactoryClosed records the teardown of a runtime factory.
func (d *Diagnostics) RuntimeFactoryClosed(name string) {
	d.record(Notice{
		Kind:    NoticeRuntimeFactoryClosed,
		Key:     name,
		Message: "runtime factory closed",
	}, slog.LevelInfo, activity.BuildRuntimeFactoryClosedEvent)
}

func (d *Diagnostics) record(notice Notice, level slog.Level, build func(activity.NoticeInput) activity.Event) {
	if d == nil {
		return
	}
	d.mu.Lock()
	notice.AttemptID = d.attemptID
	notice.Unit = d.unit
	notice.At = d.now()
	d.notices = append(d.notices, notice)
	d.mu.Unlock()

	attrs := []any{"kind", notice.Kind, "attempt", notice.AttemptID}
	if notice.Unit != "" {
		attrs = append(attrs, "unit", notice.Unit)
	}
	if notice.Key != "" {
		attrs = append(attrs, "key", notice.Key)
	}
	if notice.Replacement != "" {
		attrs = append(attrs, "replacement", notice.Replacement)
	}
	if notice.Err != nil {
		attrs = append(attrs, "error", notice.Err)
	}
	msg := notice.Message
	if msg == "" {
		msg = string(notice.Kind)
	}
	d.logger.Log(context.Background(), level, msg, attrs...)

	if d.emitter.Enabled() {
		event := build(activity.NoticeInput{
			AttemptID:   notice.AttemptID,
			Unit:        notice.Unit,
			Key:         notice.Key,
			Replacement: notice.Replacement,
			Message:     notice.Message,
			Err:         notice.Err,
			OccurredAt:  notice.At,
		})
		if err := d.emitter.Emit(context.Background(), event); err != nil {
			d.logger.Warn("activity hook failed", "verb", event.Verb, "error", err)
		}
	}
}
