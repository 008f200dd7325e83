package unitboot

import "github.com/goliatone/go-unitboot/pkg/activity"

type activityConfig struct {
	hooks  activity.Hooks
	config activity.Config
}

// WithActivityHooks forwards every diagnostics notice to hooks as an
// activity event. Hooks are cloned and nil entries dropped. It has no
// effect when WithDiagnostics supplies a sink.
func WithActivityHooks(hooks activity.Hooks, config ...activity.Config) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *builderConfig) {
		cfg.activity.hooks = normalized
		if len(config) > 0 {
			cfg.activity.config = config[0]
		}
	}
}

func (cfg builderConfig) diagnostics() *Diagnostics {
	if cfg.diag != nil {
		return cfg.diag
	}
	opts := []DiagnosticsOption{DiagnosticsWithLogger(cfg.logger)}
	if len(cfg.activity.hooks) > 0 {
		opts = append(opts, DiagnosticsWithHooks(cfg.activity.hooks, cfg.activity.config))
	}
	return NewDiagnostics(opts...)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
