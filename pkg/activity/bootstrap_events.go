package activity

import (
	"strings"
	"time"
)

// Verbs emitted during a bootstrap attempt.
const (
	VerbSettingDeprecated    = "setting.deprecated"
	VerbSettingIgnored       = "setting.ignored"
	VerbSettingRemoved       = "setting.removed"
	VerbStrategyOverridden   = "strategy.overridden"
	VerbEnhancementFailed    = "enhancement.discovery_failed"
	VerbCleanupFailed        = "cleanup.failed"
	VerbPhaseEntered         = "bootstrap.phase"
	VerbBootstrapFailed      = "bootstrap.failed"
	VerbRuntimeFactoryClosed = "runtime_factory.closed"
)

// Object types carried by bootstrap events.
const (
	ObjectSetting = "setting"
	ObjectClass   = "class"
	ObjectUnit    = "persistence_unit"
	ObjectService = "service"
)

// NoticeInput describes the common fields for bootstrap notices.
type NoticeInput struct {
	AttemptID   string
	Unit        string
	Key         string
	Replacement string
	Message     string
	Err         error
	Metadata    map[string]any
	OccurredAt  time.Time
}

// BuildSettingDeprecatedEvent reports a legacy key in use.
func BuildSettingDeprecatedEvent(input NoticeInput) Event {
	return buildNoticeEvent(VerbSettingDeprecated, ObjectSetting, input.Key, input)
}

// BuildSettingIgnoredEvent reports a setting forced back to its safe value.
func BuildSettingIgnoredEvent(input NoticeInput) Event {
	return buildNoticeEvent(VerbSettingIgnored, ObjectSetting, input.Key, input)
}

// BuildSettingRemovedEvent reports a key removed during normalization.
func BuildSettingRemovedEvent(input NoticeInput) Event {
	return buildNoticeEvent(VerbSettingRemoved, ObjectSetting, input.Key, input)
}

// BuildStrategyOverriddenEvent reports an explicitly supplied strategy that
// replaces a built-in one.
func BuildStrategyOverriddenEvent(input NoticeInput) Event {
	return buildNoticeEvent(VerbStrategyOverridden, ObjectSetting, input.Key, input)
}

// BuildEnhancementFailedEvent reports a class whose type discovery failed.
func BuildEnhancementFailedEvent(input NoticeInput) Event {
	return buildNoticeEvent(VerbEnhancementFailed, ObjectClass, input.Key, input)
}

// BuildCleanupFailedEvent reports a swallowed failure while releasing a service.
func BuildCleanupFailedEvent(input NoticeInput) Event {
	return buildNoticeEvent(VerbCleanupFailed, ObjectService, input.Key, input)
}

// BuildPhaseEnteredEvent reports a pipeline state transition. Key carries the
// phase name.
func BuildPhaseEnteredEvent(input NoticeInput) Event {
	event := buildNoticeEvent(VerbPhaseEntered, ObjectUnit, input.Unit, input)
	event.Metadata = ensureMetadata(event.Metadata)
	event.Metadata["phase"] = input.Key
	return event
}

// BuildBootstrapFailedEvent reports an aborted bootstrap attempt.
func BuildBootstrapFailedEvent(input NoticeInput) Event {
	return buildNoticeEvent(VerbBootstrapFailed, ObjectUnit, input.Unit, input)
}

// BuildRuntimeFactoryClosedEvent reports the teardown of a runtime factory.
func BuildRuntimeFactoryClosedEvent(input NoticeInput) Event {
	return buildNoticeEvent(VerbRuntimeFactoryClosed, ObjectUnit, input.Unit, input)
}

func buildNoticeEvent(verb, objectType, objectID string, input NoticeInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Unit != "" {
		metadata = ensureMetadata(metadata)
		metadata["unit"] = input.Unit
	}
	if input.Replacement != "" {
		metadata = ensureMetadata(metadata)
		metadata["replacement"] = input.Replacement
	}
	if input.Message != "" {
		metadata = ensureMetadata(metadata)
		metadata["message"] = input.Message
	}
	if input.Err != nil {
		metadata = ensureMetadata(metadata)
		metadata["error"] = input.Err.Error()
	}

	objectID = strings.TrimSpace(objectID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.AttemptID)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ObjectType: objectType,
		ObjectID:   objectID,
		AttemptID:  strings.TrimSpace(input.AttemptID),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
