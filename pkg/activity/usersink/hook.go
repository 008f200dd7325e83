package usersink

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/goliatone/go-unitboot/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook records bootstrap events in a go-users activity log. Events about a
// setting, class or service are filed against the persistence unit that
// raised them; the subject moves into Data under its object type, so a
// unit's whole bootstrap history is one object in the log.
type Hook struct {
	Sink usertypes.ActivitySink
	// Verbs limits the recorded verbs. Empty records all of them.
	Verbs []string
}

// Notify forwards the event to the sink when it maps to a record.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	record, ok := h.record(activity.NormalizeEvent(event))
	if !ok {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, record)
}

func (h Hook) record(event activity.Event) (usertypes.ActivityRecord, bool) {
	if event.Verb == "" || event.ObjectType == "" || event.ObjectID == "" {
		return usertypes.ActivityRecord{}, false
	}
	if len(h.Verbs) > 0 && !slices.Contains(h.Verbs, event.Verb) {
		return usertypes.ActivityRecord{}, false
	}

	data := make(map[string]any, len(event.Metadata)+2)
	maps.Copy(data, event.Metadata)
	objectType, objectID := event.ObjectType, event.ObjectID
	if unit, _ := data["unit"].(string); unit != "" && objectType != activity.ObjectUnit {
		delete(data, "unit")
		data[objectType] = objectID
		objectType, objectID = activity.ObjectUnit, unit
	}
	if event.AttemptID != "" {
		data["attempt_id"] = event.AttemptID
	}
	if len(data) == 0 {
		data = nil
	}

	channel := event.Channel
	if channel == "" {
		channel = activity.DefaultChannel
	}
	return usertypes.ActivityRecord{
		ActorID:    uuidOrNil(event.ActorID),
		TenantID:   uuidOrNil(event.TenantID),
		Verb:       event.Verb,
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	}, true
}

func uuidOrNil(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
