package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-unitboot/pkg/activity"
	"github.com/goliatone/go-unitboot/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookFilesSettingNoticesUnderUnit(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	tenantID := uuid.New()
	attemptID := uuid.New().String()

	event := activity.BuildSettingDeprecatedEvent(activity.NoticeInput{
		AttemptID:   attemptID,
		Unit:        "orders",
		Key:         "javax.persistence.jdbc.user",
		Replacement: "jakarta.persistence.jdbc.user",
		OccurredAt:  now,
	})
	event.ActorID = actorID.String()
	event.TenantID = tenantID.String()

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.TenantID != tenantID {
		t.Fatalf("unexpected identity: %+v", record)
	}
	if record.Verb != activity.VerbSettingDeprecated {
		t.Fatalf("unexpected verb %q", record.Verb)
	}
	if record.ObjectType != activity.ObjectUnit || record.ObjectID != "orders" {
		t.Fatalf("expected record filed under the unit, got %s/%s", record.ObjectType, record.ObjectID)
	}
	if record.Data[activity.ObjectSetting] != "javax.persistence.jdbc.user" {
		t.Fatalf("expected setting key in data, got %v", record.Data)
	}
	if _, ok := record.Data["unit"]; ok {
		t.Fatalf("unit is the object id and should not repeat in data")
	}
	if record.Channel != activity.DefaultChannel {
		t.Fatalf("expected channel %q got %q", activity.DefaultChannel, record.Channel)
	}
	if !record.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	if record.Data["attempt_id"] != attemptID {
		t.Fatalf("expected attempt id metadata got %v", record.Data["attempt_id"])
	}
	if record.Data["replacement"] != "jakarta.persistence.jdbc.user" {
		t.Fatalf("expected metadata passthrough got %v", record.Data["replacement"])
	}
}

func TestHookKeepsUnitEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	event := activity.BuildPhaseEnteredEvent(activity.NoticeInput{Unit: "orders", Key: "SettingsMerged"})
	event.ActorID = "not-a-uuid"
	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	record := sink.records[0]
	if record.ObjectType != activity.ObjectUnit || record.ObjectID != "orders" {
		t.Fatalf("unexpected object %s/%s", record.ObjectType, record.ObjectID)
	}
	if record.Data["phase"] != "SettingsMerged" {
		t.Fatalf("expected phase metadata, got %v", record.Data)
	}
	if record.ActorID != uuid.Nil {
		t.Fatalf("invalid actor ids map to uuid.Nil, got %s", record.ActorID)
	}
}

func TestHookVerbFilter(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink, Verbs: []string{activity.VerbBootstrapFailed}}

	_ = hook.Notify(context.Background(), activity.BuildPhaseEnteredEvent(activity.NoticeInput{Unit: "orders", Key: "Created"}))
	_ = hook.Notify(context.Background(), activity.BuildBootstrapFailedEvent(activity.NoticeInput{Unit: "orders", Err: errors.New("no dialect")}))

	if len(sink.records) != 1 || sink.records[0].Verb != activity.VerbBootstrapFailed {
		t.Fatalf("expected only the failure recorded, got %+v", sink.records)
	}
	if sink.records[0].Data["error"] != "no dialect" {
		t.Fatalf("expected error metadata, got %v", sink.records[0].Data)
	}
}

func TestHookNotifySkipsMissingVerb(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
}

func TestHookNotifyPropagatesSinkError(t *testing.T) {
	boom := errors.New("sink down")
	sink := &recordingSink{err: boom}
	hook := usersink.Hook{Sink: sink}

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbPhaseEntered,
		ObjectType: activity.ObjectUnit,
		ObjectID:   "orders",
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
	if sink.records[0].Data != nil {
		t.Fatalf("expected nil data for bare events, got %v", sink.records[0].Data)
	}
}

func TestHookWithoutSinkIsNoop(t *testing.T) {
	hook := usersink.Hook{}
	if err := hook.Notify(context.Background(), activity.Event{Verb: "x", ObjectType: "y", ObjectID: "z"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
