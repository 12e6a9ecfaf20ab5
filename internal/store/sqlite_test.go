package store

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/notify-engine/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating sqlite store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing sqlite store: %v", err)
		}
	})
	return s
}

func sampleState() *model.StoredState {
	return &model.StoredState{
		Notifications: []model.Notification{
			{
				ID:        "thread-1-10",
				Title:     "Homework",
				Body:      "Due Friday.",
				Kind:      model.KindThread,
				Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
				Route:     model.Route{Name: "StudentCommunicate"},
				ThreadID:  1,
			},
		},
		LastSeenPerThread: map[int64]time.Time{
			1: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		SeenResourceIDs:    []int64{5, 6},
		ThreadsBaselined:   true,
		ResourcesBaselined: true,
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	want := sampleState()
	if err := s.Save(ctx, "notifications.7", want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx, "notifications.7")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatal("load returned nil for a saved key")
	}
	if len(got.Notifications) != 1 || got.Notifications[0].ID != "thread-1-10" {
		t.Errorf("notifications = %+v", got.Notifications)
	}
	if !got.ThreadsBaselined || !got.ResourcesBaselined {
		t.Error("baseline flags lost")
	}
	if wm := got.LastSeenPerThread[1]; !wm.Equal(want.LastSeenPerThread[1]) {
		t.Errorf("watermark = %v, want %v", wm, want.LastSeenPerThread[1])
	}
	if len(got.SeenResourceIDs) != 2 {
		t.Errorf("seen resource ids = %v", got.SeenResourceIDs)
	}
}

func TestSQLiteLoadAbsentKey(t *testing.T) {
	s := newTestSQLite(t)

	got, err := s.Load(context.Background(), "notifications.999")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Errorf("load of absent key = %+v, want nil", got)
	}
}

func TestSQLiteSaveReplacesPriorBlob(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	if err := s.Save(ctx, "notifications.7", sampleState()); err != nil {
		t.Fatalf("save: %v", err)
	}

	updated := sampleState()
	updated.SeenResourceIDs = append(updated.SeenResourceIDs, 9)
	if err := s.Save(ctx, "notifications.7", updated); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := s.Load(ctx, "notifications.7")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.SeenResourceIDs) != 3 {
		t.Errorf("seen resource ids = %v, want the replacing blob", got.SeenResourceIDs)
	}
}

func TestSQLiteCorruptBlobTreatedAsAbsent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_state (user_key, state) VALUES (?, ?)`,
		"notifications.7", "{not json",
	)
	if err != nil {
		t.Fatalf("seeding corrupt blob: %v", err)
	}

	got, err := s.Load(ctx, "notifications.7")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Errorf("corrupt blob loaded as %+v, want nil", got)
	}
}

func TestSQLiteKeysAreDisjoint(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	if err := s.Save(ctx, "notifications.1", sampleState()); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx, "notifications.2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Error("user 2 loaded user 1's state")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(model.StoreConfig{Driver: "mongodb"}); err == nil {
		t.Error("unknown driver did not error")
	}
}

func TestOpenDefaultsToSQLite(t *testing.T) {
	s, err := Open(model.StoreConfig{DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("default driver = %T, want *SQLiteStore", s)
	}
}
