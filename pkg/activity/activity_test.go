package activity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/psmlab/realtime/pkg/keys"
	"github.com/psmlab/realtime/pkg/store"
)

func setupService(t *testing.T, opts ...Option) (*Service, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	client, err := store.NewClient(store.Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create client: %v", err)
	}

	svc := NewService(client, opts...)

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return svc, mr, cleanup
}

func TestAdd_FansOutToAllScopes(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()

	recs, err := svc.Add(ctx, "post_created", Scopes{EntityID: "e1", UserID: "u1", Global: true}, map[string]interface{}{"post_id": "p1"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Expected 3 scope records, got %d", len(recs))
	}

	for _, st := range []Stream{EntityStream("e1"), UserStream("u1"), GlobalStream()} {
		count, err := svc.Count(ctx, st)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1 record in %s stream, got %d", st.scope, count)
		}
	}
}

func TestAdd_ScopeIDsDiffer(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	recs, err := svc.Add(context.Background(), "post_created", Scopes{EntityID: "e1", Global: true}, nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if recs["entity"].ID == recs["global"].ID {
		t.Errorf("Expected distinct ids per stream, both are %q", recs["entity"].ID)
	}
}

func TestAdd_NoScopes(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	if _, err := svc.Add(context.Background(), "post_created", Scopes{}, nil); err == nil {
		t.Error("Expected error when no scopes are selected")
	}
}

func TestRange_NewestFirst(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		tick := base.Add(time.Duration(i) * time.Second)
		svc.now = func() time.Time { return tick }
		if _, err := svc.Add(ctx, "post_created", Scopes{EntityID: "e1"}, map[string]interface{}{"n": i}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	recs, err := svc.Range(ctx, EntityStream("e1"), 0, 10, Filter{})
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(recs))
	}
	if !recs[0].Timestamp.After(recs[2].Timestamp) {
		t.Errorf("Expected newest first, got %v before %v", recs[0].Timestamp, recs[2].Timestamp)
	}
}

func TestRange_Pagination(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := svc.Add(ctx, "post_created", Scopes{EntityID: "e1"}, map[string]interface{}{"n": i}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	page, err := svc.Range(ctx, EntityStream("e1"), 2, 2, Filter{})
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("Expected page of 2, got %d", len(page))
	}
}

func TestRange_TypeFilter(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := svc.Add(ctx, "post_created", Scopes{EntityID: "e1"}, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := svc.Add(ctx, "mention", Scopes{EntityID: "e1"}, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	recs, err := svc.Range(ctx, EntityStream("e1"), 0, 10, Filter{Type: "mention"})
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Type != "mention" {
		t.Errorf("Expected single mention record, got %+v", recs)
	}
}

func TestGlobalRange_EntityFilter(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := svc.Add(ctx, "post_created", Scopes{EntityID: "e1", Global: true}, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := svc.Add(ctx, "post_created", Scopes{EntityID: "e2", Global: true}, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	recs, err := svc.Range(ctx, GlobalStream(), 0, 10, Filter{EntityID: "e2"})
	if err != nil {
		t.Fatalf("Range failed: %v", err)
	}
	if len(recs) != 1 || recs[0].EntityID != "e2" {
		t.Errorf("Expected single e2 record, got %+v", recs)
	}
}

func TestStream_SoftBound(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()

	// Push past the trim trigger; the stream must settle back at the cap.
	for i := 0; i < int(keys.TrimTriggerLength)+1; i++ {
		if _, err := svc.Add(ctx, "post_created", Scopes{EntityID: "e1"}, map[string]interface{}{"n": i}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	count, err := svc.Count(ctx, EntityStream("e1"))
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count > keys.MaxStreamLength {
		t.Errorf("Expected stream capped at %d, got %d", keys.MaxStreamLength, count)
	}
}

func TestFindByID(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()

	recs, err := svc.Add(ctx, "post_created", Scopes{EntityID: "e1"}, map[string]interface{}{"post_id": "p1"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	id := recs["entity"].ID

	found, ok, err := svc.FindByID(ctx, EntityStream("e1"), id)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !ok || found.ID != id {
		t.Errorf("Expected to find record %q, got %+v (ok=%v)", id, found, ok)
	}

	_, ok, err = svc.FindByID(ctx, EntityStream("e1"), "missing")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if ok {
		t.Error("Expected ok=false for unknown id")
	}
}

func TestDeleteByID(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()

	recs, err := svc.Add(ctx, "post_created", Scopes{UserID: "u1"}, nil)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	removed, err := svc.DeleteByID(ctx, UserStream("u1"), recs["user"].ID)
	if err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	if !removed {
		t.Error("Expected record to be removed")
	}

	count, err := svc.Count(ctx, UserStream("u1"))
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty stream, got %d", count)
	}

	removed, err = svc.DeleteByID(ctx, UserStream("u1"), "missing")
	if err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	if removed {
		t.Error("Expected removed=false for unknown id")
	}
}

func TestClear(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := svc.Add(ctx, "post_created", Scopes{Global: true}, nil); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := svc.Clear(ctx, GlobalStream()); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	count, err := svc.Count(ctx, GlobalStream())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty stream, got %d", count)
	}
}

func TestTypes(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()
	for _, typ := range []string{"mention", "post_created", "mention"} {
		if _, err := svc.Add(ctx, typ, Scopes{EntityID: "e1"}, nil); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	types, err := svc.Types(ctx, EntityStream("e1"))
	if err != nil {
		t.Fatalf("Types failed: %v", err)
	}
	if len(types) != 2 || types[0] != "mention" || types[1] != "post_created" {
		t.Errorf("Expected [mention post_created], got %v", types)
	}
}
