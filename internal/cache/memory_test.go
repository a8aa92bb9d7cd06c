package cache

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	value := map[string]int{"a": 1, "b": 2}
	if err := m.Set(ctx, "key", value, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got map[string]int
	hit, err := m.Get(ctx, "key", &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatal("expected a hit after Set")
	}
	if !reflect.DeepEqual(got, value) {
		t.Errorf("got %v, want %v", got, value)
	}
}

func TestMemory_MissOnUnknownKey(t *testing.T) {
	m := NewMemory()

	var got string
	hit, err := m.Get(context.Background(), "nope", &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Fatal("unexpected hit for unknown key")
	}
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }

	if err := m.Set(ctx, "key", 42, time.Minute); err != nil {
		t.Fatal(err)
	}

	var got int
	if hit, _ := m.Get(ctx, "key", &got); !hit {
		t.Fatal("expected a hit before expiry")
	}

	m.now = func() time.Time { return now.Add(2 * time.Minute) }
	if hit, _ := m.Get(ctx, "key", &got); hit {
		t.Fatal("expected a miss after expiry")
	}
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "key", "value", time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, "key"); err != nil {
		t.Fatal(err)
	}

	var got string
	if hit, _ := m.Get(ctx, "key", &got); hit {
		t.Fatal("expected a miss after Delete")
	}
}

func TestMemory_OverwriteWins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "key", "first", time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(ctx, "key", "second", time.Minute); err != nil {
		t.Fatal(err)
	}

	var got string
	if hit, _ := m.Get(ctx, "key", &got); !hit {
		t.Fatal("expected a hit")
	}
	if got != "second" {
		t.Errorf("got %q, want the last written value", got)
	}
}
