package session

import (
	"testing"
	"time"
)

func TestMemory_GetUnknownSession(t *testing.T) {
	m := NewMemory(0, 0, 0)
	if _, ok := m.Get("nope"); ok {
		t.Error("unknown session should not be found")
	}
	if _, ok := m.Get(""); ok {
		t.Error("empty session id should not be found")
	}
}

func TestMemory_UpdateAndGet(t *testing.T) {
	m := NewMemory(0, 0, 0)
	m.Update("s1", "blue shirt", WithItemType("shirt"), WithGender("men"))

	ctx, ok := m.Get("s1")
	if !ok {
		t.Fatal("session should be found after update")
	}
	if ctx.LastItemType != "shirt" {
		t.Errorf("last_item_type = %s, want shirt", ctx.LastItemType)
	}
	if ctx.LastGender != "men" {
		t.Errorf("last_gender = %s, want men", ctx.LastGender)
	}
	if ctx.LastQuery != "blue shirt" {
		t.Errorf("last_query = %s, want blue shirt", ctx.LastQuery)
	}
	if len(ctx.History) != 1 || ctx.History[0] != "blue shirt" {
		t.Errorf("history = %v", ctx.History)
	}
}

func TestMemory_StickyFieldsSurviveEmptyUpdates(t *testing.T) {
	m := NewMemory(0, 0, 0)
	m.Update("s1", "show me jeans", WithItemType("jeans"))
	m.Update("s1", "in black")

	ctx, ok := m.Get("s1")
	if !ok {
		t.Fatal("session should be found")
	}
	if ctx.LastItemType != "jeans" {
		t.Errorf("last_item_type = %s, want jeans (sticky)", ctx.LastItemType)
	}
	if ctx.LastQuery != "in black" {
		t.Errorf("last_query = %s, want in black", ctx.LastQuery)
	}
}

func TestMemory_HistoryCap(t *testing.T) {
	m := NewMemory(0, 0, 3)
	for _, q := range []string{"a", "b", "c", "d", "e"} {
		m.Update("s1", q)
	}
	ctx, _ := m.Get("s1")
	if len(ctx.History) != 3 {
		t.Fatalf("history length = %d, want 3", len(ctx.History))
	}
	want := []string{"c", "d", "e"}
	for i, q := range want {
		if ctx.History[i] != q {
			t.Errorf("history[%d] = %s, want %s", i, ctx.History[i], q)
		}
	}
}

func TestMemory_TTLExpiry(t *testing.T) {
	m := NewMemory(30*time.Millisecond, time.Minute, 0)
	m.Update("s1", "red dress", WithItemType("dress"))
	if _, ok := m.Get("s1"); !ok {
		t.Fatal("session should be live right after update")
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok := m.Get("s1"); ok {
		t.Error("session should have expired")
	}
}

func TestMemory_UpdateRefreshesTTL(t *testing.T) {
	m := NewMemory(60*time.Millisecond, time.Minute, 0)
	m.Update("s1", "sneakers")
	time.Sleep(40 * time.Millisecond)
	m.Update("s1", "white ones")
	time.Sleep(40 * time.Millisecond)
	// 80ms after creation but only 40ms after the last touch.
	if _, ok := m.Get("s1"); !ok {
		t.Error("update should have refreshed the TTL")
	}
}

func TestMemory_Clear(t *testing.T) {
	m := NewMemory(0, 0, 0)
	m.Update("s1", "hat")
	m.Clear("s1")
	if _, ok := m.Get("s1"); ok {
		t.Error("cleared session should not be found")
	}
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	m := NewMemory(0, 0, 0)
	m.Update("s1", "watch", WithItemType("watch"))
	ctx, _ := m.Get("s1")
	ctx.LastItemType = "mutated"
	ctx.History[0] = "mutated"

	again, _ := m.Get("s1")
	if again.LastItemType != "watch" || again.History[0] != "watch" {
		t.Error("mutating a returned context must not affect the stored one")
	}
}
