package streamio

import (
	"slices"
	"testing"
)

func TestTags_SetReplacesInPlace(t *testing.T) {
	tags := NewTags()
	tags.Set("icy-name", "Radio One")
	tags.Set("icy-genre", "jazz")
	tags.Set("icy-title", "first")

	tags.Set("ICY-Title", "second")

	if tags.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tags.Len())
	}
	want := []string{"icy-name", "icy-genre", "icy-title"}
	if got := tags.Keys(); !slices.Equal(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if v, _ := tags.Get("icy-title"); v != "second" {
		t.Errorf("Get(icy-title) = %q, want second", v)
	}
}

func TestTags_GetCaseInsensitive(t *testing.T) {
	tags := NewTags()
	tags.Set("Icy-Name", "X")

	if v, ok := tags.Get("icy-name"); !ok || v != "X" {
		t.Errorf("Get(icy-name) = %q, %v, want X, true", v, ok)
	}
	if _, ok := tags.Get("icy-url"); ok {
		t.Error("Get(icy-url) reported present")
	}
}

func TestTags_PairsIsACopy(t *testing.T) {
	tags := NewTags()
	tags.Set("k", "v")

	pairs := tags.Pairs()
	pairs[0].Value = "mutated"

	if v, _ := tags.Get("k"); v != "v" {
		t.Errorf("Get(k) = %q, want v", v)
	}
}
