package monitor

import (
	"reflect"
	"sort"
	"testing"
)

func TestStoreSetThenGet(t *testing.T) {
	store := NewStore()
	store.Set("bar", 1234)
	got := store.Get([]string{"bar"})
	if !reflect.DeepEqual(got, map[string]int64{"bar": 1234}) {
		t.Fatalf("unexpected get result: %v", got)
	}
}

func TestStoreSetOverwritesInPlace(t *testing.T) {
	store := NewStore()
	store.Set("bar", 1)
	store.Set("bar", 2)
	if store.Len() != 1 {
		t.Fatalf("expected one counter, got %d", store.Len())
	}
	if got := store.Get([]string{"bar"})["bar"]; got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestStoreBumpCreatesAtOne(t *testing.T) {
	store := NewStore()
	if got := store.Bump("baz"); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
}

func TestStoreRepeatedBumpsAreMonotonic(t *testing.T) {
	store := NewStore()
	const k = 20
	for i := 1; i <= k; i++ {
		if got := store.Bump("hits"); got != int64(i) {
			t.Fatalf("bump %d yielded %d", i, got)
		}
	}
	if got := store.Get([]string{"hits"})["hits"]; got != k {
		t.Fatalf("expected %d after %d bumps, got %d", k, k, got)
	}
}

func TestStoreGetOmitsAbsentNames(t *testing.T) {
	store := NewStore()
	store.Set("foo", 5678)
	got := store.Get([]string{"foo", "missing"})
	if !reflect.DeepEqual(got, map[string]int64{"foo": 5678}) {
		t.Fatalf("unexpected get result: %v", got)
	}
}

func TestStoreDumpAllIsUnionOfTouchedNames(t *testing.T) {
	store := NewStore()
	store.Set("bar", 1234)
	store.Set("foo", 5678)
	store.Bump("bar")
	store.Bump("baz")
	want := map[string]int64{"bar": 1235, "foo": 5678, "baz": 1}
	if got := store.DumpAll(); !reflect.DeepEqual(got, want) {
		t.Fatalf("dump mismatch: %v != %v", got, want)
	}
}

func TestStoreDumpAllReturnsACopy(t *testing.T) {
	store := NewStore()
	store.Set("bar", 1)
	dump := store.DumpAll()
	dump["bar"] = 99
	if got := store.Get([]string{"bar"})["bar"]; got != 1 {
		t.Fatalf("dump aliased the store: %d", got)
	}
}

func TestStoreNames(t *testing.T) {
	store := NewStore()
	store.Set("bar", 1234)
	store.Bump("foo")
	names := store.Names()
	sort.Strings(names)
	if !reflect.DeepEqual(names, []string{"bar", "foo"}) {
		t.Fatalf("unexpected names: %v", names)
	}
}
