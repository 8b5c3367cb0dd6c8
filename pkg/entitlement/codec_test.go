package entitlement

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]int64{
		{},
		{1},
		{1, 2, 3},
		{42, 7, 999},
	}
	for _, ids := range cases {
		got := Decode(Encode(ids))
		if !reflect.DeepEqual(got, ids) {
			t.Fatalf("round trip of %v gave %v", ids, got)
		}
	}
}

func TestDecodeEmptyString(t *testing.T) {
	if got := Decode(""); len(got) != 0 {
		t.Fatalf("empty string should decode to empty set, got %v", got)
	}
	if got := Decode("   "); len(got) != 0 {
		t.Fatalf("blank string should decode to empty set, got %v", got)
	}
}

func TestDecodeSkipsMalformedEntries(t *testing.T) {
	got := Decode("1,,x,3")
	want := []int64{1, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNewlyOwedPreservesOrder(t *testing.T) {
	all := []int64{3, 1, 2, 5}
	owned := []int64{1, 5}
	got := NewlyOwed(all, owned)
	want := []int64{3, 2}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNewlyOwedAgainstEmptyOwnedSet(t *testing.T) {
	all := []int64{1, 2}
	got := NewlyOwed(all, nil)
	if !reflect.DeepEqual(got, all) {
		t.Fatalf("got %v, want %v", got, all)
	}
}

func TestNewlyOwedEmptyWhenFullyOwned(t *testing.T) {
	if got := NewlyOwed([]int64{1, 2}, []int64{2, 1}); len(got) != 0 {
		t.Fatalf("expected empty delta, got %v", got)
	}
}

func TestMergeSkipsDuplicates(t *testing.T) {
	got := Merge([]int64{1, 2}, []int64{2, 3, 3})
	want := []int64{1, 2, 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
