// Package entitlement converts between the owned-chapter set of a
// subscription and its persisted form, and computes the chapter delta every
// charging path is built on.
package entitlement

import (
	"strconv"
	"strings"
)

const separator = ","

// Decode parses a stored owned-chapter list. The empty string decodes to the
// empty set; malformed entries are dropped rather than failing the row.
func Decode(serialized string) []int64 {
	serialized = strings.TrimSpace(serialized)
	if serialized == "" {
		return []int64{}
	}
	parts := strings.Split(serialized, separator)
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Encode serializes an owned-chapter set for storage. The empty set encodes
// to the empty string, so Decode(Encode(s)) == s for every set s.
func Encode(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, separator)
}

// NewlyOwed returns every chapter id present in all but absent from owned,
// preserving the order of all. Every charging path computes its delta here
// instead of doing ad hoc set arithmetic, which is what keeps the
// no-double-charge guarantee in one place.
func NewlyOwed(all, owned []int64) []int64 {
	ownedSet := make(map[int64]struct{}, len(owned))
	for _, id := range owned {
		ownedSet[id] = struct{}{}
	}
	owed := make([]int64, 0, len(all))
	for _, id := range all {
		if _, ok := ownedSet[id]; !ok {
			owed = append(owed, id)
		}
	}
	return owed
}

// Merge appends the newly owed ids to the owned set, skipping duplicates.
func Merge(owned, newly []int64) []int64 {
	merged := make([]int64, len(owned), len(owned)+len(newly))
	copy(merged, owned)
	seen := make(map[int64]struct{}, len(owned))
	for _, id := range owned {
		seen[id] = struct{}{}
	}
	for _, id := range newly {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		merged = append(merged, id)
	}
	return merged
}
