package services

import (
	"github.com/siakad/core/internal/domain/entities"
)

// Merge combines a server list with the local list. Every remote item is kept
// in server order, followed by the local items whose id the server does not
// know, in local order. Repeated ids in remote keep the first occurrence.
func Merge[T entities.Record](remote, local []T) []T {
	seen := make(map[entities.ID]struct{}, len(remote))
	merged := make([]T, 0, len(remote)+len(local))

	for _, r := range remote {
		if _, dup := seen[r.Key()]; dup {
			continue
		}
		seen[r.Key()] = struct{}{}
		merged = append(merged, r)
	}

	for _, l := range local {
		if _, known := seen[l.Key()]; known {
			continue
		}
		merged = append(merged, l)
	}

	return merged
}

// replaceByID swaps the element with id for v in place. It reports whether id was found.
func replaceByID[T entities.Record](list []T, id entities.ID, v T) bool {
	for i := range list {
		if list[i].Key() == id {
			list[i] = v
			return true
		}
	}
	return false
}

// indexOf returns the position of id in list, or -1.
func indexOf[T entities.Record](list []T, id entities.ID) int {
	for i := range list {
		if list[i].Key() == id {
			return i
		}
	}
	return -1
}
