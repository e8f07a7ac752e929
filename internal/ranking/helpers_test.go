package ranking

import (
	"slices"
	"sort"
)

func sortContacts(list []Contact) {
	slices.SortFunc(list, compare)
}

func sortedIDs(list []Contact) []string {
	out := ids(list)
	sort.Strings(out)
	return out
}
