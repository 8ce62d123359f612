// Package shift maps production hour indices onto the factory's shift-hour labels.
package shift

// Unmapped is the label for any hour outside the working window.
const Unmapped = "UNMAPPED"

// FirstHour and LastHour bound the working window (inclusive).
const (
	FirstHour = 8
	LastHour  = 19
)

// labels[i] is the label of hour FirstHour+i. Hours are shown on a 12-hour
// clock without AM/PM, as on the shop-floor boards.
var labels = [...]string{
	"8-9", "9-10", "10-11", "11-12", "12-1",
	"1-2", "2-3", "3-4", "4-5", "5-6", "6-7", "7-8",
}

var order = func() map[string]int {
	m := make(map[string]int, len(labels)+1)
	for i, l := range labels {
		m[l] = i
	}
	m[Unmapped] = len(labels)
	return m
}()

// LabelFor returns the shift-hour label for a 0-based hour index.
// It is total: every int has a label.
func LabelFor(hourIndex int) string {
	if hourIndex < FirstHour || hourIndex > LastHour {
		return Unmapped
	}
	return labels[hourIndex-FirstHour]
}

// Labels returns the mapped labels in shift order.
func Labels() []string {
	out := make([]string, len(labels))
	copy(out, labels[:])
	return out
}

// Order returns the sort position of a label. UNMAPPED and unknown labels
// sort after all mapped hours.
func Order(label string) int {
	if o, ok := order[label]; ok {
		return o
	}
	return len(labels) + 1
}
