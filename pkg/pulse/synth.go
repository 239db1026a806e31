package pulse

import "time"

// SlotLength is the spacing of one data pulse plus its marker in a
// synthesized train.
const SlotLength = 2 * time.Second

// Synthesize produces the edges of a pulse train carrying bits, one data
// pulse followed by one marker per slot, starting at origin. Nominal
// widths are the window centers. A full 60-bit frame therefore ends with
// the 60th marker, which completes the frame in a Classifier.
func Synthesize(bits []uint8, windows Windows, origin time.Duration) []Edge {
	edges := make([]Edge, 0, 4*len(bits))
	at := origin
	for _, b := range bits {
		w := windows.Zero.center()
		if b != 0 {
			w = windows.One.center()
		}
		edges = append(edges,
			Edge{Direction: Rising, At: at},
			Edge{Direction: Falling, At: at + w},
			Edge{Direction: Rising, At: at + time.Second},
			Edge{Direction: Falling, At: at + time.Second + windows.Marker.center()},
		)
		at += SlotLength
	}
	return edges
}
