package interval

import (
	"testing"
	"time"
)

var epoch = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return epoch.Add(time.Duration(minutes) * time.Minute)
}

func iv(startMin, endMin int) TimeInterval {
	return TimeInterval{Start: at(startMin), End: at(endMin)}
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b TimeInterval
		want float64
	}{
		{"disjoint", iv(0, 10), iv(20, 30), 0},
		{"touching", iv(0, 10), iv(10, 20), 0},
		{"partial", iv(0, 10), iv(5, 20), 300},
		{"contained", iv(0, 60), iv(15, 30), 900},
		{"identical", iv(5, 15), iv(5, 15), 600},
		{"reversed args", iv(5, 20), iv(0, 10), 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlap(tt.a, tt.b); got != tt.want {
				t.Errorf("Overlap(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDurationNeverNegative(t *testing.T) {
	inverted := TimeInterval{Start: at(10), End: at(0)}
	if d := inverted.Duration(); d != 0 {
		t.Errorf("inverted interval duration = %v, want 0", d)
	}
	if !inverted.Empty() {
		t.Error("inverted interval should be empty")
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		name   string
		in     TimeInterval
		bounds TimeInterval
		want   TimeInterval
		ok     bool
	}{
		{"inside", iv(10, 20), iv(0, 60), iv(10, 20), true},
		{"clip both ends", iv(0, 60), iv(10, 20), iv(10, 20), true},
		{"clip start", iv(0, 30), iv(10, 60), iv(10, 30), true},
		{"clip end", iv(20, 90), iv(0, 60), iv(20, 60), true},
		{"outside", iv(0, 10), iv(20, 60), TimeInterval{}, false},
		{"touching bound", iv(0, 20), iv(20, 60), TimeInterval{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.in.Clip(tt.bounds)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Clip(%v, %v) = %v, %v; want %v, %v", tt.in, tt.bounds, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMergeSorted(t *testing.T) {
	tests := []struct {
		name string
		in   []TimeInterval
		want []TimeInterval
	}{
		{"empty", nil, nil},
		{"single", []TimeInterval{iv(0, 10)}, []TimeInterval{iv(0, 10)}},
		{"disjoint", []TimeInterval{iv(0, 10), iv(20, 30)}, []TimeInterval{iv(0, 10), iv(20, 30)}},
		{"touching merge", []TimeInterval{iv(0, 10), iv(10, 20)}, []TimeInterval{iv(0, 20)}},
		{"overlapping", []TimeInterval{iv(0, 15), iv(10, 30)}, []TimeInterval{iv(0, 30)}},
		{"contained", []TimeInterval{iv(0, 60), iv(10, 20), iv(30, 40)}, []TimeInterval{iv(0, 60)}},
		{"chain", []TimeInterval{iv(0, 10), iv(5, 20), iv(20, 25), iv(40, 50)}, []TimeInterval{iv(0, 25), iv(40, 50)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeSorted(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("MergeSorted = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("MergeSorted[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// Merged output must be pairwise disjoint and preserve total covered time
// when the inputs are already disjoint.
func TestMergeSortedDisjointInvariant(t *testing.T) {
	in := []TimeInterval{iv(0, 5), iv(3, 12), iv(12, 20), iv(25, 30), iv(26, 28)}
	got := MergeSorted(in)
	for i := 1; i < len(got); i++ {
		if !got[i].Start.After(got[i-1].End) {
			t.Errorf("intervals %d and %d not disjoint: %v, %v", i-1, i, got[i-1], got[i])
		}
	}
	if total := TotalSeconds(got); total != 25*60 {
		t.Errorf("covered seconds = %v, want %v", total, 25*60)
	}
}
