package maestro

import (
	"testing"
	"time"
)

func TestAdjustedTimeout(t *testing.T) {
	base := 10 * time.Second
	now := time.Now()

	tests := []struct {
		name            string
		lastInteraction time.Time
		want            time.Duration
	}{
		{"no time elapsed", now, base},
		{"partial elapsed", now.Add(-4 * time.Second), 6 * time.Second},
		{"fully elapsed", now.Add(-30 * time.Second), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adjustedTimeout(base, now, tt.lastInteraction)
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectMatch_ClickableFallback(t *testing.T) {
	root := &Node{
		Bounds: Bounds{Width: 1080, Height: 2400},
		Children: []*Node{
			leafNode("Item", "item-1", Bounds{X: 0, Y: 0, Width: 100, Height: 50}),
			leafNode("Item", "item-2", Bounds{X: 0, Y: 60, Width: 100, Height: 50}, "clickable"),
		},
	}
	compiled, err := BuildFilter(ElementSelector{TextRegex: "Item"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := selectMatch(compiled, root)
	if got == nil || got.Attrs["id"] != "item-2" {
		t.Fatalf("expected clickable item-2 to win, got %#v", got)
	}
}
