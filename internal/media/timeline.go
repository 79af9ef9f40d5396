package media

import "math"

const (
	minPerScene  = 20.0
	edgeShare    = 0.15
	minEdge      = 30.0
	minMiddle    = 45.0
	twoSceneHead = 0.45
)

type Span struct {
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

func (s Span) Duration() float64 { return s.End - s.Start }

// Timeline spreads a video of the requested length over the scenes. Intro
// and outro get 15% each (at least 30s), middle scenes at least 45s; the
// total grows when those minimums do not fit.
func Timeline(scenes, minutes int) []Span {
	if scenes <= 0 {
		return nil
	}
	total := math.Max(float64(minutes*60), float64(scenes)*minPerScene)

	switch scenes {
	case 1:
		return []Span{{Start: 0, End: total}}
	case 2:
		first := total * twoSceneHead
		return []Span{{Start: 0, End: first}, {Start: first, End: total}}
	}

	first := math.Max(total*edgeShare, minEdge)
	last := first
	middleCount := scenes - 2
	remaining := total - first - last
	if need := float64(middleCount) * minMiddle; remaining < need {
		remaining = need
	}
	middle := remaining / float64(middleCount)

	spans := make([]Span, 0, scenes)
	at := 0.0
	add := func(d float64) {
		spans = append(spans, Span{Start: at, End: at + d})
		at += d
	}
	add(first)
	for i := 0; i < middleCount; i++ {
		add(middle)
	}
	add(last)
	return spans
}
