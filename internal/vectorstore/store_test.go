package vectorstore

import "testing"

func TestConfidenceBucket(t *testing.T) {
	cases := []struct {
		score float64
		want  float64
	}{
		{0.95, 0.95},
		{0.9, 0.95},
		{0.89, 0.85},
		{0.8, 0.85},
		{0.79, 0.75},
		{0.7, 0.75},
		{0.69, 0.60},
		{0, 0.60},
	}
	for _, c := range cases {
		if got := ConfidenceBucket(c.score); got != c.want {
			t.Errorf("ConfidenceBucket(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}
