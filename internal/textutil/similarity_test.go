package textutil

import (
	"math"
	"reflect"
	"testing"
)

func TestTokenCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"empty", "", "traffic cam", 0},
		{"only short words", "a b c", "a b c", 0},
		{"same words different separators", "parking lot north camera", "Parking-Lot_North camera", 1},
		{"disjoint", "harbor gate", "tunnel exit", 0},
		// cam:2 lot:1 vs cam:1 => 2/sqrt(5)
		{"repeated words weigh more", "cam cam lot", "cam", 2 / math.Sqrt(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenCosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("TokenCosine(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if back := TokenCosine(tt.b, tt.a); math.Abs(back-got) > 1e-9 {
				t.Fatalf("TokenCosine is not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"mixed separators", "Traffic_Cam-01.final", []string{"traffic", "cam", "01", "final"}},
		{"short tokens dropped", "a video 1", []string{"video"}},
		{"unicode folded", "ÉCOLE école", []string{"école", "école"}},
		{"empty", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Tokenize(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"video1", "video2", 1},
		{"über", "uber", 1},
	}
	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestEditSimilarity(t *testing.T) {
	if got := EditSimilarity("", ""); got != 1 {
		t.Fatalf("empty strings should be identical, got %v", got)
	}
	if got := EditSimilarity("video1", "video2"); math.Abs(got-5.0/6.0) > 1e-9 {
		t.Fatalf("unexpected similarity: %v", got)
	}
}

func TestSimilarityIsCaseInsensitive(t *testing.T) {
	if got := Similarity("Video_One", "video_one"); got != 1 {
		t.Fatalf("expected case-insensitive match to score 1, got %v", got)
	}
	if got := Similarity("parking north", "north parking"); math.Abs(got-1) > 1e-9 {
		t.Fatalf("reordered tokens should score 1 by cosine, got %v", got)
	}
	if got := Similarity("harbor", "tunnel"); got > 0.5 {
		t.Fatalf("unrelated names should score low, got %v", got)
	}
}
