package chunker

import (
	"strings"
	"testing"
)

func TestCleanNormalizes(t *testing.T) {
	in := "A “quoted”  phrase\x00 with\tcontrol ‘chars’"
	got := Clean(in)
	want := `A "quoted" phrase with control 'chars'`
	if got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestCleanKeepsParagraphBreaks(t *testing.T) {
	got := Clean("first para.\n\n\n\nsecond para.")
	if !strings.Contains(got, "\n\n") {
		t.Errorf("expected paragraph break preserved, got %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("expected newline runs collapsed, got %q", got)
	}
}

func TestChunkEmptyInput(t *testing.T) {
	c := New(500, 50)
	if got := c.Chunk("", nil); got != nil {
		t.Errorf("expected no fragments for empty input, got %d", len(got))
	}
	if got := c.Chunk("   \n\t ", nil); got != nil {
		t.Errorf("expected no fragments for whitespace input, got %d", len(got))
	}
}

func TestChunkShortText(t *testing.T) {
	c := New(500, 50)
	got := c.Chunk("A short document.", nil)
	if len(got) != 1 {
		t.Fatalf("expected single fragment, got %d", len(got))
	}
	if got[0].Text != "A short document." {
		t.Errorf("unexpected text %q", got[0].Text)
	}
	if got[0].StartOffset != 0 {
		t.Errorf("expected start offset 0, got %d", got[0].StartOffset)
	}
}

// Sentences long enough that a real document emerges from repetition.
func sampleText(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("The committee reviewed the proposal and recorded its findings in the annual report. ")
	}
	return strings.TrimSpace(b.String())
}

func TestChunkSizeAndOverlap(t *testing.T) {
	c := New(200, 30)
	text := sampleText(30)
	frags := c.Chunk(text, nil)
	if len(frags) < 2 {
		t.Fatalf("expected multiple fragments, got %d", len(frags))
	}

	for i, f := range frags {
		if f.EndOffset-f.StartOffset > c.Size+c.Window {
			t.Errorf("fragment %d spans %d chars, exceeds size+window %d",
				i, f.EndOffset-f.StartOffset, c.Size+c.Window)
		}
		if i > 0 && frags[i].StartOffset != frags[i-1].EndOffset-c.Overlap {
			t.Errorf("fragment %d start %d, want %d (prev end - overlap)",
				i, frags[i].StartOffset, frags[i-1].EndOffset-c.Overlap)
		}
	}
}

func TestChunkReconstructsCleanedText(t *testing.T) {
	c := New(180, 40)
	text := sampleText(25)
	cleaned := Clean(text)
	frags := c.Chunk(text, nil)

	var b strings.Builder
	for i, f := range frags {
		seg := cleaned[f.StartOffset:f.EndOffset]
		if i > 0 {
			// drop the overlap region
			seg = seg[c.Overlap:]
		}
		b.WriteString(seg)
	}
	if b.String() != cleaned {
		t.Error("concatenated fragments (minus overlap) do not reconstruct the cleaned text")
	}
}

func TestChunkPrefersSentenceBoundary(t *testing.T) {
	c := New(100, 10)
	text := sampleText(10)
	frags := c.Chunk(text, nil)
	cleaned := Clean(text)

	boundaryHits := 0
	for _, f := range frags[:len(frags)-1] {
		if f.EndOffset >= 2 && strings.ContainsAny(string(cleaned[f.EndOffset-2]), ".!?") {
			boundaryHits++
		}
	}
	if boundaryHits == 0 {
		t.Error("no fragment ended at a sentence boundary")
	}
}

func TestChunkHardCutWithoutBoundaries(t *testing.T) {
	c := New(100, 10)
	text := strings.Repeat("x", 350)
	frags := c.Chunk(text, nil)
	if len(frags) < 3 {
		t.Fatalf("expected multiple fragments, got %d", len(frags))
	}
	for i, f := range frags[:len(frags)-1] {
		if f.EndOffset-f.StartOffset != c.Size {
			t.Errorf("fragment %d: expected hard cut at size %d, got %d", i, c.Size, f.EndOffset-f.StartOffset)
		}
	}
}

func TestChunkAdvancesWhenBoundaryPrecedesOverlap(t *testing.T) {
	// A sentence break well before start+Overlap must not be taken as the
	// cut, or the cursor would move backward and never terminate.
	c := New(120, 50)
	text := "Short lead sentence here. " + strings.Repeat("x", 400) + "..."
	frags := c.Chunk(text, nil)
	if len(frags) < 2 {
		t.Fatalf("expected multiple fragments, got %d", len(frags))
	}
	for i := 1; i < len(frags); i++ {
		if frags[i].StartOffset <= frags[i-1].StartOffset {
			t.Errorf("fragment %d start %d did not advance past %d",
				i, frags[i].StartOffset, frags[i-1].StartOffset)
		}
		if frags[i].StartOffset < 0 {
			t.Errorf("fragment %d has negative start %d", i, frags[i].StartOffset)
		}
	}
}

func TestPageFor(t *testing.T) {
	offsets := []int{0, 1000, 2000, 3000}
	cases := []struct {
		offset, want int
	}{
		{0, 1},
		{999, 1},
		{1000, 2},
		{2500, 3},
		{3000, 4},
		{9999, 4},
	}
	for _, tc := range cases {
		if got := pageFor(tc.offset, offsets); got != tc.want {
			t.Errorf("pageFor(%d) = %d, want %d", tc.offset, got, tc.want)
		}
	}
	if got := pageFor(500, nil); got != 0 {
		t.Errorf("pageFor with no offsets = %d, want 0", got)
	}
}

func TestChunkTagsPages(t *testing.T) {
	c := New(200, 20)
	text := sampleText(30)
	cleaned := Clean(text)
	offsets := []int{0, len(cleaned) / 2}
	frags := c.Chunk(text, offsets)

	if frags[0].Page != 1 {
		t.Errorf("first fragment page = %d, want 1", frags[0].Page)
	}
	last := frags[len(frags)-1]
	if last.Page != 2 {
		t.Errorf("last fragment page = %d, want 2", last.Page)
	}
}
