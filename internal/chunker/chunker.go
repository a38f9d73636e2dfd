package chunker

import (
	"regexp"
	"sort"
	"strings"
)

// Fragment is a raw text segment produced by the chunker. Offsets are into
// the cleaned text, not the original input.
type Fragment struct {
	Text        string
	Page        int
	StartOffset int
	EndOffset   int
}

// Chunker splits document text into overlapping, sentence-aware segments.
type Chunker struct {
	Size    int // target characters per chunk
	Overlap int // characters shared between consecutive chunks
	Window  int // how far around the target boundary to look for a break
}

// New returns a Chunker with sane defaults substituted for non-positive
// parameters.
func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = 50
	}
	return &Chunker{Size: size, Overlap: overlap, Window: 100}
}

var (
	controlRe   = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	horizRe     = regexp.MustCompile(`[ \t\r]+`)
	nlSpaceRe   = regexp.MustCompile(` ?\n ?`)
	multiNLRe   = regexp.MustCompile(`\n{3,}`)
	sentenceRe  = regexp.MustCompile(`[.!?]\s+`)
	paragraphRe = regexp.MustCompile(`\n\n`)
	quoteRepl   = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	)
)

// Clean normalizes raw document text: control characters stripped, runs of
// whitespace collapsed (paragraph breaks kept as a single blank line), curly
// quotes replaced with plain ASCII.
func Clean(text string) string {
	text = controlRe.ReplaceAllString(text, "")
	text = quoteRepl.Replace(text)
	text = horizRe.ReplaceAllString(text, " ")
	text = nlSpaceRe.ReplaceAllString(text, "\n")
	text = multiNLRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Chunk splits text into fragments of roughly c.Size characters, preferring
// sentence or paragraph boundaries within c.Window of the target cut and
// falling back to a hard cut. Consecutive fragments overlap by c.Overlap
// characters. pageOffsets, when non-nil, is a sorted list of character offsets
// (into the cleaned text) where each page starts and is used to tag fragments
// with the page containing their start.
func (c *Chunker) Chunk(text string, pageOffsets []int) []Fragment {
	text = Clean(text)
	if text == "" {
		return nil
	}

	var out []Fragment
	start := 0
	for start < len(text) {
		end := start + c.Size
		if end >= len(text) {
			tail := strings.TrimSpace(text[start:])
			if tail != "" {
				out = append(out, Fragment{
					Text:        tail,
					Page:        pageFor(start, pageOffsets),
					StartOffset: start,
					EndOffset:   len(text),
				})
			}
			break
		}

		// The next start is end-Overlap, so the boundary must land strictly
		// past start+Overlap or the cursor would stall or walk backward.
		if bp := c.boundary(text, end); bp > start+c.Overlap {
			end = bp
		}

		seg := strings.TrimSpace(text[start:end])
		if seg != "" {
			out = append(out, Fragment{
				Text:        seg,
				Page:        pageFor(start, pageOffsets),
				StartOffset: start,
				EndOffset:   end,
			})
		}
		start = end - c.Overlap
	}
	return out
}

// boundary finds the sentence or paragraph break nearest pos within the
// search window, or pos itself if none exists.
func (c *Chunker) boundary(text string, pos int) int {
	lo := pos - c.Window
	if lo < 0 {
		lo = 0
	}
	hi := pos + c.Window
	if hi > len(text) {
		hi = len(text)
	}
	window := text[lo:hi]

	var candidates []int
	for _, m := range sentenceRe.FindAllStringIndex(window, -1) {
		candidates = append(candidates, lo+m[1])
	}
	if len(candidates) == 0 {
		for _, m := range paragraphRe.FindAllStringIndex(window, -1) {
			candidates = append(candidates, lo+m[1])
		}
	}
	if len(candidates) == 0 {
		return pos
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if abs(cand-pos) < abs(best-pos) {
			best = cand
		}
	}
	if abs(best-pos) < c.Window {
		return best
	}
	return pos
}

// pageFor returns the 1-based page containing offset, via binary search over
// the sorted page-start offsets. Zero means page unknown.
func pageFor(offset int, pageOffsets []int) int {
	if len(pageOffsets) == 0 {
		return 0
	}
	// First page start strictly greater than offset; the page is the one
	// before it.
	i := sort.SearchInts(pageOffsets, offset+1)
	if i == 0 {
		return 1
	}
	return i
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
