// Package indexer ingests source documents from disk into the document store
// and the evidence index.
package indexer

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/civicgrid/veridoc/internal/ai"
	"github.com/civicgrid/veridoc/internal/chunker"
	"github.com/civicgrid/veridoc/internal/docstore"
	"github.com/civicgrid/veridoc/internal/index"
	"github.com/civicgrid/veridoc/pkg/models"
)

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

const (
	keyPointCount  = 5
	embedWorkers   = 4
	summaryExcerpt = 300
)

// Ingestor handles ingestion of a documents directory.
type Ingestor struct {
	Index      index.Index
	Docs       docstore.Store
	Client     ai.Client
	Chunker    *chunker.Chunker
	Root       string
	Walker     FileSystemWalker
	FileReader FileReader
}

// New creates a new Ingestor instance.
func New(idx index.Index, docs docstore.Store, client ai.Client, ch *chunker.Chunker, root string) *Ingestor {
	return &Ingestor{
		Index:      idx,
		Docs:       docs,
		Client:     client,
		Chunker:    ch,
		Root:       root,
		Walker:     &DefaultFileSystemWalker{},
		FileReader: &DefaultFileReader{},
	}
}

// NewWithDependencies creates a new Ingestor instance with custom dependencies for testing
func NewWithDependencies(idx index.Index, docs docstore.Store, client ai.Client, ch *chunker.Chunker, root string, walker FileSystemWalker, fileReader FileReader) *Ingestor {
	return &Ingestor{
		Index:      idx,
		Docs:       docs,
		Client:     client,
		Chunker:    ch,
		Root:       root,
		Walker:     walker,
		FileReader: fileReader,
	}
}

// IngestFile processes a single document file: metadata, chunks, embeddings,
// and index/docstore writes. The document ID is derived from the filename.
func (ix *Ingestor) IngestFile(ctx context.Context, path string) (models.Document, error) {
	b, err := ix.FileReader.ReadFile(path)
	if err != nil {
		return models.Document{}, err
	}

	docID := slugify(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	text, pageOffsets := paginate(string(b))

	doc := models.Document{
		ID:        docID,
		Title:     titleFor(path, text),
		Category:  categoryFor(ix.Root, path),
		FullText:  text,
		PageCount: len(pageOffsets),
	}
	return ix.IngestDocument(ctx, doc, pageOffsets)
}

// IngestDocument runs the indexing pipeline for an already assembled
// document: summary, key points, chunking, embeddings, and index/docstore
// writes. pageOffsets may be nil when page boundaries are unknown.
func (ix *Ingestor) IngestDocument(ctx context.Context, doc models.Document, pageOffsets []int) (models.Document, error) {
	docID := doc.ID
	text := doc.FullText
	doc.UpdatedAt = time.Now().UTC()

	if doc.Summary == "" {
		doc.Summary = ix.summarize(ctx, docID, text)
	}
	if len(doc.KeyPoints) == 0 {
		if points, err := ix.Client.ExtractKeyPoints(ctx, text, keyPointCount); err == nil {
			doc.KeyPoints = points
		} else {
			log.Warn().Err(err).Str("document_id", docID).Msg("key point extraction failed")
		}
	}

	fragments := ix.Chunker.Chunk(text, pageOffsets)
	chunks := make([]models.Chunk, len(fragments))
	vectors := make([][]float32, len(fragments))
	now := time.Now().UTC()
	for i, f := range fragments {
		chunks[i] = models.Chunk{
			ID:          index.ChunkID(docID, i),
			DocumentID:  docID,
			Title:       doc.Title,
			Text:        f.Text,
			Page:        f.Page,
			Index:       i,
			StartOffset: f.StartOffset,
			EndOffset:   f.EndOffset,
			Category:    doc.Category,
			CreatedAt:   now,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)
	for i := range fragments {
		i := i
		g.Go(func() error {
			vec, err := ix.Client.Embed(gctx, fragments[i].Text)
			if err != nil {
				log.Warn().Err(err).Str("chunk", chunks[i].ID).Msg("embedding failed, indexing without vector")
				vec = nil
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Document{}, err
	}

	// Re-ingesting replaces the document's chunks wholesale, under the index's
	// per-document lock so a concurrent delete cannot interleave.
	n, err := ix.Index.ReplaceDocument(ctx, docID, chunks, vectors)
	if err != nil {
		return models.Document{}, err
	}

	if existing, found, err := ix.Docs.Get(ctx, docID); err == nil && found {
		doc.CreatedAt = existing.CreatedAt
		if err := ix.Docs.Update(ctx, doc); err != nil {
			return models.Document{}, err
		}
	} else {
		doc.CreatedAt = now
		if _, err := ix.Docs.Create(ctx, doc); err != nil {
			return models.Document{}, err
		}
	}

	log.Info().Str("document_id", docID).
		Int("chunks", n).
		Int("pages", doc.PageCount).
		Msg("document ingested")
	return doc, nil
}

// workItem represents a file to be processed
type workItem struct {
	path string
}

func (ix *Ingestor) Run(ctx context.Context) error {
	numWorkers := runtime.NumCPU()
	if numWorkers > 4 {
		numWorkers = 4 // embedding calls fan out per file already
	}

	log.Info().Int("workers", numWorkers).Str("root", ix.Root).Msg("starting ingestion")

	workChan := make(chan workItem, numWorkers*2)
	errorChan := make(chan error, 1)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			log.Debug().Int("worker", workerID).Msg("worker started")

			for item := range workChan {
				if _, err := ix.IngestFile(ctx, item.path); err != nil {
					select {
					case errorChan <- err:
					default:
						log.Error().Err(err).Str("path", item.path).Msg("worker processing error")
					}
				}
			}

			log.Debug().Int("worker", workerID).Msg("worker finished")
		}(i)
	}

	go func() {
		wg.Wait()
		close(errorChan)
	}()

	walkErr := ix.Walker.Walk(ix.Root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			// de may be nil when walking through a test double
			if de != nil && de.IsDir() {
				return nil
			}
			if shouldSkip(path) {
				return nil
			}

			select {
			case workChan <- workItem{path: path}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})

	close(workChan)
	wg.Wait()

	select {
	case err := <-errorChan:
		if err != nil {
			return err
		}
	default:
	}

	return walkErr
}

func (ix *Ingestor) summarize(ctx context.Context, source, text string) string {
	s, err := ix.Client.Summarize(ctx, text)
	if err != nil || strings.TrimSpace(s) == "" {
		log.Warn().Err(err).Str("source", source).Msg("summarization failed, using excerpt")
		return summarizeHeuristic(text)
	}
	return s
}

// summarizeHeuristic provides a simple heuristic summary by truncating the content.
func summarizeHeuristic(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > summaryExcerpt {
		cut := summaryExcerpt
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

// paginate splits raw text on form feeds, cleans each page, and returns the
// joined text plus the start offset of each page in the cleaned text.
func paginate(raw string) (string, []int) {
	pages := strings.Split(raw, "\f")
	var (
		b       strings.Builder
		offsets []int
	)
	for _, p := range pages {
		p = chunker.Clean(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		offsets = append(offsets, b.Len())
		b.WriteString(p)
	}
	return b.String(), offsets
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases a filename stem into a stable document ID.
func slugify(s string) string {
	s = strings.ToLower(s)
	s = slugRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// titleFor prefers a leading markdown heading, falling back to the filename.
func titleFor(path, text string) string {
	for _, line := range strings.SplitN(text, "\n", 5) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	words := strings.Split(slugify(stem), "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// categoryFor maps the document's immediate parent directory to a known
// category, defaulting to "policy".
func categoryFor(root, path string) string {
	parent := filepath.Base(filepath.Dir(path))
	switch strings.ToLower(parent) {
	case models.CategoryBill + "s":
		return models.CategoryBill
	case models.CategoryAct + "s":
		return models.CategoryAct
	case models.CategoryNotification + "s":
		return models.CategoryNotification
	case models.CategoryReport + "s":
		return models.CategoryReport
	case models.CategoryJudgment + "s":
		return models.CategoryJudgment
	default:
		return models.CategoryPolicy
	}
}

// shouldSkip returns true if the file at path should be skipped.
func shouldSkip(path string) bool {
	p := strings.ToLower(path)
	if strings.Contains(p, "/.git/") || strings.HasPrefix(filepath.Base(p), ".") {
		return true
	}
	switch filepath.Ext(p) {
	case ".txt", ".md":
		return false
	}
	return true
}
