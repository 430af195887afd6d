package inmemory

import (
	"context"
	"encoding/json"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/facetx"
)

// Document represents a JSON document in the in-memory index.
type Document struct {
	// ID is the unique identifier for the document.
	ID string
	// Fields contains the document's data as key-value pairs.
	Fields map[string]interface{}
}

// Option configures an Index.
type Option func(*Index)

// WithAnalyzedFields marks fields whose string values are tokenized for
// full-text matching instead of being indexed as one exact term.
func WithAnalyzedFields(fields ...string) Option {
	return func(ix *Index) {
		for _, f := range fields {
			ix.analyzed[f] = struct{}{}
		}
	}
}

// Index implements facetx.Index over documents held in memory.
//
// Document ids are assigned in insertion order and never reused: a removed
// document leaves a tombstone. A facetx.FacetSearcher caches per-field bitsets
// and does not observe later writes, so build a new searcher after mutating.
type Index struct {
	mu        sync.RWMutex
	analyzed  map[string]struct{}
	documents []Document
	idIndex   map[string]uint32 // maps document ID to its doc id
	deleted   *roaring.Bitmap
	postings  map[string]map[string]*roaring.Bitmap // field -> term -> docs
	fieldDocs map[string]*roaring.Bitmap            // field -> docs with any value
}

var _ facetx.Index = (*Index)(nil)

// New creates a new in-memory index.
// The index is ready to use and is safe for concurrent operations.
func New(opts ...Option) *Index {
	ix := &Index{analyzed: make(map[string]struct{})}
	ix.reset()
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

func (ix *Index) reset() {
	ix.documents = make([]Document, 0)
	ix.idIndex = make(map[string]uint32)
	ix.deleted = roaring.New()
	ix.postings = make(map[string]map[string]*roaring.Bitmap)
	ix.fieldDocs = make(map[string]*roaring.Bitmap)
}

// AddDocument indexes doc and returns its doc id.
// If a document with the same ID already exists, it is re-indexed in place and
// keeps its doc id. This method is safe for concurrent use.
func (ix *Index) AddDocument(doc Document) uint32 {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if docID, exists := ix.idIndex[doc.ID]; exists {
		ix.unindex(docID, ix.documents[docID])
		ix.documents[docID] = doc
		ix.index(docID, doc)
		return docID
	}

	docID := uint32(len(ix.documents))
	ix.idIndex[doc.ID] = docID
	ix.documents = append(ix.documents, doc)
	ix.index(docID, doc)
	return docID
}

// AddJSON adds a JSON document to the index by parsing the provided JSON data.
// If a document with the same ID already exists, it will be updated.
// This method is safe for concurrent use.
func (ix *Index) AddJSON(id string, jsonData []byte) (uint32, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return 0, errors.Wrap(err, "failed to unmarshal JSON")
	}

	return ix.AddDocument(Document{
		ID:     id,
		Fields: fields,
	}), nil
}

// RemoveDocument removes a document by ID from the index.
// Returns true if the document was found and removed, false if the document was not found.
// This method is safe for concurrent use.
func (ix *Index) RemoveDocument(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	docID, exists := ix.idIndex[id]
	if !exists {
		return false
	}

	ix.unindex(docID, ix.documents[docID])
	ix.documents[docID] = Document{}
	ix.deleted.Add(docID)
	delete(ix.idIndex, id)
	return true
}

// Clear removes all documents and restarts doc id assignment.
// This method is safe for concurrent use.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.reset()
}

// Size returns the number of live documents.
// This method is safe for concurrent use.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.idIndex)
}

// Document returns the live document stored under docID.
func (ix *Index) Document(docID uint32) (Document, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if int(docID) >= len(ix.documents) || ix.deleted.Contains(docID) {
		return Document{}, false
	}
	return ix.documents[docID], true
}

// ParentMapping builds a variant-to-parent doc id mapping from field, which
// holds the ID of a variant's parent document. Documents without the field, or
// whose parent is unknown, are left out.
func (ix *Index) ParentMapping(field string) map[uint32]uint32 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	mapping := make(map[uint32]uint32)
	for _, docID := range ix.idIndex {
		parentID, ok := ix.documents[docID].Fields[field].(string)
		if !ok {
			continue
		}
		if parent, ok := ix.idIndex[parentID]; ok && parent != docID {
			mapping[docID] = parent
		}
	}
	return mapping
}

// MaxDoc implements facetx.Index.
func (ix *Index) MaxDoc() uint {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return uint(len(ix.documents))
}

// Terms implements facetx.Index. Terms are yielded in lexicographic order.
func (ix *Index) Terms(ctx context.Context, field string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		ix.mu.RLock()
		terms := make([]string, 0, len(ix.postings[field]))
		for term, docs := range ix.postings[field] {
			if !docs.IsEmpty() {
				terms = append(terms, term)
			}
		}
		ix.mu.RUnlock()
		slices.Sort(terms)

		for _, term := range terms {
			if ctx.Err() != nil {
				yield("", facetx.ErrCanceled)
				return
			}
			if !yield(term, nil) {
				return
			}
		}
	}
}

// Evaluate implements facetx.Index.
func (ix *Index) Evaluate(ctx context.Context, query facetx.Expression) (*bitset.BitSet, error) {
	select {
	case <-ctx.Done():
		return nil, facetx.ErrCanceled
	default:
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	docs, err := ix.evaluate(query)
	if err != nil {
		return nil, err
	}
	return toBitSet(docs, uint(len(ix.documents))), nil
}

// Search implements facetx.Index.
func (ix *Index) Search(ctx context.Context, query facetx.Expression, topN int) (*facetx.Hits, error) {
	startTime := time.Now()

	// Check context
	select {
	case <-ctx.Done():
		return nil, facetx.ErrCanceled
	default:
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	docs, err := ix.evaluate(query)
	if err != nil {
		return nil, err
	}

	clauses := matchClauses(query)
	matches := make([]scoredDocument, 0, docs.GetCardinality())
	it := docs.Iterator()
	for it.HasNext() {
		docID := it.Next()
		matches = append(matches, scoredDocument{
			docID: docID,
			score: ix.scoreDocument(docID, clauses),
		})
	}

	// Sort by score descending, then doc id ascending
	slices.SortStableFunc(matches, func(a, b scoredDocument) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return int(a.docID) - int(b.docID)
		}
	})

	end := min(max(topN, 0), len(matches))
	hits := &facetx.Hits{
		Items: make([]facetx.Hit, 0, end),
		Total: int64(len(matches)),
		Took:  time.Since(startTime).Milliseconds(),
	}

	maxScore := 0.0
	for _, match := range matches[:end] {
		if match.score > maxScore {
			maxScore = match.score
		}
		doc := ix.documents[match.docID]
		hits.Items = append(hits.Items, facetx.Hit{
			ID:     doc.ID,
			DocID:  match.docID,
			Score:  match.score,
			Fields: doc.Fields,
		})
	}
	hits.MaxScore = maxScore

	return hits, nil
}

type scoredDocument struct {
	docID uint32
	score float64
}

// scoreDocument counts the query tokens of clauses found in the document.
// Documents matched without any full-text clause score 1.
func (ix *Index) scoreDocument(docID uint32, clauses []facetx.MatchExpr) float64 {
	score := 0.0
	for _, c := range clauses {
		for _, tok := range tokenize(c.Text) {
			if docs, ok := ix.postings[c.Field][tok]; ok && docs.Contains(docID) {
				score++
			}
		}
	}
	if score == 0 {
		return 1.0
	}
	return score
}

func (ix *Index) index(docID uint32, doc Document) {
	for field, value := range doc.Fields {
		ix.walkTerms(field, value, func(field, term string) {
			byTerm := ix.postings[field]
			if byTerm == nil {
				byTerm = make(map[string]*roaring.Bitmap)
				ix.postings[field] = byTerm
			}
			if byTerm[term] == nil {
				byTerm[term] = roaring.New()
			}
			byTerm[term].Add(docID)

			if ix.fieldDocs[field] == nil {
				ix.fieldDocs[field] = roaring.New()
			}
			ix.fieldDocs[field].Add(docID)
		})
	}
}

func (ix *Index) unindex(docID uint32, doc Document) {
	for field, value := range doc.Fields {
		ix.walkTerms(field, value, func(field, term string) {
			if docs := ix.postings[field][term]; docs != nil {
				docs.Remove(docID)
				if docs.IsEmpty() {
					delete(ix.postings[field], term)
				}
			}
			if docs := ix.fieldDocs[field]; docs != nil {
				docs.Remove(docID)
			}
		})
	}
}

// toBitSet copies docs into a fixed-size bitset of length size.
func toBitSet(docs *roaring.Bitmap, size uint) *bitset.BitSet {
	bs := bitset.New(size)
	docs.Iterate(func(x uint32) bool {
		bs.Set(uint(x))
		return true
	})
	return bs
}
