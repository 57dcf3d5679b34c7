package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"docquiz-service/internal/domain"
)

// DefaultMaxDocumentBytes caps stored document text when no limit is configured.
const DefaultMaxDocumentBytes = 5 << 20

// Search orderings.
const (
	SortRelevance = "relevance"
	SortName      = "name"
)

var allowedFileTypes = map[string]bool{"txt": true, "pdf": true, "docx": true}

// SearchQuery describes one keyword search.
type SearchQuery struct {
	Query     string
	Page      int
	Limit     int
	Sort      string
	FileTypes []string
}

// DocumentIndex stores documents and answers keyword searches.
type DocumentIndex struct {
	store    DocumentStore
	cache    SearchCache
	maxBytes int
	now      func() time.Time
}

// NewDocumentIndex builds an index; cache may be nil.
func NewDocumentIndex(store DocumentStore, cache SearchCache, maxBytes int) *DocumentIndex {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDocumentBytes
	}
	return &DocumentIndex{store: store, cache: cache, maxBytes: maxBytes, now: time.Now}
}

// Store validates and persists a document, then invalidates cached searches.
func (ix *DocumentIndex) Store(ctx context.Context, text string, metadata map[string]string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &domain.FieldError{Kind: domain.ErrInvalidDocument, Field: "text", Reason: "must not be empty"}
	}
	if len(text) > ix.maxBytes {
		return "", &domain.FieldError{
			Kind:   domain.ErrInvalidDocument,
			Field:  "text",
			Reason: fmt.Sprintf("%d bytes exceeds limit of %d", len(text), ix.maxBytes),
		}
	}
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	if ft, ok := meta[domain.MetaFileType]; ok {
		ft = strings.ToLower(strings.TrimSpace(ft))
		if !allowedFileTypes[ft] {
			return "", &domain.FieldError{Kind: domain.ErrInvalidDocument, Field: domain.MetaFileType, Reason: "unsupported file type " + strconv.Quote(ft)}
		}
		meta[domain.MetaFileType] = ft
	}

	id, err := ix.store.InsertDocument(ctx, domain.Document{
		Text:      text,
		Metadata:  meta,
		CreatedAt: ix.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	if ix.cache != nil {
		if err := ix.cache.Invalidate(ctx); err != nil {
			log.Printf("search cache invalidation failed after storing %s: %v", id, err)
		}
	}
	return id, nil
}

// Fetch returns every requested document or fails listing the missing ids.
func (ix *DocumentIndex) Fetch(ctx context.Context, ids []string) (map[string]domain.Document, error) {
	found, err := ix.store.GetDocuments(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch documents: %w", err)
	}
	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := found[id]; !ok && !seen[id] {
			missing = append(missing, id)
		}
		seen[id] = true
	}
	if len(missing) > 0 {
		return nil, &domain.DocumentNotFoundError{IDs: missing}
	}
	return found, nil
}

// Get returns a single document.
func (ix *DocumentIndex) Get(ctx context.Context, id string) (domain.Document, error) {
	docs, err := ix.Fetch(ctx, []string{id})
	if err != nil {
		return domain.Document{}, err
	}
	return docs[id], nil
}

// Search ranks documents by keyword match count, most recent upload first on ties.
func (ix *DocumentIndex) Search(ctx context.Context, q SearchQuery) (domain.Page[domain.DocumentSummary], error) {
	offset, err := domain.ValidatePage(q.Page, q.Limit)
	if err != nil {
		return domain.Page[domain.DocumentSummary]{}, err
	}
	if q.Sort == "" {
		q.Sort = SortRelevance
	}
	if q.Sort != SortRelevance && q.Sort != SortName {
		return domain.Page[domain.DocumentSummary]{}, &domain.FieldError{Kind: domain.ErrInvalidPagination, Field: "sort", Reason: "must be relevance or name"}
	}
	fileTypes := normalizeFileTypes(q.FileTypes)
	for _, ft := range fileTypes {
		if !allowedFileTypes[ft] {
			return domain.Page[domain.DocumentSummary]{}, &domain.FieldError{Kind: domain.ErrInvalidPagination, Field: "type", Reason: "unsupported file type " + strconv.Quote(ft)}
		}
	}

	key := searchCacheKey(q, fileTypes)
	if ix.cache != nil {
		if page, ok := ix.cache.Get(ctx, key); ok {
			return page, nil
		}
	}

	terms := SearchTerms(q.Query)
	var candidates []domain.Document
	if len(terms) > 0 {
		candidates, err = ix.store.CandidateDocuments(ctx, terms, fileTypes)
		if err != nil {
			return domain.Page[domain.DocumentSummary]{}, fmt.Errorf("search documents: %w", err)
		}
	}
	ranked := RankDocuments(candidates, terms, q.Sort)

	page := domain.Page[domain.DocumentSummary]{
		Items: []domain.DocumentSummary{},
		Page:  q.Page,
		Limit: q.Limit,
		Total: len(ranked),
	}
	if start, end := domain.PageWindow(offset, q.Limit, len(ranked)); start < end {
		page.Items = ranked[start:end]
	}
	if ix.cache != nil {
		ix.cache.Put(ctx, key, page)
	}
	return page, nil
}

// SearchTerms lower-cases a query and splits it into unique keywords.
func SearchTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			terms = append(terms, f)
		}
	}
	return terms
}

// RankDocuments scores documents against terms and drops those with no match.
func RankDocuments(docs []domain.Document, terms []string, order string) []domain.DocumentSummary {
	out := make([]domain.DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		name := doc.Metadata[domain.MetaName]
		haystack := strings.ToLower(doc.Text + " " + name)
		relevance := 0
		for _, t := range terms {
			relevance += strings.Count(haystack, t)
		}
		if relevance == 0 {
			continue
		}
		out = append(out, domain.DocumentSummary{
			ID:        doc.ID,
			Name:      name,
			FileType:  doc.Metadata[domain.MetaFileType],
			Relevance: relevance,
			Metadata:  doc.Metadata,
			CreatedAt: doc.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if order == SortName && a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out
}

func normalizeFileTypes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, ft := range in {
		ft = strings.ToLower(strings.TrimSpace(ft))
		if ft != "" {
			out = append(out, ft)
		}
	}
	sort.Strings(out)
	return out
}

func searchCacheKey(q SearchQuery, fileTypes []string) string {
	return strings.Join([]string{
		strings.Join(SearchTerms(q.Query), " "),
		q.Sort,
		strings.Join(fileTypes, ","),
		strconv.Itoa(q.Page),
		strconv.Itoa(q.Limit),
	}, "|")
}
