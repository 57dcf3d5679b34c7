package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"docquiz-service/internal/domain"
)

// DocumentStore is an in-memory implementation of app.DocumentStore. Ids are
// allocated sequentially as file001, file002, ...
type DocumentStore struct {
	mu   sync.RWMutex
	next int
	docs map[string]domain.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]domain.Document)}
}

func (s *DocumentStore) InsertDocument(_ context.Context, doc domain.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	doc.ID = fmt.Sprintf("file%03d", s.next)
	doc.Metadata = copyMeta(doc.Metadata)
	s.docs[doc.ID] = doc
	return doc.ID, nil
}

func (s *DocumentStore) GetDocuments(_ context.Context, ids []string) (map[string]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Document, len(ids))
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			doc.Metadata = copyMeta(doc.Metadata)
			out[id] = doc
		}
	}
	return out, nil
}

func (s *DocumentStore) CandidateDocuments(_ context.Context, terms []string, fileTypes []string) ([]domain.Document, error) {
	allowed := make(map[string]bool, len(fileTypes))
	for _, ft := range fileTypes {
		allowed[ft] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Document
	for _, doc := range s.docs {
		if len(allowed) > 0 && !allowed[doc.Metadata[domain.MetaFileType]] {
			continue
		}
		haystack := strings.ToLower(doc.Text + " " + doc.Metadata[domain.MetaName])
		for _, t := range terms {
			if strings.Contains(haystack, t) {
				doc.Metadata = copyMeta(doc.Metadata)
				out = append(out, doc)
				break
			}
		}
	}
	return out, nil
}

func copyMeta(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
