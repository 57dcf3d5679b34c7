package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"docquiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// DocumentStore keeps documents in Postgres. Ids come from document_seq
// (file001, file002, ...).
type DocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

func (s *DocumentStore) InsertDocument(ctx context.Context, doc domain.Document) (string, error) {
	meta, err := encodeMeta(doc.Metadata)
	if err != nil {
		return "", err
	}
	var id string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO documents (text, metadata, created_at) VALUES ($1, $2::jsonb, $3) RETURNING id`,
		doc.Text, meta, doc.CreatedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (s *DocumentStore) GetDocuments(ctx context.Context, ids []string) (map[string]domain.Document, error) {
	docs, err := s.query(ctx,
		`SELECT id, text, metadata, created_at FROM documents WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("get documents: %w", err)
	}
	out := make(map[string]domain.Document, len(docs))
	for _, doc := range docs {
		out[doc.ID] = doc
	}
	return out, nil
}

// CandidateDocuments narrows the search set in SQL; ranking happens in the app.
func (s *DocumentStore) CandidateDocuments(ctx context.Context, terms []string, fileTypes []string) ([]domain.Document, error) {
	patterns := make([]string, 0, len(terms))
	for _, t := range terms {
		patterns = append(patterns, "%"+t+"%")
	}
	if fileTypes == nil {
		fileTypes = []string{}
	}
	docs, err := s.query(ctx, `
		SELECT id, text, metadata, created_at
		FROM documents
		WHERE lower(text || ' ' || coalesce(metadata->>'name', '')) LIKE ANY($1)
		  AND (coalesce(cardinality($2::text[]), 0) = 0 OR metadata->>'file_type' = ANY($2))`,
		patterns, fileTypes,
	)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	return docs, nil
}

func (s *DocumentStore) query(ctx context.Context, sql string, args ...interface{}) ([]domain.Document, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var (
			doc  domain.Document
			meta []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Text, &meta, &doc.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func encodeMeta(meta map[string]string) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}
