// Package registry holds the documents uploaded into one conversation.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedFormat = errors.New("file must be a PDF")
	ErrSizeLimitExceeded = errors.New("file exceeds the maximum document size")
	ErrCapacityExceeded  = errors.New("maximum number of documents reached")
)

const (
	DefaultMaxDocuments = 3
	DefaultMaxBytes     = 25 * 1024 * 1024
)

// Document is an uploaded source document. Immutable once created; the
// registry is the only holder of the binary content.
type Document struct {
	ID          string
	DisplayName string
	Content     []byte
	ContentType string
	UploadedAt  time.Time
}

// Registry owns the uploaded documents of a single conversation. Listing
// order is insertion order.
type Registry struct {
	mu       sync.Mutex
	docs     []*Document
	maxDocs  int
	maxBytes int64
}

func New(maxDocs int, maxBytes int64) *Registry {
	if maxDocs <= 0 {
		maxDocs = DefaultMaxDocuments
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Registry{
		maxDocs:  maxDocs,
		maxBytes: maxBytes,
	}
}

// Add validates and stores a document, returning the created record.
func (r *Registry) Add(content []byte, displayName string) (*Document, error) {
	if int64(len(content)) > r.maxBytes {
		return nil, ErrSizeLimitExceeded
	}

	mtype := mimetype.Detect(content)
	if !mtype.Is("application/pdf") {
		return nil, ErrUnsupportedFormat
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.docs) >= r.maxDocs {
		return nil, ErrCapacityExceeded
	}

	doc := &Document{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		Content:     content,
		ContentType: mtype.String(),
		UploadedAt:  time.Now(),
	}
	r.docs = append(r.docs, doc)
	return doc, nil
}

// Remove deletes a document by id. No-op if absent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, doc := range r.docs {
		if doc.ID == id {
			r.docs = append(r.docs[:i], r.docs[i+1:]...)
			return
		}
	}
}

// Get returns the document with the given id.
func (r *Registry) Get(id string) (*Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, doc := range r.docs {
		if doc.ID == id {
			return doc, true
		}
	}
	return nil, false
}

// List returns the documents in insertion order.
func (r *Registry) List() []*Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Document, len(r.docs))
	copy(out, r.docs)
	return out
}

// Len reports how many documents are held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.docs)
}
