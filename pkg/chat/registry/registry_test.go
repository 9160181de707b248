package registry

import (
	"errors"
	"fmt"
	"testing"
)

// pdfBytes is a minimal body the content sniffer recognizes as a PDF.
func pdfBytes(filler string) []byte {
	return []byte("%PDF-1.4\n" + filler + "\n%%EOF\n")
}

func TestRegistryAdd(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		wantErr error
	}{
		{name: "valid pdf", content: pdfBytes("1 0 obj")},
		{name: "plain text rejected", content: []byte("just some text"), wantErr: ErrUnsupportedFormat},
		{name: "png rejected", content: []byte("\x89PNG\r\n\x1a\n0000"), wantErr: ErrUnsupportedFormat},
		{name: "empty rejected", content: []byte{}, wantErr: ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(3, 1024)

			doc, err := r.Add(tt.content, "upload.pdf")

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Add() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if r.Len() != 0 {
					t.Errorf("Len() = %d after rejected add, want 0", r.Len())
				}
				return
			}
			if doc.ID == "" {
				t.Error("Add() returned document without id")
			}
			if doc.DisplayName != "upload.pdf" {
				t.Errorf("DisplayName = %q, want upload.pdf", doc.DisplayName)
			}
			if doc.ContentType != "application/pdf" {
				t.Errorf("ContentType = %q, want application/pdf", doc.ContentType)
			}
		})
	}
}

func TestRegistrySizeLimit(t *testing.T) {
	r := New(3, 16)

	// Size is checked before the format sniff
	_, err := r.Add(pdfBytes("way past the sixteen byte cap"), "big.pdf")
	if !errors.Is(err, ErrSizeLimitExceeded) {
		t.Fatalf("Add() error = %v, want ErrSizeLimitExceeded", err)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistryCapacity(t *testing.T) {
	r := New(2, 1024)

	for i := 0; i < 2; i++ {
		if _, err := r.Add(pdfBytes(fmt.Sprintf("obj %d", i)), fmt.Sprintf("doc%d.pdf", i)); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	_, err := r.Add(pdfBytes("one too many"), "overflow.pdf")
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Add() error = %v, want ErrCapacityExceeded", err)
	}

	// Removing one frees the slot
	docs := r.List()
	r.Remove(docs[0].ID)
	if _, err := r.Add(pdfBytes("fits now"), "retry.pdf"); err != nil {
		t.Fatalf("Add() after Remove error = %v", err)
	}
}

func TestRegistryListOrder(t *testing.T) {
	r := New(3, 1024)

	names := []string{"first.pdf", "second.pdf", "third.pdf"}
	for _, name := range names {
		if _, err := r.Add(pdfBytes(name), name); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}

	docs := r.List()
	if len(docs) != len(names) {
		t.Fatalf("List() returned %d docs, want %d", len(docs), len(names))
	}
	for i, doc := range docs {
		if doc.DisplayName != names[i] {
			t.Errorf("List()[%d] = %q, want %q", i, doc.DisplayName, names[i])
		}
	}
}

func TestRegistryRemoveAbsent(t *testing.T) {
	r := New(3, 1024)
	doc, err := r.Add(pdfBytes("obj"), "keep.pdf")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	// Removing an unknown id changes nothing
	r.Remove("not-a-real-id")
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	// Remove is idempotent
	r.Remove(doc.ID)
	r.Remove(doc.ID)
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistryGet(t *testing.T) {
	r := New(3, 1024)
	doc, err := r.Add(pdfBytes("obj"), "find-me.pdf")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	found, ok := r.Get(doc.ID)
	if !ok || found.DisplayName != "find-me.pdf" {
		t.Errorf("Get(%s) = %v, %v", doc.ID, found, ok)
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) = true, want false")
	}
}

func TestRegistryDefaults(t *testing.T) {
	r := New(0, 0)

	for i := 0; i < DefaultMaxDocuments; i++ {
		if _, err := r.Add(pdfBytes(fmt.Sprintf("obj %d", i)), "doc.pdf"); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if _, err := r.Add(pdfBytes("overflow"), "doc.pdf"); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("Add() error = %v, want ErrCapacityExceeded", err)
	}
}
