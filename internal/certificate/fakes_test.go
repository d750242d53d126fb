package certificate

import (
	"context"
	"io"
	"sync"

	"github.com/akylbek/payment-system/event-certificates/internal/apperr"
	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	PutFunc func(key string) error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	if s.PutFunc != nil {
		if err := s.PutFunc(key); err != nil {
			return "", err
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return "mem://" + key, nil
}

type memoryCertificates struct {
	mu    sync.Mutex
	byUID map[string]models.Certificate
}

func newMemoryCertificates() *memoryCertificates {
	return &memoryCertificates{byUID: make(map[string]models.Certificate)}
}

func (r *memoryCertificates) Create(ctx context.Context, c *models.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUID[c.UID]; ok {
		return apperr.ErrAlreadyIssued
	}
	r.byUID[c.UID] = *c
	return nil
}

func (r *memoryCertificates) GetByUID(ctx context.Context, uid string) (*models.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byUID[uid]
	if !ok {
		return nil, apperr.NotFound("certificate not found")
	}
	return &c, nil
}

func (r *memoryCertificates) ListByEvent(ctx context.Context, eventID string) ([]models.Certificate, error) {
	return nil, nil
}

func (r *memoryCertificates) ListByStudent(ctx context.Context, studentID string) ([]models.Certificate, error) {
	return nil, nil
}

func (r *memoryCertificates) Exists(ctx context.Context, eventID, studentID string, kind models.CertificateKind) (bool, error) {
	return false, nil
}

// stubRenderer returns fixed bytes, optionally blocking until release is closed.
type stubRenderer struct {
	mu       sync.Mutex
	active   int
	peak     int
	release  chan struct{}
	FailUIDs map[string]bool
}

func (r *stubRenderer) Render(ctx context.Context, doc Document) (*Rendered, error) {
	r.mu.Lock()
	r.active++
	if r.active > r.peak {
		r.peak = r.active
	}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.active--
		r.mu.Unlock()
	}()

	if r.release != nil {
		<-r.release
	}
	if r.FailUIDs[doc.UID] {
		return nil, io.ErrUnexpectedEOF
	}
	return &Rendered{PDF: []byte("%PDF-" + doc.UID), Markup: []byte("<html>" + doc.UID)}, nil
}
