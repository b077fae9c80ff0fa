package session

import (
	"sync"

	"github.com/google/uuid"
)

// Preview is an image held for the page to display, addressed by an opaque ID
type Preview struct {
	ContentType string
	Data        []byte
}

// PreviewStore keeps previews in memory until revoked. It plays the role of the
// browser's object URLs for images the server has received.
type PreviewStore struct {
	mu       sync.RWMutex
	previews map[string]Preview
}

// NewPreviewStore creates an empty store
func NewPreviewStore() *PreviewStore {
	return &PreviewStore{previews: make(map[string]Preview)}
}

// Put stores a preview and returns its ID
func (s *PreviewStore) Put(contentType string, data []byte) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.previews[id] = Preview{ContentType: contentType, Data: data}
	s.mu.Unlock()
	return id
}

// Get returns the preview for id
func (s *PreviewStore) Get(id string) (Preview, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.previews[id]
	return p, ok
}

// Revoke drops the preview. Unknown IDs are ignored.
func (s *PreviewStore) Revoke(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	delete(s.previews, id)
	s.mu.Unlock()
}

// Len returns the number of live previews
func (s *PreviewStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.previews)
}
