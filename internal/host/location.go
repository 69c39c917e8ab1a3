package host

import (
	"net/url"
	"sync"
)

// Location reports the path currently shown in the address bar.
type Location interface {
	Path() string
}

// PageLocation is a Location driven by its owner, e.g. a CLI session or a
// browser bridge reporting navigation.
type PageLocation struct {
	mu   sync.RWMutex
	path string
}

func NewPageLocation(path string) *PageLocation {
	return &PageLocation{path: path}
}

// ParseLocation takes the path of a full page URL.
func ParseLocation(rawURL string) (*PageLocation, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return NewPageLocation(u.Path), nil
}

func (l *PageLocation) Path() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.path
}

func (l *PageLocation) Navigate(path string) {
	l.mu.Lock()
	l.path = path
	l.mu.Unlock()
}
