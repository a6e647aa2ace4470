// Package insight derives device and network attributes from the insight
// event captured when an applicant starts onboarding.
package insight

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mssola/useragent"

	id "idv/pkg/domain"
	"idv/pkg/platform/sentinel"
)

// Event is the raw capture.
type Event struct {
	ScopedVaultID id.ScopedVaultID
	IPAddress     string
	Country       string
	City          string
	UserAgent     string
	CreatedAt     time.Time
}

// Field names an attribute rules can match on.
type Field string

const (
	FieldIPCountry Field = "ip_country"
	FieldBrowser   Field = "browser"
	FieldOS        Field = "os"
	FieldIsMobile  Field = "is_mobile"
	FieldIsBot     Field = "is_bot"
)

// IsKnown reports whether f is a supported field.
func (f Field) IsKnown() bool {
	switch f {
	case FieldIPCountry, FieldBrowser, FieldOS, FieldIsMobile, FieldIsBot:
		return true
	}
	return false
}

// Attributes are the normalized values rules see.
type Attributes struct {
	IPCountry string
	Browser   string
	OS        string
	IsMobile  bool
	IsBot     bool
}

// Attributes parses the user agent and normalizes the country code.
func (e Event) Attributes() Attributes {
	ua := useragent.New(e.UserAgent)
	browser, _ := ua.Browser()
	return Attributes{
		IPCountry: strings.ToUpper(strings.TrimSpace(e.Country)),
		Browser:   strings.ToLower(browser),
		OS:        strings.ToLower(ua.OSInfo().Name),
		IsMobile:  ua.Mobile(),
		IsBot:     ua.Bot(),
	}
}

// Value returns the attribute as a string. Booleans render as "true"/"false".
func (a Attributes) Value(f Field) (string, bool) {
	switch f {
	case FieldIPCountry:
		return a.IPCountry, a.IPCountry != ""
	case FieldBrowser:
		return a.Browser, a.Browser != ""
	case FieldOS:
		return a.OS, a.OS != ""
	case FieldIsMobile:
		return strconv.FormatBool(a.IsMobile), true
	case FieldIsBot:
		return strconv.FormatBool(a.IsBot), true
	}
	return "", false
}

// Store returns captured events.
type Store interface {
	Latest(ctx context.Context, vaultID id.ScopedVaultID) (*Event, error)
}

// InMemoryStore keeps the newest event per vault.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.ScopedVaultID]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.ScopedVaultID]Event)}
}

func (s *InMemoryStore) Record(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.events[e.ScopedVaultID]; ok && cur.CreatedAt.After(e.CreatedAt) {
		return nil
	}
	s.events[e.ScopedVaultID] = e
	return nil
}

func (s *InMemoryStore) Latest(_ context.Context, vaultID id.ScopedVaultID) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[vaultID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}
