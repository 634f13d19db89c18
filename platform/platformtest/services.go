package platformtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/amp-labs/logicstates/platform"
)

// ErrProvider indicates a duplicate or unknown provider registration.
var ErrProvider = errors.New("provider registration")

// Services fakes the service controller.
type Services struct {
	mu        sync.Mutex
	providers map[string]any
}

// NewServices creates an empty service controller.
func NewServices() *Services {
	return &Services{providers: make(map[string]any)}
}

func (s *Services) AddProvider(name string, provider any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.providers[name]; exists {
		return fmt.Errorf("%w: %q already registered", ErrProvider, name)
	}

	s.providers[name] = provider

	return nil
}

func (s *Services) RemoveProvider(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.providers[name]; !exists {
		return fmt.Errorf("%w: %q not registered", ErrProvider, name)
	}

	delete(s.providers, name)

	return nil
}

// Provider returns the provider registered under name.
func (s *Services) Provider(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.providers[name]

	return p, ok
}

// Len returns the number of registered providers.
func (s *Services) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.providers)
}

var _ platform.ServiceController = (*Services)(nil)
