package memstore

import (
	"context"

	"github.com/ariefcatur/go-flowershop-orders/internal/catalog"
)

var _ catalog.Reader = (*Store)(nil)

func (s *Store) AddComponent(c catalog.Component) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.components[c.ID] = c
}

// AddBouquet stores b. Link components are resolved against the stored
// components when present.
func (s *Store) AddBouquet(b catalog.Bouquet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	links := make([]catalog.Link, len(b.Links))
	for i, l := range b.Links {
		if c, ok := s.st.components[l.Component.ID]; ok {
			l.Component = c
		} else {
			s.st.components[l.Component.ID] = l.Component
		}
		links[i] = l
	}
	b.Links = links
	s.st.bouquets[b.ID] = b
}

func (s *Store) GetBouquets(ctx context.Context, ids []string) (map[string]catalog.Bouquet, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	out := make(map[string]catalog.Bouquet, len(ids))
	for _, id := range ids {
		if b, ok := s.st.bouquets[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}

func (s *Store) GetComponent(ctx context.Context, id string) (catalog.Component, error) {
	s.rlock(ctx)
	defer s.runlock(ctx)
	c, ok := s.st.components[id]
	if !ok {
		return catalog.Component{}, catalog.ErrNotFound
	}
	return c, nil
}
