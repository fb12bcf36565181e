package catalog

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type SnapshotStore struct {
	Code string `yaml:"code"`
	Name string `yaml:"name,omitempty"`
}

type SnapshotProduct struct {
	SKU    string `yaml:"sku"`
	Name   string `yaml:"name,omitempty"`
	Active *bool  `yaml:"active,omitempty"`
}

// Snapshot is an immutable in-memory catalog, typically loaded from YAML:
//
//	stores:
//	  - code: S1
//	products:
//	  - sku: SKU-A
//	    active: true
type Snapshot struct {
	Stores   []SnapshotStore   `yaml:"stores"`
	Products []SnapshotProduct `yaml:"products"`

	stores   map[string]struct{}
	products map[string]*bool
}

var _ Oracle = (*Snapshot)(nil)

// ParseSnapshot decodes a YAML snapshot.
func ParseSnapshot(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog snapshot: %w", err)
	}
	s.index()
	return &s, nil
}

// LoadSnapshot reads a YAML snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog snapshot: %w", err)
	}
	defer f.Close()
	return ParseSnapshot(f)
}

func (s *Snapshot) index() {
	s.stores = make(map[string]struct{}, len(s.Stores))
	for _, st := range s.Stores {
		s.stores[st.Code] = struct{}{}
	}
	s.products = make(map[string]*bool, len(s.Products))
	for _, p := range s.Products {
		s.products[p.SKU] = p.Active
	}
}

func (s *Snapshot) StoreExists(_ context.Context, code string) (bool, error) {
	_, ok := s.stores[code]
	return ok, nil
}

func (s *Snapshot) ProductExists(_ context.Context, sku string) (bool, error) {
	_, ok := s.products[sku]
	return ok, nil
}

func (s *Snapshot) ProductActive(_ context.Context, sku string) (bool, bool, error) {
	active, ok := s.products[sku]
	if !ok || active == nil {
		return false, false, nil
	}
	return *active, true, nil
}
