// Package fixture loads order books and matching scenarios from YAML.
package fixture

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/erain9/ordercache/pkg/core"
	"gopkg.in/yaml.v3"
)

//go:embed canonical.yaml
var canonicalYAML []byte

// OrderSpec is one order as written in a fixture file. The keys match the
// order's JSON form.
type OrderSpec struct {
	ID         string `yaml:"orderid"`
	SecurityID string `yaml:"securityid"`
	Side       string `yaml:"side"`
	Qty        uint64 `yaml:"qty"`
	User       string `yaml:"user"`
	Company    string `yaml:"company"`
}

// Order builds the core.Order described by s
func (s OrderSpec) Order() (*core.Order, error) {
	side, err := core.ParseSide(s.Side)
	if err != nil {
		return nil, fmt.Errorf("order %q: %w", s.ID, err)
	}
	order, err := core.NewOrder(s.ID, s.SecurityID, side, s.Qty, s.User, s.Company)
	if err != nil {
		return nil, fmt.Errorf("order %q: %w", s.ID, err)
	}
	return order, nil
}

// Expectation is the matching size a scenario expects for one security
type Expectation struct {
	Security string `yaml:"security"`
	Size     uint64 `yaml:"size"`
}

// Scenario is a set of orders and the matching sizes they should produce
type Scenario struct {
	Name    string        `yaml:"name"`
	UseBook bool          `yaml:"use_book"`
	Orders  []OrderSpec   `yaml:"orders"`
	Expect  []Expectation `yaml:"expect"`
}

// File is a parsed fixture. Book drives the add and cancel checks; each
// scenario drives matching checks.
type File struct {
	Book      []OrderSpec `yaml:"book"`
	Scenarios []Scenario  `yaml:"scenarios"`
}

// Parse decodes and validates a fixture document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty fixture: %w", core.ErrInvalidArgument)
		}
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load reads and parses the fixture at path
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return Parse(data)
}

// Canonical returns the built-in fixture
func Canonical() *File {
	f, err := Parse(canonicalYAML)
	if err != nil {
		panic(fmt.Sprintf("canonical fixture: %v", err))
	}
	return f
}

// BookOrders converts the book into orders
func (f *File) BookOrders() ([]*core.Order, error) {
	return toOrders(f.Book)
}

// ScenarioOrders returns the orders of s, which is the book when s.UseBook is set
func (f *File) ScenarioOrders(s Scenario) ([]*core.Order, error) {
	if s.UseBook {
		return toOrders(f.Book)
	}
	return toOrders(s.Orders)
}

func toOrders(specs []OrderSpec) ([]*core.Order, error) {
	orders := make([]*core.Order, 0, len(specs))
	for _, spec := range specs {
		order, err := spec.Order()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (f *File) validate() error {
	if _, err := f.BookOrders(); err != nil {
		return fmt.Errorf("book: %w", err)
	}

	for i, s := range f.Scenarios {
		if s.Name == "" {
			return fmt.Errorf("scenario %d has no name: %w", i, core.ErrInvalidArgument)
		}
		if s.UseBook && len(s.Orders) > 0 {
			return fmt.Errorf("scenario %s sets both use_book and orders: %w", s.Name, core.ErrInvalidArgument)
		}
		if s.UseBook && len(f.Book) == 0 {
			return fmt.Errorf("scenario %s uses an empty book: %w", s.Name, core.ErrInvalidArgument)
		}
		if _, err := toOrders(s.Orders); err != nil {
			return fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		for _, e := range s.Expect {
			if e.Security == "" {
				return fmt.Errorf("scenario %s has an expectation without security: %w", s.Name, core.ErrInvalidArgument)
			}
		}
	}
	return nil
}
