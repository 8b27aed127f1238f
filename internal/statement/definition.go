package statement

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Wildcard as a leaf category expands the leaf into one row group per
// distinct category found in the data for that account.
const Wildcard = "*"

//go:embed income_statement.json
var defaultDefinitionJSON []byte

// Node is one element of a statement definition: a Group, a Leaf or a Total.
type Node interface {
	isNode()
}

// Group is a named header with ordered child nodes.
type Group struct {
	Name  string
	Items []Node
}

// Leaf selects ledger rows by account and, optionally, category.
// A nil Category matches every row for the account; Wildcard expands
// into one concrete leaf per distinct category.
type Leaf struct {
	Account  string
	Category *string
	Negative bool
}

// Total sums already emitted rows whose hier starts with one of Refs.
// A ref may use "/" as the path separator and a leading "-" to subtract.
type Total struct {
	Name string
	Refs []string
}

func (Group) isNode() {}
func (Leaf) isNode()  {}
func (Total) isNode() {}

// Definition is the ordered list of top-level statement nodes.
type Definition []Node

var ErrInvalidDefinition = errors.New("invalid statement definition")

type rawNode struct {
	Name     string    `json:"name,omitempty"`
	Items    []rawNode `json:"items,omitempty"`
	Account  string    `json:"account,omitempty"`
	Category *string   `json:"category,omitempty"`
	Negative bool      `json:"negative,omitempty"`
	Total    []string  `json:"total,omitempty"`
}

// ParseDefinition decodes a JSON statement definition.
func ParseDefinition(data []byte) (Definition, error) {
	var raw []rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode statement definition: %w", err)
	}
	def := make(Definition, 0, len(raw))
	for i, r := range raw {
		n, err := r.toNode()
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		def = append(def, n)
	}
	return def, nil
}

func (r rawNode) toNode() (Node, error) {
	switch {
	case r.Account != "":
		if r.Name != "" || len(r.Items) > 0 || r.Total != nil {
			return nil, fmt.Errorf("%w: account %q mixes leaf and group fields", ErrInvalidDefinition, r.Account)
		}
		return Leaf{Account: r.Account, Category: r.Category, Negative: r.Negative}, nil
	case r.Name != "" && r.Total != nil:
		if len(r.Items) > 0 {
			return nil, fmt.Errorf("%w: %q has both items and total", ErrInvalidDefinition, r.Name)
		}
		return Total{Name: r.Name, Refs: r.Total}, nil
	case r.Name != "":
		g := Group{Name: r.Name, Items: make([]Node, 0, len(r.Items))}
		for i, c := range r.Items {
			n, err := c.toNode()
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", r.Name, i, err)
			}
			g.Items = append(g.Items, n)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("%w: node has neither name nor account", ErrInvalidDefinition)
	}
}

// MarshalJSON encodes the definition in the same format ParseDefinition reads.
func (d Definition) MarshalJSON() ([]byte, error) {
	raw := make([]rawNode, 0, len(d))
	for _, n := range d {
		raw = append(raw, fromNode(n))
	}
	return json.Marshal(raw)
}

func fromNode(n Node) rawNode {
	switch v := n.(type) {
	case Group:
		r := rawNode{Name: v.Name, Items: make([]rawNode, 0, len(v.Items))}
		for _, c := range v.Items {
			r.Items = append(r.Items, fromNode(c))
		}
		return r
	case Leaf:
		return rawNode{Account: v.Account, Category: v.Category, Negative: v.Negative}
	case Total:
		return rawNode{Name: v.Name, Total: v.Refs}
	}
	return rawNode{}
}

// LoadDefinition reads a JSON definition from path.
func LoadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read statement definition: %w", err)
	}
	return ParseDefinition(data)
}

var defaultDefinition = sync.OnceValues(func() (Definition, error) {
	return ParseDefinition(defaultDefinitionJSON)
})

// DefaultDefinition returns the built-in income statement layout.
func DefaultDefinition() Definition {
	def, err := defaultDefinition()
	if err != nil {
		panic(fmt.Sprintf("embedded income statement definition: %v", err))
	}
	return def
}

// Category returns a pointer to c, for building leaves in code.
func Category(c string) *string {
	return &c
}
