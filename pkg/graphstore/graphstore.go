// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graphstore implements a small in-memory property graph: nodes with labels and properties,
// and relationships between them. It provides what the embedding models need from a graph store:
// iteration over nodes, reading numeric properties and the neighborhood of nodes.
//
// Stores can be built programmatically or loaded from YAML, see LoadYAML for the format.
package graphstore

import (
	"fmt"
	"slices"

	"github.com/gomlx/graphsage/pkg/core/tensors"
	"github.com/pkg/errors"
)

// NodeId identifies a node in the Store.
type NodeId = int64

// Node of the graph.
type Node struct {
	Id         NodeId         `yaml:"id"`
	Labels     []string       `yaml:"labels,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// HasLabel returns whether the node has the given label.
func (n *Node) HasLabel(label string) bool {
	return slices.Contains(n.Labels, label)
}

// Relationship between two nodes.
type Relationship struct {
	Source NodeId `yaml:"source"`
	Target NodeId `yaml:"target"`
	Type   string `yaml:"type,omitempty"`
}

// Store is an in-memory property graph.
//
// It is safe for concurrent reads, but not for concurrent modifications.
type Store struct {
	undirected bool
	nodes      []*Node
	index      map[NodeId]int
	neighbors  map[NodeId][]NodeId
	numRels    int
}

// New creates an empty Store. If undirected is true, relationships are traversed in both directions.
func New(undirected bool) *Store {
	return &Store{
		undirected: undirected,
		index:      make(map[NodeId]int),
		neighbors:  make(map[NodeId][]NodeId),
	}
}

// Undirected returns whether relationships are traversed in both directions.
func (s *Store) Undirected() bool { return s.undirected }

// NumNodes in the store.
func (s *Store) NumNodes() int { return len(s.nodes) }

// NumRelationships in the store.
func (s *Store) NumRelationships() int { return s.numRels }

// AddNode adds a node to the store. It returns an error if a node with the same id already exists.
func (s *Store) AddNode(id NodeId, labels []string, properties map[string]any) error {
	if _, found := s.index[id]; found {
		return errors.Errorf("node %d already exists", id)
	}
	s.index[id] = len(s.nodes)
	s.nodes = append(s.nodes, &Node{Id: id, Labels: slices.Clone(labels), Properties: properties})
	return nil
}

// AddRelationship adds a relationship from source to target. Both nodes must exist.
func (s *Store) AddRelationship(source, target NodeId, relType string) error {
	for _, id := range []NodeId{source, target} {
		if _, found := s.index[id]; !found {
			return errors.Errorf("relationship %d->%d (%q): node %d doesn't exist", source, target, relType, id)
		}
	}
	s.neighbors[source] = append(s.neighbors[source], target)
	if s.undirected && source != target {
		s.neighbors[target] = append(s.neighbors[target], source)
	}
	s.numRels++
	return nil
}

// Node returns the node with the given id, or nil if it doesn't exist.
func (s *Store) Node(id NodeId) *Node {
	idx, found := s.index[id]
	if !found {
		return nil
	}
	return s.nodes[idx]
}

// ForEachNode calls fn with the id of every node with the given label, in insertion order,
// until fn returns false. An empty label means any label.
func (s *Store) ForEachNode(label string, fn func(id NodeId) bool) {
	for _, node := range s.nodes {
		if label != "" && !node.HasLabel(label) {
			continue
		}
		if !fn(node.Id) {
			return
		}
	}
}

// NodeIds returns the ids of all the nodes with the given label. An empty label means any label.
func (s *Store) NodeIds(label string) []NodeId {
	var ids []NodeId
	s.ForEachNode(label, func(id NodeId) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// Neighbors returns the ids of the nodes reachable from id through one relationship.
// The returned slice must not be modified.
func (s *Store) Neighbors(id NodeId) []NodeId {
	return s.neighbors[id]
}

// UnsupportedTypeError is returned when reading as a number a property value that is not numeric.
type UnsupportedTypeError struct {
	Value any
	Type  string
}

// Error implements the error interface.
func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported type [%s] of value %v, please use a numeric property", e.Type, e.Value)
}

// ExtractValue converts a property value to float64. A nil value (missing property) returns defaultValue,
// and non-numeric values return an *UnsupportedTypeError: values are never coerced.
func ExtractValue(value any, defaultValue float64) (float64, error) {
	switch v := value.(type) {
	case nil:
		return defaultValue, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, errors.WithStack(&UnsupportedTypeError{Value: value, Type: fmt.Sprintf("%T", value)})
	}
}

// ReadProperty reads the property key of node id as a float64. If the node doesn't have the property,
// it returns defaultValue. It returns an error if the node doesn't exist, or an *UnsupportedTypeError
// if the value is not numeric.
func (s *Store) ReadProperty(id NodeId, key string, defaultValue float64) (float64, error) {
	node := s.Node(id)
	if node == nil {
		return 0, errors.Errorf("node %d doesn't exist", id)
	}
	value, err := ExtractValue(node.Properties[key], defaultValue)
	if err != nil {
		return 0, errors.WithMessagef(err, "reading property %q of node %d", key, id)
	}
	return value, nil
}

// Features returns a matrix with one row per node in ids, and one column per property in keys,
// read with ReadProperty.
func (s *Store) Features(ids []NodeId, keys []string, defaultValue float64) (*tensors.Tensor, error) {
	if len(ids) == 0 || len(keys) == 0 {
		return nil, errors.Errorf("Features requires at least one node (got %d) and one property key (got %d)", len(ids), len(keys))
	}
	features := tensors.Constant(0, len(ids), len(keys))
	flat := features.Flat()
	for row, id := range ids {
		for col, key := range keys {
			value, err := s.ReadProperty(id, key, defaultValue)
			if err != nil {
				return nil, err
			}
			flat[row*len(keys)+col] = value
		}
	}
	return features, nil
}
