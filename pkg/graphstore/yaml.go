// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graphstore

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// graphFile is the YAML representation of a Store.
type graphFile struct {
	Undirected    bool           `yaml:"undirected"`
	Nodes         []Node         `yaml:"nodes"`
	Relationships []Relationship `yaml:"relationships"`
}

// LoadYAML reads a Store from YAML. Example:
//
//	undirected: true
//	nodes:
//	  - id: 0
//	    labels: [Person]
//	    properties: {age: 31, score: 0.5}
//	  - id: 1
//	    labels: [Person]
//	    properties: {age: 25}
//	relationships:
//	  - {source: 0, target: 1, type: KNOWS}
func LoadYAML(r io.Reader) (*Store, error) {
	var file graphFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, errors.Wrap(err, "failed to parse graph YAML")
	}
	s := New(file.Undirected)
	for _, node := range file.Nodes {
		if err := s.AddNode(node.Id, node.Labels, node.Properties); err != nil {
			return nil, err
		}
	}
	for _, rel := range file.Relationships {
		if err := s.AddRelationship(rel.Source, rel.Target, rel.Type); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LoadFile reads a Store from a YAML file, see LoadYAML.
func LoadFile(filePath string) (*Store, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening graph file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	s, err := LoadYAML(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading graph from %q", filePath)
	}
	return s, nil
}
