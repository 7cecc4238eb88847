// Copyright 2025 Philipp Hossner
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scope implements the chain of variable scopes a template renders
// against.
//
// A child scope either sees through to its parent on lookup misses or is
// an isolation boundary. Scopes belong to a single render and are not safe
// for concurrent use.
package scope

import (
	"context"
	"sort"

	"liquidcore/pkg/value"
)

// Scope maps names to values.
type Scope struct {
	properties  map[string]value.Value
	parent      *Scope
	checkParent bool
}

// New creates a root scope.
func New() *Scope {
	return &Scope{properties: make(map[string]value.Value)}
}

// NewChild creates a scope below parent. With keepParent false, lookups
// never reach parent.
func NewChild(parent *Scope, keepParent bool) *Scope {
	return &Scope{
		properties:  make(map[string]value.Value),
		parent:      parent,
		checkParent: keepParent,
	}
}

// Get returns the value bound to name here or, when this scope checks its
// parent, in the nearest ancestor. Misses return value.Nil. An empty name
// is a programming error and panics.
func (s *Scope) Get(name string) value.Value {
	mustName(name)

	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.properties[name]; ok {
			return v
		}
		if !cur.checkParent {
			break
		}
	}
	return value.Nil
}

// Set binds name to v, replacing any existing binding in this scope. A nil
// v is stored as value.Nil.
func (s *Scope) Set(name string, v value.Value) {
	mustName(name)
	if v == nil {
		v = value.Nil
	}
	s.properties[name] = v
}

// Delete removes the binding of name from this scope only.
func (s *Scope) Delete(name string) {
	delete(s.properties, name)
}

// EnterChild creates a child scope of s.
func (s *Scope) EnterChild(keepParent bool) *Scope {
	return NewChild(s, keepParent)
}

// Leave returns the parent scope, nil for a root.
func (s *Scope) Leave() *Scope {
	return s.parent
}

// Properties returns the names bound in this scope, sorted.
func (s *Scope) Properties() []string {
	names := make([]string, 0, len(s.properties))
	for name := range s.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Visible returns the names Get resolves from s, sorted.
func (s *Scope) Visible() []string {
	seen := make(map[string]bool)
	for cur := s; cur != nil; cur = cur.parent {
		for name := range cur.properties {
			seen[name] = true
		}
		if !cur.checkParent {
			break
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetIndex looks up the name given by the text of index.
func (s *Scope) GetIndex(ctx context.Context, index value.Value) (value.Value, error) {
	name, err := index.ToText(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return value.Nil, nil
	}
	return s.Get(name), nil
}

func mustName(name string) {
	if name == "" {
		panic("scope: empty variable name")
	}
}
