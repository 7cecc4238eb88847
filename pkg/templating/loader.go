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

package templating

import (
	"fmt"
	"io"
	"strings"

	"github.com/nikolalohinski/gonja/v2/loaders"
)

// mapLoader serves templates from memory by name, so templates can include
// each other with {% include "name" %}.
type mapLoader struct {
	templates map[string]string
}

func newMapLoader(templates map[string]string) loaders.Loader {
	return &mapLoader{templates: templates}
}

func (l *mapLoader) Read(name string) (io.Reader, error) {
	content, exists := l.templates[name]
	if !exists {
		return nil, fmt.Errorf("template not found: %s", name)
	}
	return strings.NewReader(content), nil
}

func (l *mapLoader) Resolve(name string) (string, error) {
	if _, exists := l.templates[name]; !exists {
		return "", fmt.Errorf("template not found: %s", name)
	}
	return name, nil
}

// Inherit returns l. Template names are flat.
func (l *mapLoader) Inherit(string) (loaders.Loader, error) {
	return l, nil
}
