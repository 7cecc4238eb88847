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

package filters

import "fmt"

// UnknownFilterError is returned when applying a filter name that is not
// registered.
type UnknownFilterError struct {
	// Name is the requested filter name.
	Name string
}

func (e *UnknownFilterError) Error() string {
	return fmt.Sprintf("unknown filter %q", e.Name)
}

// NewUnknownFilterError creates a new UnknownFilterError.
func NewUnknownFilterError(name string) *UnknownFilterError {
	return &UnknownFilterError{Name: name}
}
