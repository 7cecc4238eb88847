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
	"strings"
)

// snippetLength bounds the template source kept in a CompilationError.
const snippetLength = 200

// CompilationError reports a template that failed to parse.
type CompilationError struct {
	// TemplateName is the name of the template that failed to compile
	TemplateName string

	// TemplateSnippet holds the start of the template source
	TemplateSnippet string

	// Cause is the error reported by gonja
	Cause error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile template '%s': %v", e.TemplateName, e.Cause)
}

func (e *CompilationError) Unwrap() error {
	return e.Cause
}

// RenderError reports a failed render. Failing data sources and
// cancellation surface here with their original error as Cause.
type RenderError struct {
	// TemplateName is the name of the template that failed to render
	TemplateName string

	// Cause is the filter or gonja error that stopped the render
	Cause error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render template '%s': %v", e.TemplateName, e.Cause)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// TemplateNotFoundError reports a render of an unknown template.
type TemplateNotFoundError struct {
	// TemplateName is the name of the requested template
	TemplateName string

	// AvailableTemplates lists the known template names, sorted
	AvailableTemplates []string
}

func (e *TemplateNotFoundError) Error() string {
	if len(e.AvailableTemplates) == 0 {
		return fmt.Sprintf("template '%s' not found", e.TemplateName)
	}
	return fmt.Sprintf("template '%s' not found (available: %s)",
		e.TemplateName, strings.Join(e.AvailableTemplates, ", "))
}

// UnsupportedEngineError reports an engine type New cannot build.
type UnsupportedEngineError struct {
	EngineType EngineType
}

func (e *UnsupportedEngineError) Error() string {
	return fmt.Sprintf("unsupported template engine type: %s", e.EngineType)
}

// NewCompilationError creates a CompilationError, truncating the template
// source to a snippet.
func NewCompilationError(templateName, templateContent string, cause error) *CompilationError {
	snippet := templateContent
	if len(snippet) > snippetLength {
		snippet = snippet[:snippetLength] + "..."
	}
	return &CompilationError{
		TemplateName:    templateName,
		TemplateSnippet: snippet,
		Cause:           cause,
	}
}

// NewRenderError creates a RenderError.
func NewRenderError(templateName string, cause error) *RenderError {
	return &RenderError{TemplateName: templateName, Cause: cause}
}

// NewTemplateNotFoundError creates a TemplateNotFoundError.
func NewTemplateNotFoundError(templateName string, availableTemplates []string) *TemplateNotFoundError {
	return &TemplateNotFoundError{TemplateName: templateName, AvailableTemplates: availableTemplates}
}

// NewUnsupportedEngineError creates an UnsupportedEngineError.
func NewUnsupportedEngineError(engineType EngineType) *UnsupportedEngineError {
	return &UnsupportedEngineError{EngineType: engineType}
}
