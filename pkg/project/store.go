// Package project owns the in-memory {html, css, javascript} triple for a
// session and exposes the whole-file and search/replace mutations the agent
// tools are built on. The store is the single piece of mutable shared state
// in a session; the agent loop holds exclusive write access for the duration
// of a turn, so reads issued right after a mutation always observe it.
package project

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"zenith/pkg/domain"
)

var (
	// ErrInvalidTarget is returned when a file key is not one of
	// html, css, javascript.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrPatchNotFound is returned when the search string is absent from the
	// target file even after the lenient (trimmed) retry.
	ErrPatchNotFound = errors.New("search string not found")
)

// DefaultProject is the sentinel returned before the first generation.
var DefaultProject = domain.Project{
	HTML: `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>New Page</title>
</head>
<body>
<div class="min-h-screen flex items-center justify-center bg-gray-100">
  <h1 class="text-4xl font-bold text-gray-900">Hello World</h1>
</div>
</body>
</html>`,
	CSS:        "/* Styles */",
	JavaScript: "// Scripts",
}

// PatchOutcome reports how a patch landed.
type PatchOutcome struct {
	// Lenient is set when the exact search failed and the whitespace-trimmed
	// retry matched instead.
	Lenient bool
}

// Store holds the current project for one session. The zero value has no
// project; reads fall back to DefaultProject until the first mutation.
type Store struct {
	mu      sync.Mutex
	project *domain.Project
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Exists reports whether a project has been created yet.
func (s *Store) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project != nil
}

// ReadFiles returns a snapshot of the current project, or DefaultProject if
// none exists yet. The returned value is a copy; mutating it has no effect.
func (s *Store) ReadFiles() domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project == nil {
		return DefaultProject
	}
	return *s.project
}

// UpdateFile replaces the named file wholesale and returns the new snapshot.
func (s *Store) UpdateFile(target, content string) (domain.Project, error) {
	if !domain.ValidTarget(target) {
		return domain.Project{}, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current()
	setField(&next, target, content)
	s.project = &next
	return next, nil
}

// PatchFile replaces the first occurrence of search in the named file with
// replacement. An exact substring match is attempted first; if that fails the
// search string is trimmed of surrounding whitespace and retried, and a match
// on that path is flagged as lenient. Only the first occurrence is replaced;
// prompts instruct the model to craft unique search strings.
func (s *Store) PatchFile(target, search, replacement string) (domain.Project, PatchOutcome, error) {
	if !domain.ValidTarget(target) {
		return domain.Project{}, PatchOutcome{}, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current()
	content := getField(&next, target)

	if strings.Contains(content, search) {
		setField(&next, target, strings.Replace(content, search, replacement, 1))
		s.project = &next
		return next, PatchOutcome{}, nil
	}

	trimmed := strings.TrimSpace(search)
	if trimmed != search && strings.Contains(content, trimmed) {
		setField(&next, target, strings.Replace(content, trimmed, replacement, 1))
		s.project = &next
		return next, PatchOutcome{Lenient: true}, nil
	}

	return domain.Project{}, PatchOutcome{}, fmt.Errorf("%w in %s", ErrPatchNotFound, target)
}

// SetProject replaces the whole project. Used when restoring a session.
func (s *Store) SetProject(p domain.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = &p
}

func (s *Store) current() domain.Project {
	if s.project == nil {
		return DefaultProject
	}
	return *s.project
}

func getField(p *domain.Project, target string) string {
	switch target {
	case domain.TargetHTML:
		return p.HTML
	case domain.TargetCSS:
		return p.CSS
	case domain.TargetJavaScript:
		return p.JavaScript
	}
	return ""
}

func setField(p *domain.Project, target, content string) {
	switch target {
	case domain.TargetHTML:
		p.HTML = content
	case domain.TargetCSS:
		p.CSS = content
	case domain.TargetJavaScript:
		p.JavaScript = content
	}
}
