// Package testutil provides deterministic fakes for the generation and
// translation services so pipeline tests run without network access.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/thapargpt/thapargpt/internal/lang"
	"github.com/thapargpt/thapargpt/internal/rag"
)

// MockLLM provides deterministic generation and translation responses.
// It matches the user prompt against registered patterns and returns the
// corresponding response; unmatched prompts get the fallback.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu        sync.Mutex
	responses []mockRule
	fallback  string
	failures  int
	failErr   error
	calls     []MockCall
}

type mockRule struct {
	pattern  string
	response string
}

// MockCall records a single generation call.
type MockCall struct {
	System   string
	User     string
	Response string
}

// NewMockLLM creates a mock with the given fallback response.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// AddResponse registers a pattern-response pair. When a user prompt
// contains the pattern (case-insensitive), the response is returned.
// First registered match wins.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// FailNext makes the next n Generate calls return err before the mock
// resumes normal responses. Used to exercise retry behavior.
func (m *MockLLM) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
	m.failErr = err
}

// Calls returns a copy of all recorded generation calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Generate implements the assistant's generation dependency.
func (m *MockLLM) Generate(_ context.Context, p rag.Prompt) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failures > 0 {
		m.failures--
		return "", m.failErr
	}

	response := m.fallback
	lower := strings.ToLower(p.User)
	for _, r := range m.responses {
		if strings.Contains(lower, r.pattern) {
			response = r.response
			break
		}
	}

	m.calls = append(m.calls, MockCall{System: p.System, User: p.User, Response: response})
	return response, nil
}

// Translate implements rag.Translator by echoing the text with a
// language tag, which lets tests assert that a translation pass ran.
func (m *MockLLM) Translate(_ context.Context, text string, target lang.Language) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return "", m.failErr
	}
	return "[" + target.Code() + "] " + text, nil
}
