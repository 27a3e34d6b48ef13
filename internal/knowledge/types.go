package knowledge

import "time"

// Document is a knowledge passage stored in the vector index.
type Document struct {
	ID       string            // Unique identifier
	Content  string            // Passage text
	Metadata map[string]string // Optional metadata (source title, section, etc.)
	CreateAt time.Time         // Creation timestamp
}

// Result is a retrieved passage with its cosine similarity score.
// Results are ordered by similarity descending, ties broken by document ID
// ascending, so identical queries always retrieve in the same order.
type Result struct {
	Document   Document
	Similarity float32
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int
	filter  map[string]string
	timeout time.Duration
}

// WithTopK sets the maximum number of results to return.
// Values outside [1, 10] are clamped. Default is 3.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k < 1 {
			k = 1
		}
		if k > 10 {
			k = 10
		}
		c.topK = k
	}
}

// WithFilter adds a metadata filter to restrict search results.
// Multiple calls add additional filters (AND logic).
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithTimeout overrides the default search timeout.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    3,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
