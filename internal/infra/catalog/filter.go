// Package catalog provides the local media catalog: enumerating playable
// tracks from configured library sources.
package catalog

import (
	"path/filepath"
	"strings"
)

// Entry represents one filesystem entry offered to the scan filters.
type Entry struct {
	Path string // Absolute path
	Name string // Base name
}

// Result represents the result of a scan filter check.
type Result struct {
	Accepted bool
	Code     string // e.g. "unsupported_extension", "hidden", "duplicate", "limit"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for scan filters.
type Filter interface {
	// Name returns the filter name (used in logs).
	Name() string
	// Check decides whether the entry becomes a catalog track.
	Check(e Entry) Result
}

// Chain executes filters in sequence, stopping at the first rejection.
type Chain struct {
	filters []Filter
}

// NewChain creates a new scan filter chain.
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Check runs all filters in sequence, returning the first rejection.
func (c *Chain) Check(e Entry) Result {
	for _, f := range c.filters {
		if result := f.Check(e); !result.Accepted {
			return result
		}
	}
	return Accept()
}

// ExtensionFilter accepts only entries with a supported audio extension.
type ExtensionFilter struct {
	extensions map[string]struct{}
}

// NewExtensionFilter creates an extension filter. Extensions are matched
// case-insensitively and may be given with or without the leading dot.
func NewExtensionFilter(extensions []string) *ExtensionFilter {
	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		set["."+ext] = struct{}{}
	}
	return &ExtensionFilter{extensions: set}
}

func (f *ExtensionFilter) Name() string { return "extension" }

func (f *ExtensionFilter) Check(e Entry) Result {
	if _, ok := f.extensions[strings.ToLower(filepath.Ext(e.Name))]; !ok {
		return Reject("unsupported_extension")
	}
	return Accept()
}

// HiddenFilter rejects dotfiles.
type HiddenFilter struct{}

func (f *HiddenFilter) Name() string { return "hidden" }

func (f *HiddenFilter) Check(e Entry) Result {
	if strings.HasPrefix(e.Name, ".") {
		return Reject("hidden")
	}
	return Accept()
}

// DuplicateFilter rejects paths already seen, e.g. when sources overlap.
type DuplicateFilter struct {
	seen map[string]struct{}
}

// NewDuplicateFilter creates a duplicate-path filter.
func NewDuplicateFilter() *DuplicateFilter {
	return &DuplicateFilter{seen: make(map[string]struct{})}
}

func (f *DuplicateFilter) Name() string { return "duplicate" }

func (f *DuplicateFilter) Check(e Entry) Result {
	if _, ok := f.seen[e.Path]; ok {
		return Reject("duplicate")
	}
	f.seen[e.Path] = struct{}{}
	return Accept()
}

// LimitFilter rejects entries once the accepted count reaches the limit.
// A non-positive limit accepts everything.
type LimitFilter struct {
	limit int
	count int
}

// NewLimitFilter creates a limit filter.
func NewLimitFilter(limit int) *LimitFilter {
	return &LimitFilter{limit: limit}
}

func (f *LimitFilter) Name() string { return "limit" }

func (f *LimitFilter) Check(e Entry) Result {
	if f.limit > 0 && f.count >= f.limit {
		return Reject("limit")
	}
	f.count++
	return Accept()
}
