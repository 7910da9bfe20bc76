package compile

import (
	"errors"
	"slices"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/ysv-rs/ysv/internal/config"
	"github.com/ysv-rs/ysv/internal/diag"
	"github.com/ysv-rs/ysv/internal/transformer"
)

// New compiles every column of doc, in declaration order, against header.
//
// Compilation is fail-fast: the first column that cannot be compiled aborts
// it and the returned *diag.ConfigParseError names that column. Resolution
// warnings are reported with the column name filled in.
func New(doc *config.Document, header []string, vars config.Variables, opts Options) (*transformer.Transformer, error) {
	idx := IndexHeader(header)
	base := opts.reporter()

	cols := make([]transformer.Column, 0, len(doc.Columns))
	for _, c := range doc.Columns {
		name := c.Name
		colOpts := opts
		colOpts.Reporter = diag.ReporterFunc(func(d diag.Diagnostic) {
			d.Column = name
			base.Report(d)
		})

		chain, err := Column(c.Spec, idx, vars, colOpts)
		if err != nil {
			var cpe *diag.ConfigParseError
			if errors.As(err, &cpe) && cpe.Column == "" {
				cpe.Column = name
			}
			return nil, err
		}
		cols = append(cols, transformer.Column{Name: name, Chain: chain})
	}
	return transformer.New(cols), nil
}

// Cache memoizes transformers per distinct header. Headers are bucketed by
// an xxh3 fingerprint and compared in full on lookup.
type Cache struct {
	doc  *config.Document
	vars config.Variables
	opts Options

	mu      sync.Mutex
	buckets map[uint64][]cacheEntry
	misses  int
}

type cacheEntry struct {
	header []string
	tr     *transformer.Transformer
}

// NewCache returns an empty cache bound to one document and variable set.
func NewCache(doc *config.Document, vars config.Variables, opts Options) *Cache {
	return &Cache{doc: doc, vars: vars, opts: opts, buckets: make(map[uint64][]cacheEntry)}
}

// Get returns the transformer for header, compiling it on first sight.
// hit reports whether a previously compiled transformer was reused.
func (c *Cache) Get(header []string) (tr *transformer.Transformer, hit bool, err error) {
	key := Fingerprint(header)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.buckets[key] {
		if slices.Equal(e.header, header) {
			return e.tr, true, nil
		}
	}
	tr, err = New(c.doc, header, c.vars, c.opts)
	if err != nil {
		return nil, false, err
	}
	c.misses++
	c.buckets[key] = append(c.buckets[key], cacheEntry{header: slices.Clone(header), tr: tr})
	return tr, false, nil
}

// Compiled reports how many distinct headers have been compiled.
func (c *Cache) Compiled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.misses
}

// Fingerprint hashes header cells with a separator that cannot occur in
// CSV-decoded UTF-8 text, so ["ab","c"] and ["a","bc"] differ.
func Fingerprint(header []string) uint64 {
	h := xxh3.New()
	for _, name := range header {
		_, _ = h.WriteString(name)
		_, _ = h.Write([]byte{0xff})
	}
	return h.Sum64()
}
