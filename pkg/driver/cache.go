package driver

import (
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru"

	"kotlite/pkg/parser"
)

// DefaultCacheSize is the number of analyzed scripts an Environment keeps.
const DefaultCacheSize = 64

// compileCache maps a script's name and content to its analyzed AST. Analyzed
// scripts are only read by the interpreter, so one AST serves any number of runs.
type compileCache struct {
	scripts *lru.Cache
}

// newCompileCache returns a cache of size entries; a negative size disables it.
func newCompileCache(size int) (*compileCache, error) {
	if size < 0 {
		return &compileCache{}, nil
	}
	if size == 0 {
		size = DefaultCacheSize
	}
	scripts, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &compileCache{scripts: scripts}, nil
}

type cacheKeyHash [sha256.Size]byte

func cacheKey(filename, src string) cacheKeyHash {
	h := sha256.New()
	h.Write([]byte(filename))
	h.Write([]byte{0})
	h.Write([]byte(src))
	var key cacheKeyHash
	h.Sum(key[:0])
	return key
}

func (c *compileCache) get(key cacheKeyHash) (*parser.ScriptNode, bool) {
	if c.scripts == nil {
		return nil, false
	}
	v, ok := c.scripts.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*parser.ScriptNode), true
}

func (c *compileCache) add(key cacheKeyHash, script *parser.ScriptNode) {
	if c.scripts != nil {
		c.scripts.Add(key, script)
	}
}

// Len reports the number of cached scripts.
func (c *compileCache) Len() int {
	if c.scripts == nil {
		return 0
	}
	return c.scripts.Len()
}
