package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind partitions cached responses by how quickly they go stale
type Kind string

// Cache kinds with their freshness windows
const (
	KindSearch  Kind = "search"
	KindDetails Kind = "details"
	KindCatalog Kind = "catalog"
	KindCurated Kind = "curated"
)

var kindTTL = map[Kind]time.Duration{
	KindSearch:  3 * 24 * time.Hour,
	KindDetails: 7 * 24 * time.Hour,
	KindCatalog: 24 * time.Hour,
	KindCurated: 30 * 24 * time.Hour,
}

// TTL returns the freshness window for a kind, zero for unknown kinds
func (k Kind) TTL() time.Duration { return kindTTL[k] }

// Key identifies a cached response. Parts carry the request specific
// values, typically the URL or the query terms
type Key struct {
	Source string
	Kind   Kind
	Parts  []string
}

func (k Key) filename() string {
	h := sha256.New()
	h.Write([]byte(k.Source))
	h.Write([]byte{0})
	h.Write([]byte(k.Kind))
	for _, p := range k.Parts {
		h.Write([]byte{0})
		h.Write([]byte(strings.ToLower(strings.TrimSpace(p))))
	}
	return string(k.Kind) + "-" + hex.EncodeToString(h.Sum(nil))[:32]
}

// cacheMeta is the sidecar json next to each payload
type cacheMeta struct {
	FetchedAt time.Time `json:"fetched_at"`
	Kind      Kind      `json:"kind"`
}

// ResponseCache stores fetched payloads on disk, one file per key plus a
// .meta sidecar. Entries past their kind's freshness window read as misses
type ResponseCache struct {
	dir string
	now func() time.Time
}

// NewResponseCache creates the cache rooted at dir, creating it as needed
func NewResponseCache(dir string) *ResponseCache {
	_ = os.MkdirAll(dir, 0o755)
	return &ResponseCache{dir: dir, now: time.Now}
}

// Get returns the cached payload for key when present and fresh.
// A missing, expired, or unreadable entry reads as a miss
func (c *ResponseCache) Get(key Key) ([]byte, bool) {
	path := filepath.Join(c.dir, key.filename())
	raw, err := os.ReadFile(path + ".meta")
	if err != nil {
		return nil, false
	}
	var meta cacheMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, false
	}
	ttl := key.Kind.TTL()
	if ttl <= 0 || c.now().Sub(meta.FetchedAt) >= ttl {
		return nil, false
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return payload, true
}

// Put stores payload under key. Writes go to a .part file first and are
// renamed into place so readers never see a torn entry
func (c *ResponseCache) Put(key Key, payload []byte) error {
	path := filepath.Join(c.dir, key.filename())
	if err := writeAtomic(path, payload); err != nil {
		return err
	}
	meta, err := json.Marshal(cacheMeta{FetchedAt: c.now().UTC(), Kind: key.Kind})
	if err != nil {
		return err
	}
	return writeAtomic(path+".meta", meta)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
