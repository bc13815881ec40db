package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
	lru "github.com/hashicorp/golang-lru/v2"
	mh "github.com/multiformats/go-multihash"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/synnergy-collab/nodecore/internal/nodeerr"
	"github.com/synnergy-collab/nodecore/internal/timesource"
)

const metaSuffix = ".meta"

// Manager implements spec.md C4: a durable key/value store split across
// hot/warm/cold tiers, backed by a flat directory of content-addressed
// files per tier plus an in-memory index.
type Manager struct {
	mu       sync.RWMutex
	dbRoot   string
	index    map[string]*Key
	readThru *lru.Cache[string, []byte]
	now      timesource.Source
	log      *logrus.Entry          // lifecycle events: index rebuild, tier moves
	stats    *zap.SugaredLogger // per-operation put/get/delete telemetry

	localUsed int64
}

// Config bounds a Manager per spec.md §6's storage.* configuration group.
type Config struct {
	DBPath     string
	CacheSize  int
	MaxLocal   int64
}

// New constructs a Manager rooted at cfg.DBPath and rebuilds its in-memory
// index by scanning the tier directories for metadata sidecars (spec.md
// §6: "Metadata is kept in memory and can be rebuilt by scanning at
// startup").
func New(cfg Config, now timesource.Source, log *logrus.Entry, stats *zap.SugaredLogger) (*Manager, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	cache, err := lru.New[string, []byte](cfg.CacheSize)
	if err != nil {
		return nil, nodeerr.Wrap(err, nodeerr.IoError, "construct storage read-through cache")
	}
	for _, tier := range []Tier{TierHot, TierWarm, TierCold} {
		if err := os.MkdirAll(filepath.Join(cfg.DBPath, string(tier)), 0o755); err != nil {
			return nil, nodeerr.Wrap(err, nodeerr.IoError, "create tier directory")
		}
	}
	m := &Manager{
		dbRoot:   cfg.DBPath,
		index:    make(map[string]*Key),
		readThru: cache,
		now:      now,
		log:      log,
		stats:    stats,
	}
	if err := m.rebuildIndex(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) rebuildIndex() error {
	for _, tier := range []Tier{TierHot, TierWarm, TierCold} {
		dir := filepath.Join(m.dbRoot, string(tier))
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nodeerr.Wrap(err, nodeerr.IoError, "scan tier directory")
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), metaSuffix) {
				continue
			}
			raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				continue
			}
			var k Key
			if err := json.Unmarshal(raw, &k); err != nil {
				continue
			}
			m.index[k.Key] = &k
			m.localUsed += k.Size
		}
	}
	if m.log != nil {
		m.log.WithField("entries", len(m.index)).Info("storage index rebuilt")
	}
	return nil
}

func contentFilename(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (m *Manager) contentPath(tier Tier, key string) string {
	return filepath.Join(m.dbRoot, string(tier), contentFilename(key))
}

func (m *Manager) metaPath(tier Tier, key string) string {
	return m.contentPath(tier, key) + metaSuffix
}

// contentHash computes a CIDv1/SHA2-256 content hash for value.
func contentHash(value []byte) (string, error) {
	sum, err := mh.Sum(value, mh.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

// Put serializes value, records its size and content hash, places it into a
// tier, and writes the content file plus a metadata sidecar (spec.md §4.4).
func (m *Manager) Put(key string, value []byte, opts PutOptions) (Key, error) {
	hash, err := contentHash(value)
	if err != nil {
		return Key{}, nodeerr.Wrap(err, nodeerr.IoError, "hash value")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tier := opts.Tier
	existing, hadExisting := m.index[key]
	if tier == "" {
		if hadExisting {
			age := time.Duration(m.now.NowMillis()-existing.CreatedAt) * time.Millisecond
			tier = tierForAge(age)
		} else {
			tier = TierHot
		}
	}

	if hadExisting && existing.Tier != tier {
		_ = os.Remove(m.contentPath(existing.Tier, key))
		_ = os.Remove(m.metaPath(existing.Tier, key))
		if m.log != nil {
			m.log.WithFields(logrus.Fields{"key": key, "from": string(existing.Tier), "to": string(tier)}).Info("storage entry moved between tiers")
		}
	}

	if err := os.WriteFile(m.contentPath(tier, key), value, 0o644); err != nil {
		return Key{}, nodeerr.Wrap(err, nodeerr.IoError, "write storage content file")
	}

	createdAt := m.now.NowMillis()
	if hadExisting {
		createdAt = existing.CreatedAt
	}
	k := Key{
		Key:       key,
		Size:      int64(len(value)),
		Hash:      hash,
		CreatedAt: createdAt,
		ExpiresAt: opts.ExpiresAt,
		Tier:      tier,
	}
	metaBytes, err := json.Marshal(k)
	if err != nil {
		return Key{}, nodeerr.Wrap(err, nodeerr.IoError, "marshal storage metadata")
	}
	if err := os.WriteFile(m.metaPath(tier, key), metaBytes, 0o644); err != nil {
		return Key{}, nodeerr.Wrap(err, nodeerr.IoError, "write storage metadata")
	}

	if hadExisting {
		m.localUsed += k.Size - existing.Size
	} else {
		m.localUsed += k.Size
	}
	m.index[key] = &k
	m.readThru.Add(key, append([]byte(nil), value...))

	if m.stats != nil {
		m.stats.Infow("storage put", "key", key, "tier", string(tier), "sizeBytes", k.Size)
	}
	return k, nil
}

// Get returns the value for key, or absent if no entry exists or it has
// expired (spec.md §4.4). A missing file for a known key self-heals by
// returning absent and dropping the stale metadata.
func (m *Manager) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	k, ok := m.index[key]
	if !ok {
		m.mu.Unlock()
		return nil, false, nil
	}
	if k.ExpiresAt != nil && *k.ExpiresAt <= m.now.NowMillis() {
		m.deleteLocked(key)
		m.mu.Unlock()
		return nil, false, nil
	}
	tier := k.Tier
	m.mu.Unlock()

	if v, ok := m.readThru.Get(key); ok {
		if m.stats != nil {
			m.stats.Infow("storage get", "key", key, "tier", string(tier), "readThrough", true)
		}
		return v, true, nil
	}

	v, err := os.ReadFile(m.contentPath(tier, key))
	if err != nil {
		if os.IsNotExist(err) {
			m.mu.Lock()
			m.deleteLocked(key)
			m.mu.Unlock()
			return nil, false, nil
		}
		return nil, false, nodeerr.Wrap(err, nodeerr.IoError, "read storage content file")
	}
	m.readThru.Add(key, v)
	if m.stats != nil {
		m.stats.Infow("storage get", "key", key, "tier", string(tier), "readThrough", false)
	}
	return v, true, nil
}

// Delete drops key from the cache, metadata index, and disk.
func (m *Manager) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(key)
}

func (m *Manager) deleteLocked(key string) bool {
	k, ok := m.index[key]
	if !ok {
		return false
	}
	_ = os.Remove(m.contentPath(k.Tier, key))
	_ = os.Remove(m.metaPath(k.Tier, key))
	m.readThru.Remove(key)
	delete(m.index, key)
	m.localUsed -= k.Size
	if m.stats != nil {
		m.stats.Infow("storage delete", "key", key, "tier", string(k.Tier))
	}
	return true
}

// Scan returns every (key, value) pair whose key has the given prefix
// (spec.md §4.4).
func (m *Manager) Scan(prefix string) ([]KV, error) {
	m.mu.RLock()
	var keys []string
	for k := range m.index {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()

	out := make([]KV, 0, len(keys))
	for _, k := range keys {
		v, ok, err := m.Get(k)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, KV{Key: k, Value: v})
	}
	return out, nil
}

// KV is a scan result pair.
type KV struct {
	Key   string
	Value []byte
}

// Stats reports the spec.md §4.4 statistics. A raw file-tree implementation
// reports a synthetic compression ratio of 1.0 (no compression) and a
// synthetic fragmentation estimate of 100 × (read-through cache entries) /
// (4 × indexed keys), per spec.md §4.4 ("Compression and fragmentation
// numbers are provider-defined").
func (m *Manager) Stats(maxLocal int64) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	frag := 0.0
	if len(m.index) > 0 {
		frag = 100.0 * float64(m.readThru.Len()) / float64(len(m.index)*4)
	}
	return Stats{
		LocalUsed:            m.localUsed,
		LocalTotal:           maxLocal,
		CompressionRatio:     1.0,
		FragmentationPercent: frag,
	}
}
