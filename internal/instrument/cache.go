package instrument

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/efreitasn/papertrade/internal/domain"
)

// Cache is a read-through Reference: in-memory map, then a JSON file under
// dir, then the upstream source. Instruments fetched from upstream are
// stored as tradable so the simulator can trade anything it can resolve.
// An empty dir disables the file layer.
type Cache struct {
	upstream Reference
	dir      string
	logger   *zap.Logger

	mu    sync.RWMutex
	byKey map[string]domain.Instrument
	lists map[domain.InstrumentType][]domain.Instrument

	group singleflight.Group
}

// NewCache creates a cache in front of upstream.
func NewCache(upstream Reference, dir string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		upstream: upstream,
		dir:      dir,
		logger:   logger,
		byKey:    make(map[string]domain.Instrument),
		lists:    make(map[domain.InstrumentType][]domain.Instrument),
	}
}

// Resolve implements Reference. Concurrent misses for the same key share
// one fetch.
func (c *Cache) Resolve(ctx context.Context, l Lookup) (domain.Instrument, error) {
	key := l.CacheKey()

	c.mu.RLock()
	inst, ok := c.byKey[key]
	c.mu.RUnlock()
	if ok {
		return inst, nil
	}

	v, err, _ := c.group.Do("instrument/"+key, func() (any, error) {
		c.mu.RLock()
		inst, ok := c.byKey[key]
		c.mu.RUnlock()
		if ok {
			return inst, nil
		}

		path, err := c.path("instrument", key)
		if err != nil {
			return nil, err
		}
		if found, err := readJSON(path, &inst); err != nil {
			return nil, err
		} else if !found {
			inst, err = c.upstream.Resolve(ctx, l)
			if err != nil {
				return nil, err
			}
			inst.BuyAvailable = true
			inst.SellAvailable = true
			if err := writeJSON(path, inst); err != nil {
				c.logger.Warn("instrument cache write failed", zap.String("key", key), zap.Error(err))
			}
			c.logger.Debug("instrument fetched", zap.String("key", key))
		}

		c.mu.Lock()
		c.byKey[key] = inst
		c.mu.Unlock()
		return inst, nil
	})
	if err != nil {
		return domain.Instrument{}, err
	}
	return v.(domain.Instrument), nil
}

// List implements Reference with the same layering, one file per type.
func (c *Cache) List(ctx context.Context, t domain.InstrumentType) ([]domain.Instrument, error) {
	c.mu.RLock()
	list, ok := c.lists[t]
	c.mu.RUnlock()
	if ok {
		return list, nil
	}

	name := string(t)
	if name == "" {
		name = "all"
	}
	v, err, _ := c.group.Do("instruments/"+name, func() (any, error) {
		var list []domain.Instrument
		path, err := c.path("instruments", name)
		if err != nil {
			return nil, err
		}
		if found, err := readJSON(path, &list); err != nil {
			return nil, err
		} else if !found {
			list, err = c.upstream.List(ctx, t)
			if err != nil {
				return nil, err
			}
			if err := writeJSON(path, list); err != nil {
				c.logger.Warn("instrument list cache write failed", zap.String("type", name), zap.Error(err))
			}
		}

		c.mu.Lock()
		c.lists[t] = list
		c.mu.Unlock()
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Instrument), nil
}

// path returns the cache file for name, refusing names that would leave
// the kind directory.
func (c *Cache) path(kind, name string) (string, error) {
	if c.dir == "" {
		return "", nil
	}
	file := name + ".json"
	if !filepath.IsLocal(file) || filepath.Base(file) != file {
		return "", &domain.ValidationError{Message: fmt.Sprintf("invalid instrument cache key %q", name)}
	}
	return filepath.Join(c.dir, kind, file), nil
}

func readJSON(path string, v any) (bool, error) {
	if path == "" {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cache %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode cache %s: %w", path, err)
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
