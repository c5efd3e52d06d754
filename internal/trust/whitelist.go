package trust

import "sync"

// macWhitelist is a lazily-rebuilt snapshot of the MAC addresses of
// currently-active devices. It is purely a read optimization over the
// device registry, never authoritative. Every invalidation bumps a
// generation counter; a rebuilt snapshot only installs if no further
// invalidation happened while it was being read from the registry, so
// a rebuild racing a revocation can never resurrect stale data.
type macWhitelist struct {
	mu    sync.RWMutex
	macs  map[string]struct{}
	valid bool
	gen   uint64
}

// lookup returns whether the MAC is in the snapshot and whether the
// snapshot is currently valid. An invalid snapshot must be rebuilt via
// replace before its answer can be trusted.
func (w *macWhitelist) lookup(mac string) (found bool, ok bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.valid {
		return false, false
	}
	_, found = w.macs[mac]
	return found, true
}

// generation returns the current invalidation generation. Capture it
// before reading the registry and pass it to replace.
func (w *macWhitelist) generation() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.gen
}

// replace installs a freshly-built snapshot, unless the whitelist was
// invalidated again after gen was captured. A discarded snapshot is
// reported so the caller knows the cache is still cold.
func (w *macWhitelist) replace(macs []string, gen uint64) bool {
	set := make(map[string]struct{}, len(macs))
	for _, mac := range macs {
		set[mac] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.gen != gen {
		return false
	}
	w.macs = set
	w.valid = true
	return true
}

// invalidate marks the snapshot stale and advances the generation so
// any in-flight rebuild started before this point is discarded.
func (w *macWhitelist) invalidate() {
	w.mu.Lock()
	w.valid = false
	w.gen++
	w.mu.Unlock()
}
