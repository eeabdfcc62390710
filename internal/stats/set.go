package stats

import (
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/framescope/framescope/internal/logger"
)

// Set is the mutable collection of defined regions, persisted to a yaml
// sidecar file next to the recordings.
type Set struct {
	mu   sync.RWMutex
	rois map[string]ROI
}

// NewSet returns an empty region set.
func NewSet() *Set {
	return &Set{rois: make(map[string]ROI)}
}

// Add inserts or replaces a region.
func (s *Set) Add(r ROI) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rois[r.Name] = r
	return nil
}

// Remove deletes the named region. Removing an unknown name is a no-op.
func (s *Set) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rois, name)
}

// List returns the regions sorted by name.
func (s *Set) List() []ROI {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ROI, 0, len(s.rois))
	for _, r := range s.rois {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SaveFile writes the set to path as yaml.
func (s *Set) SaveFile(path string) error {
	data, err := yaml.Marshal(s.List())
	if err != nil {
		return errors.Wrap(err, "marshal rois")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "write roi file")
	}
	return nil
}

// LoadFile replaces the set with the contents of path. A missing file loads
// an empty set.
func (s *Set) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("stats").Info().Str("path", path).Msg("No ROI file, starting empty")
			return nil
		}
		return errors.Wrap(err, "read roi file")
	}

	var rois []ROI
	if err := yaml.Unmarshal(data, &rois); err != nil {
		return errors.Wrap(err, "parse roi file")
	}

	// Validate everything before touching the set, so a bad file never
	// leaves it half replaced.
	loaded := make(map[string]ROI, len(rois))
	for _, r := range rois {
		if err := r.Validate(); err != nil {
			return errors.Wrapf(err, "roi %q", r.Name)
		}
		loaded[r.Name] = r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rois = loaded
	return nil
}
