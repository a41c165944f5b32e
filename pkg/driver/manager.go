package driver

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// FilterFn is being used to decide if a driver should be included in the
// query result.
type FilterFn func(Driver) bool

// FilterDeviceType returns a filter function to match the given device type.
func FilterDeviceType(t DeviceType) FilterFn {
	return func(d Driver) bool {
		return d.Info().DeviceType == t
	}
}

// FilterLabel returns a filter function matching the exact label or one of
// the labels of a driver found from multiple locations.
func FilterLabel(label string) FilterFn {
	return func(d Driver) bool {
		for _, l := range strings.Split(d.Info().Label, LabelSeparator) {
			if l == label {
				return true
			}
		}
		return false
	}
}

// FilterID returns a filter function to match the driver with the given ID.
func FilterID(id string) FilterFn {
	return func(d Driver) bool {
		return d.ID() == id
	}
}

// FilterAnd returns a filter function to take logical conjunction of given filters.
func FilterAnd(filters ...FilterFn) FilterFn {
	return func(d Driver) bool {
		for _, f := range filters {
			if !f(d) {
				return false
			}
		}
		return true
	}
}

// FilterNot returns a filter function to take logical inverse of the given filter.
func FilterNot(filter FilterFn) FilterFn {
	return func(d Driver) bool {
		return !filter(d)
	}
}

// LabelSeparator is used to separate labels for a driver that
// is found from multiple locations on a host.
const LabelSeparator = ";"

// Manager is a singleton to manage multiple drivers and their states
type Manager struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

var manager = &Manager{
	drivers: make(map[string]Driver),
}

// GetManager gets manager singleton instance
func GetManager() *Manager {
	return manager
}

// Register registers adapter to be discoverable by Query
func (m *Manager) Register(a Adapter, info Info) error {
	if a == nil {
		return fmt.Errorf("adapter can't be nil")
	}

	d := wrapAdapter(a, info)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[d.ID()] = d
	return nil
}

// Query queries by using f to filter drivers, and simply return the filtered
// results, highest priority first.
func (m *Manager) Query(f FilterFn) []Driver {
	m.mu.RLock()
	results := make([]Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		if f == nil || f(d) {
			results = append(results, d)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		pi, pj := results[i].Info().Priority, results[j].Info().Priority
		if pi != pj {
			return pi > pj
		}
		return results[i].Info().Label < results[j].Info().Label
	})
	return results
}

// Find returns the highest priority driver matching f.
func (m *Manager) Find(f FilterFn) (Driver, bool) {
	drivers := m.Query(f)
	if len(drivers) == 0 {
		return nil, false
	}
	return drivers[0], true
}
