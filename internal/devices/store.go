// Package devices tracks the devices connected to the device server.
package devices

import (
	"sort"
	"sync"
	"time"
)

// Device is one connected device.
type Device struct {
	ID          int       `json:"id"`
	Addr        string    `json:"addr"`
	Name        string    `json:"device_name,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Store is a concurrency-safe registry of connected devices. IDs come from
// a counter and are never reused within the life of a Store.
type Store struct {
	mu      sync.RWMutex
	devices map[int]*Device
	nextID  int
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		devices: make(map[int]*Device),
		nextID:  1,
		now:     time.Now,
	}
}

// Add registers a device at addr and returns it with its assigned ID.
func (s *Store) Add(addr string) Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &Device{ID: s.nextID, Addr: addr, ConnectedAt: s.now()}
	s.nextID++
	s.devices[d.ID] = d
	return *d
}

func (s *Store) Get(id int) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// GetAll returns copies of every device ordered by ID.
func (s *Store) GetAll() []Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// SetName records the device's name. It reports false for unknown IDs.
func (s *Store) SetName(id int, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return false
	}
	d.Name = name
	return true
}

func (s *Store) Remove(id int) (Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return Device{}, false
	}
	delete(s.devices, id)
	return *d, true
}

// Clear removes every device and returns them ordered by ID.
func (s *Store) Clear() []Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		result = append(result, *d)
	}
	s.devices = make(map[int]*Device)
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}
