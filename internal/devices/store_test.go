package devices

import (
	"fmt"
	"sync"
	"testing"
)

func TestNewStore(t *testing.T) {
	s := NewStore()
	if got := len(s.GetAll()); got != 0 {
		t.Errorf("new store has %d devices, want 0", got)
	}
	if got := s.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}

func TestAddAssignsIncreasingIDs(t *testing.T) {
	s := NewStore()
	a := s.Add("10.0.0.1:5000")
	b := s.Add("10.0.0.2:5000")
	if a.ID != 1 || b.ID != 2 {
		t.Errorf("IDs = %d,%d, want 1,2", a.ID, b.ID)
	}
	if a.ConnectedAt.IsZero() {
		t.Error("ConnectedAt not set")
	}

	s.Remove(b.ID)
	c := s.Add("10.0.0.3:5000")
	if c.ID != 3 {
		t.Errorf("ID after removal = %d, want 3 (no reuse)", c.ID)
	}
}

func TestGetMissing(t *testing.T) {
	s := NewStore()
	if _, ok := s.Get(42); ok {
		t.Error("Get for missing id returned ok=true")
	}
	if s.SetName(42, "x") {
		t.Error("SetName for missing id returned true")
	}
	if _, ok := s.Remove(42); ok {
		t.Error("Remove for missing id returned ok=true")
	}
}

func TestSetNameAndGetReturnsCopy(t *testing.T) {
	s := NewStore()
	d := s.Add("10.0.0.1:5000")
	if !s.SetName(d.ID, "Pixel 8") {
		t.Fatal("SetName returned false")
	}

	got, _ := s.Get(d.ID)
	if got.Name != "Pixel 8" {
		t.Errorf("Name = %q, want Pixel 8", got.Name)
	}
	got.Name = "mutated"
	again, _ := s.Get(d.ID)
	if again.Name != "Pixel 8" {
		t.Error("Get did not return a copy; mutation leaked into store")
	}
}

func TestGetAllOrderedAndClear(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		s.Add(fmt.Sprintf("10.0.0.%d:5000", i))
	}
	all := s.GetAll()
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("GetAll not ordered: %v", all)
		}
	}

	cleared := s.Clear()
	if len(cleared) != 5 {
		t.Errorf("Clear returned %d devices, want 5", len(cleared))
	}
	if s.Count() != 0 {
		t.Errorf("Count after Clear = %d", s.Count())
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := s.Add(fmt.Sprintf("10.0.0.%d:5000", i))
			s.SetName(d.ID, "n")
			s.GetAll()
			if i%2 == 0 {
				s.Remove(d.ID)
			}
		}(i)
	}
	wg.Wait()
	if got := s.Count(); got != 25 {
		t.Errorf("Count() = %d, want 25", got)
	}
}
