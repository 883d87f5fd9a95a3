package roster

import (
	"testing"
	"time"
)

func advance(e Elapsed, n int) Elapsed {
	for i := 0; i < n; i++ {
		e = e.Next()
	}
	return e
}

func TestElapsedCarry(t *testing.T) {
	tests := []struct {
		name  string
		start Elapsed
		ticks int
		want  Elapsed
	}{
		{"three ticks", Elapsed{}, 3, Elapsed{0, 0, 3}},
		{"seconds wrap", Elapsed{0, 0, 1}, 59, Elapsed{0, 1, 0}},
		{"one hour", Elapsed{}, 3600, Elapsed{1, 0, 0}},
		{"minutes wrap", Elapsed{0, 59, 59}, 1, Elapsed{1, 0, 0}},
		{"hours unbounded", Elapsed{99, 59, 59}, 1, Elapsed{100, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := advance(tt.start, tt.ticks); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestElapsedString(t *testing.T) {
	e := Elapsed{Hours: 1, Minutes: 2, Seconds: 3}
	if got := e.String(); got != "1h 2m 3s" {
		t.Errorf("String() = %q", got)
	}
	if got := e.Duration(); got != time.Hour+2*time.Minute+3*time.Second {
		t.Errorf("Duration() = %v", got)
	}
}
