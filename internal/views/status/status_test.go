package status

import (
	"strings"
	"testing"
)

func TestViewStates(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		want  []string
		avoid []string
	}{
		{
			name:  "disconnected and stopped",
			model: Model{},
			want:  []string{"Connecting...", "Server stopped"},
			avoid: []string{"paused"},
		},
		{
			name:  "running with clients",
			model: Model{Connected: true, Running: true, Addr: "10.0.0.2:7878", ServerOS: "linux", Clients: 3},
			want:  []string{"Bridge", "10.0.0.2:7878", "(linux)", "3 clients"},
			avoid: []string{"Server stopped"},
		},
		{
			name:  "single client paused",
			model: Model{Connected: true, Running: true, Addr: "a:1", Clients: 1, Paused: true},
			want:  []string{"1 client", "timers paused"},
			avoid: []string{"1 clients"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.model.Width = 120
			v := tt.model.View()
			for _, s := range tt.want {
				if !strings.Contains(v, s) {
					t.Errorf("view missing %q:\n%s", s, v)
				}
			}
			for _, s := range tt.avoid {
				if strings.Contains(v, s) {
					t.Errorf("view should not contain %q:\n%s", s, v)
				}
			}
		})
	}
}
