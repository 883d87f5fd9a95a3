// Package mock simulates the device server: devices connect, report their
// names and disconnect, and every change is published as a lifecycle event.
package mock

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/host"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/mobile-controller/panel/internal/bridge"
	"github.com/mobile-controller/panel/internal/config"
	"github.com/mobile-controller/panel/internal/devices"
)

// Publisher receives lifecycle events. *bridge.Hub satisfies it.
type Publisher interface {
	Publish(event string, payload any)
}

var deviceNames = []string{
	"Pixel 8", "Pixel 7a", "Galaxy S24", "Galaxy Tab S9", "iPhone 15",
	"iPad Air", "OnePlus 12", "Xperia 1 V", "Moto G84", "Nothing Phone (2)",
}

// Simulator implements bridge.DeviceServer.
type Simulator struct {
	cfg   config.SimulatorConfig
	pub   Publisher
	store *devices.Store

	mu      sync.Mutex
	rng     *rand.Rand
	running bool
	addr    string
	cancel  context.CancelFunc
	done    chan struct{}
	naming  map[int]*time.Timer

	hostOS  func() string
	localIP func() string
}

func NewSimulator(cfg config.SimulatorConfig, pub Publisher) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		cfg:     cfg,
		pub:     pub,
		store:   devices.NewStore(),
		rng:     rand.New(rand.NewSource(seed)),
		naming:  make(map[int]*time.Timer),
		hostOS:  hostOS,
		localIP: localIP,
	}
}

// Start brings the simulated server up and begins the event loop.
func (s *Simulator) Start() (bridge.Started, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return bridge.Started{}, bridge.ErrAlreadyRunning
	}

	host := s.cfg.ListenHost
	if host == "" || host == "0.0.0.0" {
		host = s.localIP()
	}
	s.addr = net.JoinHostPort(host, fmt.Sprint(s.cfg.StartingPort))
	s.running = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)

	log.Info().Str("module", "simulator").Str("addr", s.addr).Int("max_clients", s.cfg.MaxClients).Msg("started")
	return bridge.Started{Addr: s.addr, ServerOS: s.hostOS()}, nil
}

// Stop disconnects every device and halts the event loop.
func (s *Simulator) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return bridge.ErrNotRunning
	}
	s.running = false
	s.cancel()
	done := s.done
	for id, t := range s.naming {
		t.Stop()
		delete(s.naming, id)
	}
	for _, d := range s.store.Clear() {
		s.pub.Publish(bridge.EventClientRemoved, bridge.ClientRemoved{ID: d.ID})
	}
	s.mu.Unlock()

	<-done
	log.Info().Str("module", "simulator").Msg("stopped")
	return nil
}

// RemoveClient disconnects one device.
func (s *Simulator) RemoveClient(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return bridge.ErrNotRunning
	}
	if !s.disconnect(id) {
		return fmt.Errorf("client %d: %w", id, bridge.ErrUnknownClient)
	}
	return nil
}

func (s *Simulator) Clients() []devices.Device {
	return s.store.GetAll()
}

func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Simulator) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.EventInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.step()
		}
	}
}

// step connects or disconnects one device. Events are published under the
// lock so subscribers observe them in the order they happened.
func (s *Simulator) step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	count := s.store.Count()
	if count > 0 && (count >= s.cfg.MaxClients || s.rng.Float64() < s.cfg.DropRate) {
		all := s.store.GetAll()
		s.disconnect(all[s.rng.Intn(len(all))].ID)
		return
	}
	s.connect()
}

func (s *Simulator) connect() {
	addr := fmt.Sprintf("10.0.0.%d:%d", 2+s.rng.Intn(250), 40000+s.rng.Intn(20000))
	d := s.store.Add(addr)
	added := bridge.ClientAdded{ID: d.ID, Addr: d.Addr}
	s.pub.Publish(bridge.EventClientAdded, added)
	if s.rng.Float64() < s.cfg.DuplicateRate {
		s.pub.Publish(bridge.EventClientAdded, added)
	}
	log.Debug().Str("module", "simulator").Int("id", d.ID).Str("addr", d.Addr).Msg("device connected")

	name := deviceNames[s.rng.Intn(len(deviceNames))]
	s.naming[d.ID] = time.AfterFunc(s.cfg.NameDelay, func() { s.rename(d.ID, name) })
}

func (s *Simulator) rename(id int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.naming, id)
	if !s.running || !s.store.SetName(id, name) {
		return
	}
	s.pub.Publish(bridge.EventClientUpdated, bridge.ClientUpdated{ID: id, DeviceName: name})
}

func (s *Simulator) disconnect(id int) bool {
	if _, ok := s.store.Remove(id); !ok {
		return false
	}
	if t, ok := s.naming[id]; ok {
		t.Stop()
		delete(s.naming, id)
	}
	s.pub.Publish(bridge.EventClientRemoved, bridge.ClientRemoved{ID: id})
	log.Debug().Str("module", "simulator").Int("id", id).Msg("device disconnected")
	return true
}

func hostOS() string {
	info, err := host.Info()
	if err != nil {
		log.Warn().Str("module", "simulator").Err(err).Msg("host info")
		return "unknown"
	}
	if info.PlatformVersion != "" {
		return fmt.Sprintf("%s %s (%s)", info.Platform, info.PlatformVersion, info.OS)
	}
	return info.OS
}

// localIP returns the first IPv4 address of an interface that is up and not
// a loopback, or 127.0.0.1.
func localIP() string {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return "127.0.0.1"
	}
	for _, iface := range ifaces {
		if !hasFlag(iface.Flags, "up") || hasFlag(iface.Flags, "loopback") {
			continue
		}
		for _, a := range iface.Addrs {
			ip, _, err := net.ParseCIDR(a.Addr)
			if err != nil {
				continue
			}
			if v4 := ip.To4(); v4 != nil {
				return v4.String()
			}
		}
	}
	return "127.0.0.1"
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}
