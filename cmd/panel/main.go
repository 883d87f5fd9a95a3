package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rs/zerolog/log"

	"github.com/mobile-controller/panel/internal/app"
	"github.com/mobile-controller/panel/internal/client"
	"github.com/mobile-controller/panel/internal/config"
	"github.com/mobile-controller/panel/internal/logging"
	"github.com/mobile-controller/panel/internal/roster"
	"github.com/mobile-controller/panel/internal/theme"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	wsURL := flag.String("url", "", "WebSocket URL of the bridge (overrides config)")
	token := flag.String("token", "", "Auth token (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	list := flag.Bool("list", false, "Print the connected clients and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *wsURL != "" {
		cfg.Panel.BridgeURL = *wsURL
	}
	if *token != "" {
		cfg.Panel.Token = *token
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	closer, err := logging.File(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	httpClient := client.NewHTTPClient(client.DeriveHTTPBase(cfg.Panel.BridgeURL), cfg.Panel.Token)
	if *list {
		if err := printClients(httpClient); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var p *tea.Program
	ws := client.NewWSClient(cfg.Panel.BridgeURL, cfg.Panel.Token, func(up bool) {
		p.Send(app.ConnStateMsg{Connected: up})
	})

	m := app.New(httpClient, ws, app.Options{
		SubscribeTimeout: cfg.Panel.SubscribeTimeout,
		Buffered:         cfg.Panel.BufferNotifications,
	})
	p = tea.NewProgram(m, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ws.Run(ctx)
	}()

	log.Info().Str("module", "panel").Str("bridge", cfg.Panel.BridgeURL).Msg("starting")
	final, err := p.Run()
	if fm, ok := final.(app.Model); ok {
		fm.Close()
	}
	cancel()
	<-done

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printClients(c *client.HTTPClient) error {
	clients, err := c.ListClients()
	if err != nil {
		return err
	}
	if len(clients) == 0 {
		fmt.Println("No clients connected.")
		return nil
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("Client ID", "Device Name", "Address")
	for _, cl := range clients {
		name := cl.DeviceName
		if name == "" {
			name = roster.UnknownDevice
		}
		t.Row(strconv.Itoa(cl.ID), name, cl.Addr)
	}
	fmt.Println(t.Render())
	return nil
}
