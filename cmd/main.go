// deskhook - desktop input and window tracker
// Turns OS input hooks and window enumeration into tick-quantized state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deskhook/internal/api"
	"deskhook/internal/autostart"
	"deskhook/internal/config"
	"deskhook/internal/core"
	"deskhook/internal/network"
	"deskhook/internal/osutils"
	"deskhook/internal/protocol"
	"deskhook/internal/script"
	"deskhook/internal/source"
	"deskhook/internal/tray"
	"deskhook/internal/tui"
)

var (
	version    = "0.1.0"
	showVer    = flag.Bool("version", false, "Show version")
	listWins   = flag.Bool("list", false, "List visible windows and exit")
	showTUI    = flag.Bool("tui", false, "Show the terminal dashboard")
	demoMode   = flag.Bool("demo", false, "Use a scripted demo source instead of OS hooks")
	watchAddr  = flag.String("watch", "", "Follow the event stream of a running instance (host:port)")
	configPath = flag.String("config", "", "Path to the configuration file")
	scriptPath = flag.String("script", "", "Lua script to load (overrides script.path)")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("deskhook version %s\n", version)
		return
	}

	cfgMgr, err := newConfigManager()
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}

	if *listWins {
		listWindows()
		return
	}

	if *watchAddr != "" {
		runWatch(cfgMgr, *watchAddr)
		return
	}

	runService(cfgMgr)
}

func newConfigManager() (*config.Manager, error) {
	if *configPath != "" {
		return config.NewManagerAt(*configPath)
	}
	return config.NewManager()
}

func listWindows() {
	src := source.NewPlatform(log.Default())

	fmt.Println("Visible Windows:")
	fmt.Println("----------------")
	n := 0
	for d := range src.EnumerateVisibleWindows() {
		fmt.Printf("%#x  %-40q  %v\n", uintptr(d.Handle), d.Title, d.Rect)
		n++
	}
	if n == 0 {
		fmt.Println("(none)")
	}
	if tb, err := src.Taskbar(); err == nil {
		fmt.Printf("\nTaskbar: %v\n", tb)
	}
}

func runWatch(cfgMgr *config.Manager, addr string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := network.NewWSClient(addr, cfgMgr.Get().API.Token, log.Default())
	client.OnHello = func(h protocol.HelloPayload) {
		log.Printf("Watch: Connected as %s (server %s)", h.ClientID, h.Version)
		client.RequestSnapshot()
	}
	client.OnMessage = func(msg protocol.Message) {
		if msg.Type == protocol.TypeTick {
			return
		}
		data, err := json.Marshal(msg.Payload)
		if err != nil {
			log.Printf("Watch: bad payload for %s: %v", msg.Type, err)
			return
		}
		fmt.Printf("%-14s %s\n", msg.Type, data)
	}
	client.Start()
	defer client.Close()

	<-ctx.Done()
}

func runService(cfgMgr *config.Manager) {
	log.Println("deskhook starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := cfgMgr.Get()

	var src source.Source
	if *demoMode {
		demo := source.NewScripted()
		go source.RunDemo(ctx, demo, 50*time.Millisecond)
		src = demo
	} else {
		src = source.NewPlatform(log.Default())
	}

	apiServer := api.NewServer(cfgMgr, nil, version, log.Default())

	c, err := core.New(cfg, src, core.WithBroadcaster(apiServer))
	if err != nil {
		log.Fatalf("Failed to create core: %v", err)
	}
	apiServer.SetProvider(c)

	cfgMgr.RegisterChangeCallback(func() {
		if err := c.ApplyConfig(cfgMgr.Get()); err != nil {
			log.Printf("Config: rejected update: %v", err)
		}
	})
	go func() {
		if err := cfgMgr.Watch(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Config: watch stopped: %v", err)
		}
	}()

	if err := c.Enable(); err != nil {
		log.Printf("Warning: input hooks unavailable: %v", err)
		if w := osutils.HookVisibilityWarning(); w != "" {
			log.Printf("Note: %s", w)
		}
	}
	defer func() {
		if err := c.Disable(); err != nil {
			log.Printf("Warning: disable: %v", err)
		}
	}()

	if cfg.API.Enabled {
		if !isLoopback(cfg.API.Addr) {
			go func() {
				if err := osutils.EnsureFirewallRule(cfg.API.Port); err != nil {
					log.Printf("Firewall warning: %v", err)
				}
			}()
		}
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				log.Printf("API server error: %v", err)
			}
		}()
	}

	path := cfg.Script.Path
	if *scriptPath != "" {
		path = *scriptPath
	}
	if path != "" {
		engine := script.New(c)
		defer engine.Close()
		if err := engine.DoFile(path); err != nil {
			log.Printf("Script: %v", err)
		}
	}

	if err := autostart.Sync(cfg.General.StartOnBoot); err != nil {
		log.Printf("Warning: autostart: %v", err)
	}

	// The dashboard ticks the core from its own loop.
	if *showTUI {
		dash, err := tui.NewTerminal(c)
		if err != nil {
			log.Fatalf("Failed to open terminal: %v", err)
		}
		if err := dash.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Dashboard: %v", err)
		}
		return
	}

	ticking := make(chan struct{})
	go func() {
		defer close(ticking)
		if err := c.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Core: tick loop stopped: %v", err)
			stop()
		}
	}()
	defer func() { <-ticking }()

	if cfg.General.ShowTray {
		runTray(ctx, stop, c, cfgMgr)
		return
	}

	<-ctx.Done()
	log.Println("deskhook stopping...")
}

func runTray(ctx context.Context, stop context.CancelFunc, c *core.Core, cfgMgr *config.Manager) {
	t := tray.New("deskhook", "deskhook "+version)

	var pauseID, bootID int
	pauseID = t.AddCheckbox("Pause", c.Paused(), func() {
		paused := !c.Paused()
		c.SetPaused(paused)
		t.SetItemChecked(pauseID, paused)
	})
	bootID = t.AddCheckbox("Start on login", cfgMgr.Get().General.StartOnBoot, func() {
		want := !t.ItemChecked(bootID)
		if err := autostart.Sync(want); err != nil {
			log.Printf("Warning: autostart: %v", err)
			return
		}
		cfg := cfgMgr.Get()
		cfg.General.StartOnBoot = want
		if err := cfgMgr.Set(cfg); err != nil {
			log.Printf("Config: %v", err)
			return
		}
		if err := cfgMgr.Save(); err != nil {
			log.Printf("Failed to save config: %v", err)
		}
		t.SetItemChecked(bootID, want)
	})
	t.AddSeparator()
	t.AddMenuItem("Quit", func() {
		t.Stop()
	})
	t.OnExit(stop)

	go func() {
		<-ctx.Done()
		t.Stop()
	}()

	t.Run()
}

func isLoopback(host string) bool {
	if host == "" || host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
