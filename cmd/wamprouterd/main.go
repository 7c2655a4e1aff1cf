// Command wamprouterd runs a standalone WAMP router: it listens for
// WebSocket connections, upgrades them, and attaches each one to a
// router.Router so that sessions can publish, subscribe, call, and
// register across whatever realms the router is configured with.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/relaywamp/wampcore/router"
	"github.com/relaywamp/wampcore/transport/websocket"
	"github.com/relaywamp/wampcore/wamp"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	addr := flag.String("addr", ":8080", "address to listen on for WAMP-over-WebSocket connections")
	wsPath := flag.String("path", "/ws", "HTTP path that accepts the WebSocket upgrade")
	realms := flag.String("realms", "", "comma-separated list of realm URIs to pre-register (e.g. com.example.realm1,com.example.realm2)")
	autoRealm := flag.Bool("auto-realm", true, "lazily create realms on first HELLO instead of requiring -realms to list them")
	strictURI := flag.Bool("strict-uri", false, "reject loosely-formed URIs (no empty components) on every realm")
	flag.Parse()

	cfg := &router.RouterConfig{}
	for _, name := range strings.Split(*realms, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cfg.Realms = append(cfg.Realms, &router.RealmConfig{URI: wamp.URI(name), StrictURI: *strictURI})
	}
	if *autoRealm {
		cfg.AutoRealmTemplate = &router.RealmConfig{StrictURI: *strictURI}
	} else {
		cfg.RequireRegisteredRealms = true
	}

	rtr := router.NewRouter(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc(*wsPath, func(w http.ResponseWriter, r *http.Request) {
		peer, err := websocket.Accept(w, r)
		if err != nil {
			log.Printf("websocket accept from %s failed: %v", r.RemoteAddr, err)
			return
		}
		if err := rtr.Attach(peer); err != nil {
			log.Printf("attach from %s failed: %v", r.RemoteAddr, err)
			peer.Close()
		}
	})

	srv := &http.Server{
		Addr:         *addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		log.Printf("wamprouterd listening on %s%s", *addr, *wsPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrCh:
		rtr.Close()
		return err
	case sig := <-sigCh:
		log.Printf("received signal %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}
	rtr.Close()
	log.Print("wamprouterd shutdown complete")
	return nil
}
