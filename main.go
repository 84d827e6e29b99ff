package main

import (
	"bufio"
	"context"
	"embed"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rsmidt/ptyhost/internal/db"
	"github.com/rsmidt/ptyhost/internal/preflight"
	"github.com/rsmidt/ptyhost/internal/runner"
	"github.com/rsmidt/ptyhost/internal/server"
	"github.com/rsmidt/ptyhost/internal/tunnel"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	port := flag.Int("port", 8800, "server port")
	dbPath := flag.String("db", defaultDBPath(), "sqlite database path")
	relayURL := flag.String("relay", "", "relay websocket URL (wss://...), empty disables the tunnel")
	relaySecret := flag.String("relay-secret", os.Getenv("PTYHOST_RELAY_SECRET"), "pre-shared relay secret")
	flag.Parse()

	fmt.Println("ptyhost - interactive command runner")
	fmt.Println()

	fmt.Println("Running preflight checks...")
	shells, shellOk := preflight.CheckAll()
	if !shellOk {
		fmt.Println("\nA POSIX shell is required. Please install one and try again.")
		os.Exit(1)
	}
	fmt.Println()

	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	migrationSQL, err := migrationsFS.ReadFile("migrations/001_initial.sql")
	if err != nil {
		log.Fatalf("Failed to read migrations: %v", err)
	}
	if err := db.Migrate(database, string(migrationSQL)); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	store := db.NewStore(database)
	registry := runner.NewRegistry(store)
	srv := server.New(registry, store, shells)

	addr := fmt.Sprintf("0.0.0.0:%d", *port)
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: loggingMiddleware(recoveryMiddleware(srv)),
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	if *relayURL != "" {
		agent := tunnel.NewAgent(*relayURL, *relaySecret, fmt.Sprintf("localhost:%d", *port))
		go agent.Run(ctx)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		fmt.Printf("\nReceived %s, shutting down...\n", sig)

		stop()
		registry.StopAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Server running at http://%s\n", addr)
	if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
	fmt.Println("Server stopped.")
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "ptyhost.db"
	}
	return home + "/.ptyhost/ptyhost.db"
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(rw, r)

		// WebSocket upgrades hijack the connection; skip them
		if r.Header.Get("Upgrade") == "websocket" {
			return
		}

		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start).Round(time.Millisecond))
	})
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC: %s %s: %v", r.Method, r.URL.Path, err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Implement http.Hijacker so WebSocket upgrades work through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}
