package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	addr := flag.String("addr", ":8790", "listen address")
	path := flag.String("path", "/session", "websocket endpoint path")
	flag.Parse()

	logger := log.New(os.Stdout, "relay ", log.LstdFlags|log.Lmsgprefix)

	hub, err := newHub(logger)
	if err != nil {
		logger.Fatalf("hub init failed: %v", err)
	}

	stop := make(chan struct{})
	go hub.runPruning(stop)

	mux := http.NewServeMux()
	mux.HandleFunc(*path, hub.Handle)

	server := &http.Server{Addr: *addr, Handler: mux}
	errs := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s%s", *addr, *path)
		errs <- server.ListenAndServe()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		logger.Fatalf("server stopped: %v", err)
	case sig := <-sigs:
		logger.Printf("shutting down on %s", sig)
	}
	close(stop)
	server.Close()
}
