// Command ksyncd is the daemon: it opens the embedded database, wires
// up the filesystem API, and serves the RPC protocol on a listener.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/gops/agent"
	"github.com/ksyncdev/ksync/internal/config"
	"github.com/ksyncdev/ksync/internal/files"
	"github.com/ksyncdev/ksync/internal/kv"
	"github.com/ksyncdev/ksync/internal/rpc"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := agent.Listen(agent.Options{}); err != nil {
		log.Printf("could not start gops agent: %v", err)
	}
	defer agent.Close()

	base := flag.String("base", config.DefaultBaseDirectoryPath, "base directory for configuration and database files")
	configPath := flag.String("config", "", "path to the ini config file (defaults to <base>/ksyncd.ini)")
	verbosity := flag.String("verbosity", "info", "log level: debug, info, warn, error")
	flag.Parse()

	log := logrus.StandardLogger()
	if lvl, err := logrus.ParseLevel(*verbosity); err == nil {
		log.SetLevel(lvl)
	}

	if *configPath == "" {
		*configPath = filepath.Join(*base, "ksyncd.ini")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("could not load config from %q: %v", *configPath, err)
	}

	dbPath := cfg.Server.DB
	if dbPath == "" {
		dbPath = filepath.Join(*base, "ksync.db")
	}
	db, err := kv.Open(dbPath, kv.BucketObjects, kv.BucketRoots)
	if err != nil {
		log.Fatalf("could not open database %q: %v", dbPath, err)
	}

	f, err := files.New(db)
	if err != nil {
		log.Fatalf("could not initialize filesystem: %v", err)
	}

	addr := cfg.Server.Addr
	if addr == "" {
		addr = "127.0.0.1:7670"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("could not listen on %q: %v", addr, err)
	}

	srv := rpc.NewServer(f, log)

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigc
		log.Infof("got signal %q, shutting down", sig)
		cancel()
	}()

	log.Infof("serving on %s", addr)
	if err := srv.Serve(ctx, ln); err != nil && ctx.Err() == nil {
		log.Fatalf("serve: %v", err)
	}
	log.Info("stopped")
}
