// Command ksync is the administrative and end-user CLI: key
// management, local trust-chain bootstrapping, one-shot batch RPCs,
// and the long-running bidirectional sync loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ksyncdev/ksync/internal/config"
	"github.com/ksyncdev/ksync/internal/files"
	"github.com/ksyncdev/ksync/internal/keyring"
	"github.com/ksyncdev/ksync/internal/kpath"
	"github.com/ksyncdev/ksync/internal/kv"
	"github.com/ksyncdev/ksync/internal/roots"
	"github.com/ksyncdev/ksync/internal/syncclient"
	log "github.com/sirupsen/logrus"
)

var globalContext struct {
	base     string
	logLevel string
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.StringVar(&globalContext.base, "base", config.DefaultBaseDirectoryPath, "`directory` for keys and the database")
	fs.StringVar(&globalContext.logLevel, "verbosity", "warning", "log `level`")
	return fs
}

func exitUsage(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	_, _ = fmt.Fprintf(os.Stderr, `Usage: %s COMMAND [ARGS]

Commands:

	keygen NAME            generate an Ed25519 key pair under base/NAME.{key,pub}
	inspect-key NAME        print a key's identifier, variant and fingerprint
	sign SIGNER SUBJECT     sign SUBJECT's public key with SIGNER's private key
	verify SIGNER SUBJECT   check SUBJECT's recorded signature against SIGNER
	bootstrap ADMIN SERVER CLIENT
	                        record ADMIN as trust root, SERVER as this node's
	                        identity, and trust CLIENT as the default client,
	                        directly against the local database
	trust-client NAME KEY   trust an additional client key under NAME
	history                 print the fs root's revision history
	client get|insert|delete PATH [FILE]
	client history|rollback
	                        one-shot RPC against a running daemon
	sync DIR                run the bidirectional sync loop against DIR
`, os.Args[0])
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		exitUsage("command name required")
	}

	fs := newFlagSet(os.Args[1])
	var (
		remote     string
		keyName    string
		resyncSecs int
	)
	switch os.Args[1] {
	case "client", "sync":
		fs.StringVar(&remote, "remote", "127.0.0.1:7670", "address of the ksyncd daemon")
		fs.StringVar(&keyName, "key", "client", "`name` of the client key under base/")
	}
	if os.Args[1] == "sync" {
		fs.IntVar(&resyncSecs, "resync", 300, "periodic resync interval in seconds")
	}
	_ = fs.Parse(os.Args[2:])

	if lvl, err := log.ParseLevel(globalContext.logLevel); err == nil {
		log.SetLevel(lvl)
	}
	if err := os.MkdirAll(globalContext.base, 0o755); err != nil {
		log.Fatalf("could not create base directory %q: %v", globalContext.base, err)
	}

	args := fs.Args()
	switch os.Args[1] {
	case "keygen":
		cmdKeygen(args)
	case "inspect-key":
		cmdInspectKey(args)
	case "sign":
		cmdSign(args)
	case "verify":
		cmdVerify(args)
	case "bootstrap":
		cmdBootstrap(args)
	case "trust-client":
		cmdTrustClient(args)
	case "history":
		cmdHistory(args)
	case "client":
		cmdClient(remote, keyName, args)
	case "sync":
		cmdSync(remote, keyName, time.Duration(resyncSecs)*time.Second, args)
	default:
		exitUsage(fmt.Sprintf("%q: command not recognized", os.Args[1]))
	}
}

func dbPath() string {
	return filepath.Join(globalContext.base, "ksync.db")
}

func openFiles() (*files.Files, *kv.DB, error) {
	db, err := kv.Open(dbPath(), kv.BucketObjects, kv.BucketRoots)
	if err != nil {
		return nil, nil, err
	}
	f, err := files.New(db)
	if err != nil {
		return nil, nil, err
	}
	return f, db, nil
}

func cmdKeygen(args []string) {
	if len(args) != 1 {
		exitUsage("keygen: exactly one argument, NAME, expected")
	}
	k, err := keyring.GenerateKeyPair(args[0])
	if err != nil {
		log.Fatalf("keygen: %v", err)
	}
	if err := keyring.SaveToFile(globalContext.base, args[0], k); err != nil {
		log.Fatalf("keygen: %v", err)
	}
	fmt.Println(k.Fingerprint())
}

func cmdInspectKey(args []string) {
	if len(args) != 1 {
		exitUsage("inspect-key: exactly one argument, NAME, expected")
	}
	k, err := keyring.LoadFromFile(globalContext.base, args[0])
	if err != nil {
		log.Fatalf("inspect-key: %v", err)
	}
	fmt.Printf("identifier: %s\n", k.Identifier)
	fmt.Printf("variant: %s\n", k.Variant)
	fmt.Printf("fingerprint: %s\n", k.Fingerprint())
	fmt.Printf("signed: %t\n", len(k.Signature) > 0)
}

func cmdSign(args []string) {
	if len(args) != 2 {
		exitUsage("sign: two arguments, SIGNER and SUBJECT, expected")
	}
	signer, err := keyring.LoadFromFile(globalContext.base, args[0])
	if err != nil {
		log.Fatalf("sign: load signer: %v", err)
	}
	subject, err := keyring.LoadFromFile(globalContext.base, args[1])
	if err != nil {
		log.Fatalf("sign: load subject: %v", err)
	}
	if err := keyring.SignInPlace(signer, subject); err != nil {
		log.Fatalf("sign: %v", err)
	}
	if err := keyring.SaveToFile(globalContext.base, args[1], subject); err != nil {
		log.Fatalf("sign: save: %v", err)
	}
	fmt.Println("signed")
}

func cmdVerify(args []string) {
	if len(args) != 2 {
		exitUsage("verify: two arguments, SIGNER and SUBJECT, expected")
	}
	signer, err := keyring.LoadFromFile(globalContext.base, args[0])
	if err != nil {
		log.Fatalf("verify: load signer: %v", err)
	}
	subject, err := keyring.LoadFromFile(globalContext.base, args[1])
	if err != nil {
		log.Fatalf("verify: load subject: %v", err)
	}
	fmt.Println(keyring.Verify(signer.Public, subject))
}

func cmdBootstrap(args []string) {
	if len(args) != 3 {
		exitUsage("bootstrap: three arguments, ADMIN SERVER CLIENT, expected")
	}
	admin, err := keyring.LoadFromFile(globalContext.base, args[0])
	if err != nil {
		log.Fatalf("bootstrap: load admin: %v", err)
	}
	server, err := keyring.LoadFromFile(globalContext.base, args[1])
	if err != nil {
		log.Fatalf("bootstrap: load server: %v", err)
	}
	client, err := keyring.LoadFromFile(globalContext.base, args[2])
	if err != nil {
		log.Fatalf("bootstrap: load client: %v", err)
	}

	f, db, err := openFiles()
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer db.Close()

	if err := f.SetAdmin(admin); err != nil {
		log.Fatalf("bootstrap: set admin: %v", err)
	}
	if err := keyring.SignInPlace(admin, server); err != nil {
		log.Fatalf("bootstrap: sign server: %v", err)
	}
	if err := f.SetServer(server); err != nil {
		log.Fatalf("bootstrap: set server: %v", err)
	}
	if err := f.TrustClient("client", client, server); err != nil {
		log.Fatalf("bootstrap: trust client: %v", err)
	}
	fmt.Println("bootstrap complete")
}

func cmdTrustClient(args []string) {
	if len(args) != 2 {
		exitUsage("trust-client: two arguments, NAME and KEY, expected")
	}
	name, keyName := args[0], args[1]
	clientKey, err := keyring.LoadFromFile(globalContext.base, keyName)
	if err != nil {
		log.Fatalf("trust-client: load client key: %v", err)
	}
	f, db, err := openFiles()
	if err != nil {
		log.Fatalf("trust-client: %v", err)
	}
	defer db.Close()
	server, err := f.GetServer()
	if err != nil {
		log.Fatalf("trust-client: load server key: %v", err)
	}
	if err := f.TrustClient(name, clientKey, server); err != nil {
		log.Fatalf("trust-client: %v", err)
	}
	fmt.Println("trusted")
}

func cmdHistory(args []string) {
	if len(args) != 0 {
		exitUsage("history: no arguments expected")
	}
	f, db, err := openFiles()
	if err != nil {
		log.Fatalf("history: %v", err)
	}
	defer db.Close()
	entries, err := f.GetHistory()
	if err != nil {
		log.Fatalf("history: %v", err)
	}
	for _, e := range entries {
		fmt.Printf("%s %x\n", time.Unix(0, e.Timestamp).Format(time.RFC3339Nano), e.Object)
	}
}

func dialAndIdentify(remote, keyName, dir string, resync time.Duration, log *log.Logger) (*syncclient.Client, error) {
	keyPath := filepath.Join(globalContext.base, keyName)
	return syncclient.Connect(remote, keyPath, dir, resync, log)
}

func cmdClient(remote, keyName string, args []string) {
	if len(args) < 1 {
		exitUsage("client: a METHOD argument is expected")
	}
	method := strings.ToLower(args[0])
	var p kpath.Path
	switch method {
	case "get", "insert", "delete":
		if len(args) < 2 {
			exitUsage(fmt.Sprintf("client %s: a PATH argument is expected", method))
		}
		var err error
		p, err = kpath.New(args[1])
		if err != nil {
			log.Fatalf("client: %v", err)
		}
	}

	c, err := dialAndIdentify(remote, keyName, "", 0, log.StandardLogger())
	if err != nil {
		log.Fatalf("client: connect: %v", err)
	}
	defer c.Close()

	switch method {
	case "get":
		content, err := c.CallGet(p)
		if err != nil {
			log.Fatalf("client: get: %v", err)
		}
		os.Stdout.Write(content)
	case "insert":
		if len(args) != 3 {
			exitUsage("client insert: PATH and FILE expected")
		}
		content, err := os.ReadFile(args[2])
		if err != nil {
			log.Fatalf("client: insert: read %q: %v", args[2], err)
		}
		if err := c.CallInsert(p, content); err != nil {
			log.Fatalf("client: insert: %v", err)
		}
	case "delete":
		if err := c.CallDelete(p); err != nil {
			log.Fatalf("client: delete: %v", err)
		}
	case "history":
		entries, err := c.CallGetHistory()
		if err != nil {
			log.Fatalf("client: history: %v", err)
		}
		for _, e := range entries {
			fmt.Printf("%s %x\n", time.Unix(0, e.Timestamp).Format(time.RFC3339Nano), e.Object)
		}
	case "rollback":
		if err := c.CallRollback(roots.Latest(1)); err != nil {
			log.Fatalf("client: rollback: %v", err)
		}
	default:
		exitUsage(fmt.Sprintf("client: %q: method not recognized", method))
	}
}

func cmdSync(remote, keyName string, resync time.Duration, args []string) {
	if len(args) != 1 {
		exitUsage("sync: exactly one argument, DIR, expected")
	}
	dir := args[0]

	c, err := dialAndIdentify(remote, keyName, dir, resync, log.StandardLogger())
	if err != nil {
		log.Fatalf("sync: connect: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		cancel()
	}()

	if err := c.Run(ctx); err != nil {
		log.Fatalf("sync: %v", err)
	}
}
