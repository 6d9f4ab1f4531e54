package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/harshini-shah/dfs/internal/logger"
	"github.com/harshini-shah/dfs/internal/protocol/dfsrpc"
	"github.com/harshini-shah/dfs/internal/server"
	"github.com/harshini-shah/dfs/pkg/storage"
)

func main() {
	root := flag.String("root", "", "Local directory served by this storage server")
	hostname := flag.String("hostname", "localhost", "Externally routable hostname of this host")
	clientPort := flag.Int("client-port", 0, "Port for the client (Storage) interface, 0 picks one")
	commandPort := flag.Int("command-port", 0, "Port for the naming server (Command) interface, 0 picks one")
	namingAddr := flag.String("naming", fmt.Sprintf("localhost:%d", dfsrpc.RegistrationPort),
		"Address of the naming server's registration endpoint")
	logLevel := flag.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	flag.Parse()

	logger.SetLevel(*logLevel)

	if *root == "" {
		log.Fatal("The -root flag is required")
	}

	st, err := storage.NewServer(*root)
	if err != nil {
		log.Fatalf("Failed to open storage root: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storageEndpoint := server.New("storage",
		fmt.Sprintf(":%d", *clientPort), dfsrpc.ProgramStorage, dfsrpc.StorageHandler(st))
	commandEndpoint := server.New("command",
		fmt.Sprintf(":%d", *commandPort), dfsrpc.ProgramCommand, dfsrpc.CommandHandler(st))

	if err := storageEndpoint.Listen(); err != nil {
		log.Fatalf("Failed to start storage endpoint: %v", err)
	}
	if err := commandEndpoint.Listen(); err != nil {
		log.Fatalf("Failed to start command endpoint: %v", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return storageEndpoint.Serve(groupCtx) })
	group.Go(func() error { return commandEndpoint.Serve(groupCtx) })

	if err := register(ctx, st, *hostname, storageEndpoint, commandEndpoint, *namingAddr); err != nil {
		log.Fatalf("Failed to register with naming server: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("Received signal %v, shutting down", sig)
	case <-groupCtx.Done():
	}

	cancel()
	_ = group.Wait()
	logger.Info("Storage server stopped")
}

// register announces this server's inventory to the naming server and
// reclaims the bytes of every file the tree already knows.
func register(ctx context.Context, st *storage.Server, hostname string,
	storageEndpoint, commandEndpoint *server.Endpoint, namingAddr string,
) error {
	files, err := st.Files()
	if err != nil {
		return err
	}

	addr := dfsrpc.StorageAddr{
		ClientAddr:  announceAddr(hostname, storageEndpoint),
		CommandAddr: announceAddr(hostname, commandEndpoint),
	}

	client := dfsrpc.NewRegistrationClient(namingAddr)
	duplicates, err := client.Register(ctx, addr, files)
	if err != nil {
		return err
	}

	logger.Info("Registered %d files with %s (%d duplicates to reclaim)",
		len(files), namingAddr, len(duplicates))
	for _, duplicate := range duplicates {
		if _, err := st.Delete(ctx, duplicate); err != nil {
			logger.Warn("Failed to reclaim duplicate %s: %v", duplicate, err)
		}
	}
	return nil
}

// announceAddr rewrites a bound listener address with the externally
// routable hostname.
func announceAddr(hostname string, endpoint *server.Endpoint) string {
	_, port, err := net.SplitHostPort(endpoint.Addr())
	if err != nil {
		return endpoint.Addr()
	}
	return net.JoinHostPort(hostname, port)
}
