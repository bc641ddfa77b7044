package utils

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// The replacement process finds the inherited listener at this fd and this
// env marker tells it to reuse it instead of binding anew.
const (
	inheritedEnvKey = "IBLOG_INHERITED_LISTENER"
	inheritedFd     = 3
	defaultTimeout  = 60 * time.Second
	shutdownGrace   = 30 * time.Second
)

// graceServer runs an http.Server that shuts down cleanly on SIGTERM and
// hands its listener to a freshly exec'd copy of the binary on SIGUSR2.
type graceServer struct {
	httpServer *http.Server
	listener   net.Listener
	done       chan struct{}
}

// GraceServer serves handler on addr until a shutdown signal arrives.
func GraceServer(addr string, handler http.Handler) error {
	srv := &graceServer{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  defaultTimeout,
			WriteTimeout: defaultTimeout,
		},
		done: make(chan struct{}),
	}
	return srv.run()
}

func (g *graceServer) run() error {
	ln, err := g.listen()
	if err != nil {
		return err
	}
	g.listener = ln

	go g.watchSignals()

	err = g.httpServer.Serve(ln)
	// Serve returns as soon as the listener closes; wait for in-flight
	// requests to drain before handing control back.
	<-g.done
	return err
}

func (g *graceServer) listen() (net.Listener, error) {
	if os.Getenv(inheritedEnvKey) != "" {
		f := os.NewFile(inheritedFd, "listener")
		ln, err := net.FileListener(f)
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", g.httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", g.httpServer.Addr, err)
	}
	return ln, nil
}

func (g *graceServer) watchSignals() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGUSR2)

	for sig := range sigs {
		switch sig {
		case syscall.SIGTERM:
			Sugar.Info("SIGTERM received, draining HTTP server")
			g.shutdown()
			return
		case syscall.SIGUSR2:
			Sugar.Info("SIGUSR2 received, spawning replacement process")
			pid, err := g.spawnSuccessor()
			if err != nil {
				Sugar.Errorf("spawn failed, keeping current server: %v", err)
				continue
			}
			Sugar.Infof("successor started with pid %d, draining old server", pid)
			g.shutdown()
			return
		}
	}
}

func (g *graceServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := g.httpServer.Shutdown(ctx); err != nil {
		Sugar.Errorf("shutdown: %v", err)
	}
	close(g.done)
}

// spawnSuccessor forks and execs the current binary, passing the listening
// socket as fd 3 so no connections are refused during the handover.
func (g *graceServer) spawnSuccessor() (int, error) {
	tcpLn, ok := g.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener is %T, cannot hand over", g.listener)
	}
	f, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != inheritedEnvKey+"=1" {
			env = append(env, e)
		}
	}
	env = append(env, inheritedEnvKey+"=1")

	pid, err := syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), f.Fd()},
	})
	if err != nil {
		return 0, fmt.Errorf("forkexec: %w", err)
	}
	return pid, nil
}
