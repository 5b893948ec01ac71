package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 20 * time.Second

	gracefulEnvKey   = "REWARDS_GRACEFUL"
	gracefulEnvValue = gracefulEnvKey + "=1"
	// inherited listener fd after stdin, stdout, stderr
	gracefulListenerFD = 3
)

// Server wraps http.Server with signal driven shutdown and zero-downtime restart.
// SIGINT/SIGTERM drain in-flight requests; SIGUSR2 forks a child that inherits the listener.
type Server struct {
	*http.Server

	listener        net.Listener
	inherited       bool
	shutdownTimeout time.Duration
	hooks           []func()
	signals         chan os.Signal
	done            chan struct{}
}

// NewServer creates a Server with timeouts and handler.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       DefaultReadTimeout,
			ReadHeaderTimeout: DefaultReadTimeout,
			WriteTimeout:      DefaultWriteTimeout,
		},
		inherited:       os.Getenv(gracefulEnvKey) != "",
		shutdownTimeout: DefaultShutdownTimeout,
		signals:         make(chan os.Signal, 1),
		done:            make(chan struct{}),
	}
}

// OnShutdown registers fn to run after the HTTP server drained, e.g. flushing notifications.
func (srv *Server) OnShutdown(fn func()) {
	srv.hooks = append(srv.hooks, fn)
}

// ListenAndServe blocks until the server was shut down by a signal.
func (srv *Server) ListenAndServe() error {
	ln, err := srv.listen()
	if err != nil {
		return err
	}
	srv.listener = ln

	signal.Notify(srv.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)
	go srv.handleSignals()

	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-srv.done
		return nil
	}
	return err
}

func (srv *Server) listen() (net.Listener, error) {
	if srv.inherited {
		ln, err := net.FileListener(os.NewFile(gracefulListenerFD, "listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		return ln, nil
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
	return ln, nil
}

func (srv *Server) handleSignals() {
	for sig := range srv.signals {
		switch sig {
		case syscall.SIGUSR2:
			pid, err := srv.forkChild()
			if err != nil {
				L().Sugar().Errorf("restart failed, continue serving: %v", err)
				continue
			}
			L().Sugar().Infof("child process %d started, draining old server", pid)
		default:
			L().Sugar().Infof("received %s, shutting down", sig)
		}
		srv.shutdown()
		return
	}
}

func (srv *Server) shutdown() {
	signal.Stop(srv.signals)
	ctx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		L().Sugar().Errorf("HTTP server shutdown error: %v", err)
	}
	for _, fn := range srv.hooks {
		fn()
	}
	close(srv.done)
}

// forkChild re-executes the binary with the listening socket as fd 3.
func (srv *Server) forkChild() (int, error) {
	tcpLn, ok := srv.listener.(*net.TCPListener)
	if !ok {
		return 0, errors.New("listener is not a TCP listener")
	}
	f, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer f.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if e != gracefulEnvValue {
			env = append(env, e)
		}
	}
	env = append(env, gracefulEnvValue)

	return syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), f.Fd()},
	})
}
