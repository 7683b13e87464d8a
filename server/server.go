// Package server is the daemon's Unix-socket IPC front end: accept,
// decode one JSON request per line, dispatch to the Index Registry /
// Ranker / Usage Store / Executor, write one response line. Grounded on
// the teacher's Server (accept loop, running flag under RWMutex,
// per-connection goroutine, writeResponse/writeError helpers) with the
// Forth-stack parser and filter commands replaced by protocol.Request
// dispatch per spec.md §4.8.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dskidx/dskidx/internal/config"
	"github.com/dskidx/dskidx/internal/direrr"
	"github.com/dskidx/dskidx/internal/executor"
	"github.com/dskidx/dskidx/internal/indexbuild"
	"github.com/dskidx/dskidx/internal/logging"
	"github.com/dskidx/dskidx/internal/model"
	"github.com/dskidx/dskidx/internal/parsecache"
	"github.com/dskidx/dskidx/internal/ranker"
	"github.com/dskidx/dskidx/internal/registry"
	"github.com/dskidx/dskidx/internal/usagestore"
	"github.com/dskidx/dskidx/protocol"
)

// buildIndex adapts indexbuild.Build to registry.BuildFunc, logging (not
// failing on) a non-fatal parse-cache save error per spec.md §7.
func buildIndex(key model.IndexKey, cache *parsecache.Cache, localeChain []string) (*model.Index, error) {
	idx, err := indexbuild.Build(key, cache, localeChain)
	if err != nil {
		var saveErr indexbuild.SaveError
		if errors.As(err, &saveErr) {
			logging.Errorf("building index for %v: %v", key.Roots, err)
			return idx, nil
		}
		return nil, direrr.Wrap(direrr.KindBuildFailed, "building index", err)
	}
	return idx, nil
}

// shutdownGrace is how long Stop waits, after closing the listener, for
// outstanding handlers to finish; once it elapses Stop logs a warning and
// returns with those handlers still running, per spec.md §5.
const shutdownGrace = 2 * time.Second

// Server accepts connections on the daemon socket and dispatches
// decoded requests to the registry/ranker/usage store/executor.
type Server struct {
	listener net.Listener
	registry *registry.Registry
	usage    *usagestore.Store
	exec     executor.Executor

	mu      sync.RWMutex
	running bool

	wg sync.WaitGroup
}

// SocketPath returns $XDG_RUNTIME_DIR/desktop-indexer.sock, falling
// back to /tmp/desktop-indexer-<user>.sock, per spec.md §4.8.
func SocketPath(cfg *config.Config) string {
	if dir := cfg.RuntimeDir(); dir != "" {
		return filepath.Join(dir, "desktop-indexer.sock")
	}
	return filepath.Join(os.TempDir(), "desktop-indexer-"+currentUserTag()+".sock")
}

func currentUserTag() string {
	if uid := os.Getuid(); uid >= 0 {
		return strconv.Itoa(uid)
	}
	return "unknown"
}

// New binds the daemon socket, probing and unlinking a stale path per
// spec.md §4.8; if a live daemon answers, it returns a direrr with
// KindAlreadyRunning.
func New(socketPath string, cache *parsecache.Cache, usage *usagestore.Store, exec executor.Executor, localeChain []string) (*Server, error) {
	if err := probeStale(socketPath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0o750); err != nil {
		return nil, direrr.Wrap(direrr.KindIO, "creating socket directory", err)
	}
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, direrr.Wrap(direrr.KindIO, "listening on socket", err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		listener.Close()
		return nil, direrr.Wrap(direrr.KindIO, "chmod socket", err)
	}

	reg := registry.New(cache, func(key model.IndexKey, c *parsecache.Cache) (*model.Index, error) {
		return buildIndex(key, c, localeChain)
	})

	return &Server{
		listener: listener,
		registry: reg,
		usage:    usage,
		exec:     exec,
	}, nil
}

// probeStale connects to an existing socket path to decide whether a
// peer is already listening. A successful connect means a live daemon
// holds the socket (AlreadyRunning); any other failure means the path
// is stale and safe to unlink.
func probeStale(socketPath string) error {
	if _, err := os.Stat(socketPath); err != nil {
		return nil
	}
	conn, err := net.DialTimeout("unix", socketPath, 200*time.Millisecond)
	if err == nil {
		conn.Close()
		return direrr.New(direrr.KindAlreadyRunning, "a daemon is already listening on "+socketPath)
	}
	return nil
}

// Start accepts connections until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				return nil
			}
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Stop closes the listener and waits up to shutdownGrace for
// outstanding handlers before returning.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	err := s.listener.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		logging.Warnf("shutdown grace window elapsed with handlers still running")
	}
	return err
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	reader := protocol.NewReader(conn)

	for {
		req, err := reader.ReadRequest()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			_ = protocol.WriteResponse(conn, protocol.Error(string(direrr.KindProtocol), err.Error()))
			continue
		}

		resp, shutdown := s.dispatch(req)
		if writeErr := protocol.WriteResponse(conn, resp); writeErr != nil {
			logging.Errorf("writing response: %v", writeErr)
			return
		}
		if shutdown {
			go s.Stop()
			return
		}
	}
}

func (s *Server) dispatch(req protocol.Request) (protocol.Response, bool) {
	switch req.Cmd {
	case protocol.CmdStatus:
		return protocol.Status(s.registry.Status()), false

	case protocol.CmdWarmup:
		key := model.IndexKey{Roots: req.Roots, RespectTryExec: req.RespectTryExec}
		if _, err := s.registry.GetOrBuild(key); err != nil {
			return errorResponse(err), false
		}
		return protocol.OK(), false

	case protocol.CmdSearch:
		key := model.IndexKey{Roots: req.Roots, RespectTryExec: req.RespectTryExec}
		idx, err := s.registry.GetOrBuild(key)
		if err != nil {
			return errorResponse(err), false
		}
		usage := s.usage.All()
		scored := ranker.Search(idx, req.Query, req.NormalizedLimit(), req.NormalizedEmptyMode(), usage, time.Now().UnixNano())
		entries := make([]protocol.ScoredEntry, len(scored))
		for i, se := range scored {
			entries[i] = protocol.FromEntry(se.Entry, se.Score, true)
		}
		return protocol.Entries(entries), false

	case protocol.CmdList:
		key := model.IndexKey{Roots: req.Roots, RespectTryExec: req.RespectTryExec}
		idx, err := s.registry.GetOrBuild(key)
		if err != nil {
			return errorResponse(err), false
		}
		listed := ranker.List(idx)
		entries := make([]protocol.ScoredEntry, len(listed))
		for i, e := range listed {
			entries[i] = protocol.FromEntry(e, 0, false)
		}
		return protocol.Entries(entries), false

	case protocol.CmdLaunch:
		return s.handleLaunch(req), false

	case protocol.CmdShutdown:
		return protocol.OK(), true

	default:
		return protocol.Error(string(direrr.KindProtocol), "unknown command: "+req.Cmd), false
	}
}

func (s *Server) handleLaunch(req protocol.Request) protocol.Response {
	key := model.IndexKey{Roots: req.Roots, RespectTryExec: req.RespectTryExec}
	idx, err := s.registry.GetOrBuild(key)
	if err != nil {
		return errorResponse(err)
	}

	var entry model.Entry
	found := false
	for _, e := range idx.Entries {
		if e.DesktopID == req.DesktopID {
			entry, found = e, true
			break
		}
	}
	if !found {
		return protocol.Error(string(direrr.KindNotFound), "no entry with desktop_id "+req.DesktopID)
	}

	var action *model.Action
	if req.Action != nil {
		for i := range entry.Actions {
			if entry.Actions[i].ID == *req.Action {
				action = &entry.Actions[i]
				break
			}
		}
		if action == nil {
			return protocol.Error(string(direrr.KindNotFound), "no action "+*req.Action+" on "+req.DesktopID)
		}
	}

	if _, err := s.exec.Launch(entry, action); err != nil {
		return protocol.Error(string(direrr.KindIO), "launch failed: "+err.Error())
	}

	if err := s.usage.RecordLaunch(entry.DesktopID, time.Now().UnixNano()); err != nil {
		logging.Errorf("recording launch for %s: %v", entry.DesktopID, err)
	}
	return protocol.OK()
}

func errorResponse(err error) protocol.Response {
	return protocol.Error(string(direrr.KindOf(err)), err.Error())
}
