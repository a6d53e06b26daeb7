package scene

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"rcarelay/pkg/logging"
)

// FrameFunc is called for every complete frame a Server receives.
type FrameFunc func(remote string, frame string)

// Server is a stand-in for the scene: it accepts the relay's connection and
// records the "{name : payload}" frames written to it.
type Server struct {
	ln      net.Listener
	onFrame FrameFunc

	mu     sync.Mutex
	frames []string
	conns  map[net.Conn]struct{}
	wg     sync.WaitGroup
}

// Listen binds addr for a scene stub. onFrame may be nil.
func Listen(addr string, onFrame FrameFunc) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind scene listener on %s: %w", addr, err)
	}
	logging.Info("SceneServer", "Scene stub listening on %s", ln.Addr())
	return &Server{ln: ln, onFrame: onFrame, conns: make(map[net.Conn]struct{})}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve accepts connections until ctx ends or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("scene accept failed: %w", err)
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	remote := conn.RemoteAddr().String()
	logging.Info("SceneServer", "Relay connected from %s", remote)

	var pending []byte
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			var frames [][]byte
			frames, pending = SplitFrames(append(pending, buf[:n]...))
			for _, frame := range frames {
				s.record(remote, string(frame))
			}
		}
		if err != nil {
			logging.Info("SceneServer", "Relay %s disconnected: %v", remote, err)
			return
		}
	}
}

func (s *Server) record(remote, frame string) {
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
	logging.Debug("SceneServer", "Frame from %s: %s", remote, frame)
	if s.onFrame != nil {
		s.onFrame(remote, frame)
	}
}

// Frames returns every frame received so far.
func (s *Server) Frames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.frames...)
}

// Reset forgets the recorded frames.
func (s *Server) Reset() {
	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()
}

// Close stops accepting and drops every open connection.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// SplitFrames extracts complete "{...}" frames from buf. Bytes outside braces
// are discarded; an unterminated frame is returned as rest. A frame ends at
// the first '}' after its '{'.
func SplitFrames(buf []byte) (frames [][]byte, rest []byte) {
	for {
		start := bytes.IndexByte(buf, '{')
		if start < 0 {
			return frames, nil
		}
		end := bytes.IndexByte(buf[start:], '}')
		if end < 0 {
			return frames, append([]byte(nil), buf[start:]...)
		}
		frames = append(frames, append([]byte(nil), buf[start:start+end+1]...))
		buf = buf[start+end+1:]
	}
}
