package rpc

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"

	"github.com/ksyncdev/ksync/internal/files"
	"github.com/ksyncdev/ksync/internal/ksyncproto"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Server accepts connections and serves the filesystem's RPC methods
// over each, one session per connection.
type Server struct {
	Files *files.Files
	Log   *logrus.Logger
}

// NewServer returns a Server over f, logging through log (or a default
// logger if nil).
func NewServer(f *files.Files, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{Files: f, Log: log}
}

// Serve accepts connections on ln until ctx is canceled or the listener
// returns a fatal error, handling each concurrently.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return g.Wait()
			}
			return err
		}
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		g.Go(func() error {
			defer stop()
			srv.handleConn(conn)
			return nil
		})
	}
}

func (srv *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	peer := conn.RemoteAddr().String()
	log := srv.Log.WithField("peer", peer)

	session, err := NewSession(peer, srv.Files)
	if err != nil {
		log.WithError(err).Error("building session")
		return
	}

	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	for {
		req, err := ksyncproto.ReadFrame(rw)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug("connection closed")
				return
			}
			log.WithError(err).Warn("fatal protocol error")
			return
		}
		resp := Dispatch(session, srv.Files, req)
		if resp.Method == ksyncproto.MethodErr {
			log.WithFields(logrus.Fields{
				"method": req.Method,
				"error":  string(resp.Data),
			}).Debug("request failed")
		}
		if err := ksyncproto.WriteFrame(rw, resp); err != nil {
			log.WithError(err).Warn("write failed")
			return
		}
		if err := rw.Flush(); err != nil {
			log.WithError(err).Warn("flush failed")
			return
		}
	}
}
