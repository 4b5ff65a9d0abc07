// Copyright 2026 The axus Authors
// This file is part of the axus library.
//
// The axus library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The axus library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the axus library. If not, see <http://www.gnu.org/licenses/>.

package node

import (
	"net"
	"sync"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/log"
	"github.com/omnius-labs/axus/networks/connection"
	"github.com/omnius-labs/axus/rocketpack"
)

const healthFunctionID = 0

// healthResponse answers function id 0.
type healthResponse struct {
	GitTag string
}

func (m *healthResponse) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutString(m.GitTag)
	return nil
}

func (m *healthResponse) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	tag, err := r.GetString(1024)
	if err != nil {
		return err
	}
	m.GitTag = tag
	return nil
}

// RpcServer is the daemon's framed control listener. One function per
// connection: a u32 function id frame, then the response frame.
type RpcServer struct {
	info     AppInfo
	listener net.Listener
	logger   log.Logger

	quitOnce sync.Once
	quit     chan struct{}
	wg       sync.WaitGroup
}

// NewRpcServer binds the control listener.
func NewRpcServer(addr string, info AppInfo) (*RpcServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, axerr.New(axerr.IoError).WithMessage("rpc bind failed: %s", addr).WithSource(err)
	}
	return &RpcServer{
		info:     info,
		listener: listener,
		logger:   log.New("module", "rpc", "listen", addr),
		quit:     make(chan struct{}),
	}, nil
}

// Serve accepts connections until Close.
func (s *RpcServer) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				s.wg.Wait()
				return nil
			default:
				return axerr.New(axerr.IoError).WithMessage("rpc accept failed").WithSource(err)
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.handle(conn); err != nil {
				s.logger.Warn("rpc request failed", "err", err)
			}
		}()
	}
}

func (s *RpcServer) handle(conn net.Conn) error {
	stream := connection.NewFramedStream(conn, connection.MaxControlFrameLen)
	defer stream.Close()

	frame, err := stream.Recv()
	if err != nil {
		return err
	}
	r := rocketpack.NewReader(frame)
	functionID, err := r.GetU32()
	if err != nil {
		return err
	}

	switch functionID {
	case healthFunctionID:
		return stream.SendMessage(&healthResponse{GitTag: s.info.GitTag})
	default:
		s.logger.Warn("unsupported function", "id", functionID)
		return nil
	}
}

func (s *RpcServer) Close() {
	s.quitOnce.Do(func() {
		close(s.quit)
		s.listener.Close()
	})
}
