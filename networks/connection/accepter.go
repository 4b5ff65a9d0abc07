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

package connection

import (
	"net"
	"sync"
	"time"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/common"
	"github.com/omnius-labs/axus/log"
)

const (
	natMappingName     = "axus"
	natMappingLifetime = 20 * time.Minute
	natRefreshInterval = 15 * time.Minute
)

// TcpAccepter is the listening half of the transport capability.
type TcpAccepter interface {
	Accept() (*FramedStream, net.Addr, error)
	GlobalIPAddresses() ([]net.IP, error)
	Addr() *net.TCPAddr
	Close() error
}

type tcpAccepter struct {
	listener *net.TCPListener
	nat      NAT
	port     uint16
	logger   log.Logger

	mu         sync.Mutex
	externalIP net.IP

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewTcpAccepter binds the TCP variant of addr. The address family follows
// the parsed socket address. When a NAT is supplied and the bind address is
// an unspecified IPv4 one, a port mapping is requested best-effort and
// refreshed until Close.
func NewTcpAccepter(addr common.OmniAddr, nat NAT) (TcpAccepter, error) {
	tcpAddr, err := addr.ParseTCP()
	if err != nil {
		return nil, err
	}

	network := "tcp6"
	if tcpAddr.IP.To4() != nil {
		network = "tcp4"
	}

	listener, err := net.ListenTCP(network, tcpAddr)
	if err != nil {
		return nil, axerr.New(axerr.IoError).WithMessage("bind failed: %s", tcpAddr).WithSource(err)
	}

	a := &tcpAccepter{
		listener: listener,
		nat:      nat,
		port:     uint16(listener.Addr().(*net.TCPAddr).Port),
		logger:   log.New("module", "connection", "listen", listener.Addr().String()),
		quit:     make(chan struct{}),
	}

	if nat != nil && network == "tcp4" && tcpAddr.IP.IsUnspecified() {
		a.wg.Add(1)
		go a.mapLoop()
	}

	return a, nil
}

// mapLoop keeps the gateway mapping alive for the lifetime of the listener.
func (a *tcpAccepter) mapLoop() {
	defer a.wg.Done()

	refresh := func() {
		if err := a.nat.AddMapping("tcp", int(a.port), int(a.port), natMappingName, natMappingLifetime); err != nil {
			a.logger.Warn("NAT port mapping failed", "nat", a.nat.String(), "err", err)
			return
		}
		ip, err := a.nat.ExternalIP()
		if err != nil {
			a.logger.Warn("NAT external IP lookup failed", "nat", a.nat.String(), "err", err)
			return
		}
		a.mu.Lock()
		a.externalIP = ip
		a.mu.Unlock()
		a.logger.Info("NAT mapping established", "nat", a.nat.String(), "port", a.port, "extip", ip)
	}

	refresh()
	ticker := time.NewTicker(natRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			refresh()
		case <-a.quit:
			if err := a.nat.DeleteMapping("tcp", int(a.port), int(a.port)); err != nil {
				a.logger.Warn("NAT unmapping failed", "err", err)
			}
			return
		}
	}
}

func (a *tcpAccepter) Accept() (*FramedStream, net.Addr, error) {
	conn, err := a.listener.AcceptTCP()
	if err != nil {
		return nil, nil, axerr.New(axerr.IoError).WithMessage("accept failed").WithSource(err)
	}
	return NewFramedStream(conn, MaxFrameLen), conn.RemoteAddr(), nil
}

// GlobalIPAddresses fuses the link-local detection with the NAT-reported
// external address.
func (a *tcpAccepter) GlobalIPAddresses() ([]net.IP, error) {
	var res []net.IP

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, axerr.New(axerr.IoError).WithSource(err)
	}
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipnet.IP
		if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
			continue
		}
		res = append(res, ip)
	}

	a.mu.Lock()
	if a.externalIP != nil {
		res = append(res, a.externalIP)
	}
	a.mu.Unlock()

	return res, nil
}

func (a *tcpAccepter) Addr() *net.TCPAddr {
	return a.listener.Addr().(*net.TCPAddr)
}

// Close releases the NAT mapping best-effort and closes the listener,
// erroring out any blocked Accept.
func (a *tcpAccepter) Close() error {
	close(a.quit)
	err := a.listener.Close()
	a.wg.Wait()
	return err
}
