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
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/huin/goupnp"
	"github.com/huin/goupnp/dcps/internetgateway1"
	natpmp "github.com/jackpal/go-nat-pmp"

	"github.com/omnius-labs/axus/axerr"
)

// NAT maps ports on the gateway and reports the externally visible address.
// All implementations are best-effort side channels: failures are logged by
// callers and never abort a listener.
type NAT interface {
	AddMapping(protocol string, extport, intport int, name string, lifetime time.Duration) error
	DeleteMapping(protocol string, extport, intport int) error
	ExternalIP() (net.IP, error)
	String() string
}

// ParseNAT parses a NAT specifier:
//
//	"" or "none"  no mapping
//	"upnp"        discover an IGD via UPnP
//	"pmp:1.2.3.4" NAT-PMP against the given gateway
//	"extip:1.2.3.4" no mapping, assume the given external address
func ParseNAT(spec string) (NAT, error) {
	parts := strings.SplitN(spec, ":", 2)
	switch strings.ToLower(parts[0]) {
	case "", "none", "off":
		return nil, nil
	case "upnp":
		return &upnpNAT{}, nil
	case "pmp", "natpmp":
		if len(parts) != 2 {
			return nil, axerr.New(axerr.InvalidFormat).WithMessage("missing pmp gateway address")
		}
		ip := net.ParseIP(parts[1])
		if ip == nil {
			return nil, axerr.New(axerr.InvalidFormat).WithMessage("invalid pmp gateway address: %s", parts[1])
		}
		return &pmpNAT{gw: ip, c: natpmp.NewClient(ip)}, nil
	case "extip", "ip":
		if len(parts) != 2 {
			return nil, axerr.New(axerr.InvalidFormat).WithMessage("missing external ip")
		}
		ip := net.ParseIP(parts[1])
		if ip == nil {
			return nil, axerr.New(axerr.InvalidFormat).WithMessage("invalid external ip: %s", parts[1])
		}
		return extIP(ip), nil
	default:
		return nil, axerr.New(axerr.UnsupportedType).WithMessage("unknown nat mechanism: %s", spec)
	}
}

// extIP assumes a fixed external address and maps nothing.
type extIP net.IP

func (n extIP) AddMapping(string, int, int, string, time.Duration) error { return nil }
func (n extIP) DeleteMapping(string, int, int) error                     { return nil }
func (n extIP) ExternalIP() (net.IP, error)                              { return net.IP(n), nil }
func (n extIP) String() string                                           { return "ExtIP(" + net.IP(n).String() + ")" }

type upnpClient interface {
	GetExternalIPAddress() (string, error)
	AddPortMapping(remoteHost string, extPort uint16, protocol string, intPort uint16, intClient string, enabled bool, description string, lease uint32) error
	DeletePortMapping(remoteHost string, extPort uint16, protocol string) error
}

type upnpNAT struct {
	client upnpClient
	dev    *goupnp.RootDevice
}

func (n *upnpNAT) discover() error {
	if n.client != nil {
		return nil
	}
	if clients, _, err := internetgateway1.NewWANIPConnection1Clients(); err == nil && len(clients) > 0 {
		n.client = clients[0]
		n.dev = clients[0].RootDevice
		return nil
	}
	if clients, _, err := internetgateway1.NewWANPPPConnection1Clients(); err == nil && len(clients) > 0 {
		n.client = clients[0]
		n.dev = clients[0].RootDevice
		return nil
	}
	return axerr.New(axerr.UpnpError).WithMessage("no UPnP gateway found")
}

// internalAddress finds the local address facing the gateway.
func (n *upnpNAT) internalAddress() (net.IP, error) {
	conn, err := net.DialTimeout("udp", n.dev.URLBase.Host, 3*time.Second)
	if err != nil {
		return nil, axerr.New(axerr.UpnpError).WithMessage("cannot reach gateway").WithSource(err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP, nil
}

func (n *upnpNAT) AddMapping(protocol string, extport, intport int, name string, lifetime time.Duration) error {
	if err := n.discover(); err != nil {
		return err
	}
	intaddr, err := n.internalAddress()
	if err != nil {
		return err
	}
	protocol = strings.ToUpper(protocol)
	lifetimeS := uint32(lifetime / time.Second)
	// Some IGDs refuse to update an existing mapping; drop it first.
	_ = n.client.DeletePortMapping("", uint16(extport), protocol)
	err = n.client.AddPortMapping("", uint16(extport), protocol, uint16(intport), intaddr.String(), true, name, lifetimeS)
	if err != nil {
		return axerr.New(axerr.UpnpError).WithMessage("add port mapping failed").WithSource(err)
	}
	return nil
}

func (n *upnpNAT) DeleteMapping(protocol string, extport, intport int) error {
	if err := n.discover(); err != nil {
		return err
	}
	if err := n.client.DeletePortMapping("", uint16(extport), strings.ToUpper(protocol)); err != nil {
		return axerr.New(axerr.UpnpError).WithMessage("delete port mapping failed").WithSource(err)
	}
	return nil
}

func (n *upnpNAT) ExternalIP() (net.IP, error) {
	if err := n.discover(); err != nil {
		return nil, err
	}
	s, err := n.client.GetExternalIPAddress()
	if err != nil {
		return nil, axerr.New(axerr.UpnpError).WithMessage("get external ip failed").WithSource(err)
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, axerr.New(axerr.UpnpError).WithMessage("gateway reported invalid ip: %s", s)
	}
	return ip, nil
}

func (n *upnpNAT) String() string { return "UPnP" }

type pmpNAT struct {
	gw net.IP
	c  *natpmp.Client
}

func (n *pmpNAT) AddMapping(protocol string, extport, intport int, name string, lifetime time.Duration) error {
	if lifetime <= 0 {
		return axerr.New(axerr.InvalidFormat).WithMessage("lifetime must not be zero")
	}
	_, err := n.c.AddPortMapping(strings.ToLower(protocol), intport, extport, int(lifetime/time.Second))
	if err != nil {
		return axerr.New(axerr.UpnpError).WithMessage("nat-pmp mapping failed").WithSource(err)
	}
	return nil
}

func (n *pmpNAT) DeleteMapping(protocol string, extport, intport int) error {
	// NAT-PMP deletes a mapping by requesting it with zero lifetime.
	_, err := n.c.AddPortMapping(strings.ToLower(protocol), intport, 0, 0)
	if err != nil {
		return axerr.New(axerr.UpnpError).WithMessage("nat-pmp unmapping failed").WithSource(err)
	}
	return nil
}

func (n *pmpNAT) ExternalIP() (net.IP, error) {
	res, err := n.c.GetExternalAddress()
	if err != nil {
		return nil, axerr.New(axerr.UpnpError).WithMessage("nat-pmp external ip failed").WithSource(err)
	}
	return net.IPv4(res.ExternalIPAddress[0], res.ExternalIPAddress[1], res.ExternalIPAddress[2], res.ExternalIPAddress[3]), nil
}

func (n *pmpNAT) String() string { return fmt.Sprintf("NAT-PMP(%v)", n.gw) }
