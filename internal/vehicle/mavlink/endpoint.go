package mavlink

import (
	"fmt"
	"net/url"

	"github.com/bluenviron/gomavlib/v3"
)

// ParseEndpoint turns an endpoint URL into a gomavlib endpoint:
//
//	udp://[host]:port        listen for the vehicle
//	udpclient://host:port    send to a vehicle that listens
//	tcp://host:port          connect to a TCP server, e.g. a simulator
//	tcpserver://[host]:port  accept a TCP connection
func ParseEndpoint(raw string) (gomavlib.EndpointConf, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	if u.Port() == "" {
		return nil, fmt.Errorf("invalid endpoint %q: missing port", raw)
	}

	switch u.Scheme {
	case "udp", "udpserver":
		return gomavlib.EndpointUDPServer{Address: u.Host}, nil
	case "udpclient":
		return gomavlib.EndpointUDPClient{Address: u.Host}, nil
	case "tcp", "tcpclient":
		return gomavlib.EndpointTCPClient{Address: u.Host}, nil
	case "tcpserver":
		return gomavlib.EndpointTCPServer{Address: u.Host}, nil
	default:
		return nil, fmt.Errorf("invalid endpoint %q: unsupported scheme %q", raw, u.Scheme)
	}
}
