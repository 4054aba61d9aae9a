// look up the addresses outbound connections can be bound to
package iface

import (
	"errors"
	"fmt"
	"net"
)

var (
	errNotExist = errors.New("interface not exist")
	errNotUp    = errors.New("interface not up")
	errNoAddr   = errors.New("interface has no address of that family")
)

func validIface(netif *net.Interface) bool {
	return netif.Flags&net.FlagUp == net.FlagUp &&
		netif.Flags&net.FlagRunning == net.FlagRunning
}

func addrsByName(name string) (ipv4, ipv6 []net.IP, err error) {
	netif, err := net.InterfaceByName(name)
	if err != nil {
		return nil, nil, fmt.Errorf("%v: %w", name, errNotExist)
	}
	if !validIface(netif) {
		return nil, nil, fmt.Errorf("%v: %w", name, errNotUp)
	}

	addrs, err := netif.Addrs()
	if err != nil {
		return nil, nil, err
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if ip := ipNet.IP.To4(); ip != nil {
			ipv4 = append(ipv4, ip)
		} else if !ipNet.IP.IsLinkLocalUnicast() {
			ipv6 = append(ipv6, ipNet.IP)
		}
	}
	return ipv4, ipv6, nil
}

func GetIPv4ByName(name string) (net.IP, error) {
	ipv4, _, err := addrsByName(name)
	if err != nil {
		return nil, err
	}
	if len(ipv4) == 0 {
		return nil, fmt.Errorf("%v: %w", name, errNoAddr)
	}
	return ipv4[0], nil
}

func GetIPv6ByName(name string) (net.IP, error) {
	_, ipv6, err := addrsByName(name)
	if err != nil {
		return nil, err
	}
	if len(ipv6) == 0 {
		return nil, fmt.Errorf("%v: %w", name, errNoAddr)
	}
	return ipv6[0], nil
}
