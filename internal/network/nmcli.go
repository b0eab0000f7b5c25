package network

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
)

// apConnection is the NetworkManager profile name used for provisioning
const apConnection = "thermonode-setup"

// Runner executes a command and returns its combined output
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// NMStation drives a WiFi interface through NetworkManager's nmcli
type NMStation struct {
	iface string
	run   Runner
	addrs func(iface string) ([]net.Addr, error)
}

// NewNMStation returns a station for iface
func NewNMStation(iface string, run Runner) *NMStation {
	return &NMStation{iface: iface, run: run, addrs: interfaceAddrs}
}

// Join implements Station
func (s *NMStation) Join(ctx context.Context, ssid, password string) error {
	_, err := s.run(ctx, "nmcli", "--wait", "0", "device", "wifi", "connect", ssid, "password", password, "ifname", s.iface)
	return err
}

// Connected implements Station
func (s *NMStation) Connected(ctx context.Context) bool {
	out, err := s.run(ctx, "nmcli", "-t", "-g", "GENERAL.STATE", "device", "show", s.iface)
	if err != nil {
		return false
	}
	// e.g. "100 (connected)"
	return strings.HasPrefix(strings.TrimSpace(string(out)), "100")
}

// Address implements Station
func (s *NMStation) Address(ctx context.Context) (string, error) {
	addrs, err := s.addrs(s.iface)
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", fmt.Errorf("no IPv4 address on %s", s.iface)
}

func interfaceAddrs(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.Addrs()
}

// NMAccessPoint runs an open access point with a shared IPv4 network
type NMAccessPoint struct {
	iface   string
	address string // gateway address in CIDR form, e.g. 192.168.4.1/24
	run     Runner
}

// NewNMAccessPoint returns an access point on iface serving address/24
func NewNMAccessPoint(iface, address string, run Runner) *NMAccessPoint {
	return &NMAccessPoint{iface: iface, address: address + "/24", run: run}
}

// Start implements AccessPoint
func (a *NMAccessPoint) Start(ctx context.Context, name string) error {
	// A stale profile from an interrupted run would make "add" fail.
	a.run(ctx, "nmcli", "connection", "delete", apConnection)

	if _, err := a.run(ctx, "nmcli", "connection", "add",
		"type", "wifi",
		"ifname", a.iface,
		"con-name", apConnection,
		"autoconnect", "no",
		"ssid", name,
		"802-11-wireless.mode", "ap",
		"802-11-wireless.band", "bg",
		"ipv4.method", "shared",
		"ipv4.addresses", a.address,
	); err != nil {
		return fmt.Errorf("creating access point: %w", err)
	}

	if _, err := a.run(ctx, "nmcli", "connection", "up", apConnection); err != nil {
		return fmt.Errorf("starting access point: %w", err)
	}

	return nil
}

// Stop implements AccessPoint
func (a *NMAccessPoint) Stop(ctx context.Context) error {
	if _, err := a.run(ctx, "nmcli", "connection", "delete", apConnection); err != nil {
		return fmt.Errorf("stopping access point: %w", err)
	}
	return nil
}
