package network

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"

	"github.com/jgoulah/thermonode/internal/retry"
	"github.com/jgoulah/thermonode/pkg/models"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeStation struct {
	connectAfter int // status checks before the link comes up; 0 means never
	checks       int
	joined       []string
}

func (f *fakeStation) Join(ctx context.Context, ssid, password string) error {
	f.joined = append(f.joined, ssid)
	return nil
}

func (f *fakeStation) Connected(context.Context) bool {
	f.checks++
	return f.connectAfter > 0 && f.checks >= f.connectAfter
}

func (f *fakeStation) Address(context.Context) (string, error) {
	return "192.168.1.23", nil
}

var home = models.Credentials{SSID: "Home", Password: "secret123"}

func TestConnectSucceedsWithinPolicy(t *testing.T) {
	for _, k := range []int{1, 7, 30} {
		st := &fakeStation{connectAfter: k}
		c := NewConnector(st, retry.Bounded(30, 0), discard)

		addr, err := c.Connect(context.Background(), home)
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if addr != "192.168.1.23" {
			t.Errorf("k=%d: address %q", k, addr)
		}
		if st.checks != k {
			t.Errorf("k=%d: checks %d", k, st.checks)
		}
	}
}

func TestConnectExhausted(t *testing.T) {
	st := &fakeStation{connectAfter: 31}
	c := NewConnector(st, retry.Bounded(30, 0), discard)

	_, err := c.Connect(context.Background(), home)
	if !errors.Is(err, ErrAssociationExhausted) {
		t.Fatalf("got %v, want ErrAssociationExhausted", err)
	}
	if st.checks != 30 {
		t.Errorf("checks: got %d, want 30", st.checks)
	}
	if len(st.joined) != 1 || st.joined[0] != "Home" {
		t.Errorf("joined: %v", st.joined)
	}
}

func TestConnectRejectsIncompleteCredentials(t *testing.T) {
	st := &fakeStation{connectAfter: 1}
	c := NewConnector(st, retry.Bounded(30, 0), discard)

	if _, err := c.Connect(context.Background(), models.Credentials{SSID: "Home"}); err == nil {
		t.Fatal("expected error")
	}
	if len(st.joined) != 0 {
		t.Errorf("joined with incomplete credentials: %v", st.joined)
	}
}

type scriptedRunner struct {
	calls   []string
	outputs map[string]string
	fail    map[string]bool
}

func (r *scriptedRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	call := name + " " + strings.Join(args, " ")
	r.calls = append(r.calls, call)
	for prefix, failed := range r.fail {
		if failed && strings.HasPrefix(call, prefix) {
			return nil, errors.New("exit status 10")
		}
	}
	for prefix, out := range r.outputs {
		if strings.HasPrefix(call, prefix) {
			return []byte(out), nil
		}
	}
	return nil, nil
}

func TestNMStationConnected(t *testing.T) {
	tests := []struct {
		out  string
		want bool
	}{
		{"100 (connected)\n", true},
		{"30 (disconnected)\n", false},
		{"50 (connecting (configuring))\n", false},
	}

	for _, tt := range tests {
		r := &scriptedRunner{outputs: map[string]string{"nmcli -t -g GENERAL.STATE": tt.out}}
		s := NewNMStation("wlan0", r.run)
		if got := s.Connected(context.Background()); got != tt.want {
			t.Errorf("%q: got %v, want %v", tt.out, got, tt.want)
		}
	}
}

func TestNMStationJoin(t *testing.T) {
	r := &scriptedRunner{}
	s := NewNMStation("wlan0", r.run)

	if err := s.Join(context.Background(), "Home", "secret123"); err != nil {
		t.Fatal(err)
	}
	want := "nmcli --wait 0 device wifi connect Home password secret123 ifname wlan0"
	if len(r.calls) != 1 || r.calls[0] != want {
		t.Errorf("got %q, want %q", r.calls, want)
	}
}

func TestNMStationAddress(t *testing.T) {
	s := NewNMStation("wlan0", nil)
	s.addrs = func(string) ([]net.Addr, error) {
		return []net.Addr{
			&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
			&net.IPNet{IP: net.ParseIP("192.168.1.23"), Mask: net.CIDRMask(24, 32)},
		}, nil
	}

	got, err := s.Address(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "192.168.1.23" {
		t.Errorf("got %q", got)
	}
}

func TestNMAccessPointStart(t *testing.T) {
	r := &scriptedRunner{fail: map[string]bool{"nmcli connection delete": true}}
	ap := NewNMAccessPoint("wlan0", "192.168.4.1", r.run)

	if err := ap.Start(context.Background(), "ESP32-Setup"); err != nil {
		t.Fatalf("stale profile cleanup failure should be ignored: %v", err)
	}
	if len(r.calls) != 3 {
		t.Fatalf("calls: %q", r.calls)
	}
	add := r.calls[1]
	for _, want := range []string{"ssid ESP32-Setup", "802-11-wireless.mode ap", "ipv4.addresses 192.168.4.1/24"} {
		if !strings.Contains(add, want) {
			t.Errorf("add command %q missing %q", add, want)
		}
	}
	if r.calls[2] != "nmcli connection up "+apConnection {
		t.Errorf("up command: %q", r.calls[2])
	}
}
