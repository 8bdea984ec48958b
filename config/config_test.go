package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serr "scriptport/internal/errors"
)

// ── ParseListenAddr ──────────────────────────────────────────────────

func TestParseListenAddr(t *testing.T) {
	tests := []struct {
		input   string
		network string
		address string
		wantErr bool
	}{
		{"4000", "tcp", "127.0.0.1:4000", false},
		{":4000", "tcp", ":4000", false},
		{"0.0.0.0:4000", "tcp", "0.0.0.0:4000", false},
		{"[::1]:4000", "tcp", "[::1]:4000", false},
		{"localhost:0", "tcp", "localhost:0", false},
		{"unix:/tmp/s.sock", "unix", "/tmp/s.sock", false},
		{"/run/scriptport.sock", "unix", "/run/scriptport.sock", false},
		{"", "", "", true},
		{"unix:", "", "", true},
		{"70000", "", "", true},
		{"host", "", "", true},
		{"host:http", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			a, err := ParseListenAddr(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseListenAddr(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if a.Network != tt.network || a.Address != tt.address {
				t.Errorf("got %s %s, want %s %s", a.Network, a.Address, tt.network, tt.address)
			}
		})
	}
}

func TestListenAddr_String(t *testing.T) {
	assert.Equal(t, "unix:/s", ListenAddr{Network: "unix", Address: "/s"}.String())
	assert.Equal(t, "127.0.0.1:1", ListenAddr{Network: "tcp", Address: "127.0.0.1:1"}.String())
}

// ── ParseTunnelSpec ──────────────────────────────────────────────────

func TestParseTunnelSpec(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantUser string
		wantHost string
		wantPort int
		wantErr  bool
	}{
		{"full", "admin@bastion.example.com:2222", "admin", "bastion.example.com", 2222, false},
		{"no port", "root@gateway", "root", "gateway", 22, false},
		{"no user", "jump-host:2200", "", "jump-host", 2200, false},
		{"host only", "gateway.local", "", "gateway.local", 22, false},
		{"bad port", "user@host:999999", "", "", 0, true},
		{"empty", "", "", "", 0, true},
		{"colon only", ":", "", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, host, port, err := ParseTunnelSpec(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if user != tt.wantUser || host != tt.wantHost || port != tt.wantPort {
				t.Errorf("got (%q, %q, %d), want (%q, %q, %d)",
					user, host, port, tt.wantUser, tt.wantHost, tt.wantPort)
			}
		})
	}
}

// ── Validate ─────────────────────────────────────────────────────────

func TestValidate_OK(t *testing.T) {
	cfg := Defaults()
	cfg.Listen = []string{"4000", "unix:/tmp/x.sock"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []ListenAddr{
		{Network: "tcp", Address: "127.0.0.1:4000"},
		{Network: "unix", Address: "/tmp/x.sock"},
	}, cfg.Listeners)

	// Validating twice does not duplicate listeners.
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Listeners, 2)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		field   string
		wantSub string
	}{
		{"nothing to do", func(c *Config) {}, "listen", "hint:"},
		{"bad listen", func(c *Config) { c.Listen = []string{"nope"} }, "listen", "invalid listen address"},
		{"bad mode", func(c *Config) { c.Listen = []string{"1"}; c.Mode = "twice" }, "mode", "once, single, multi"},
		{"negative max line", func(c *Config) { c.Listen = []string{"1"}; c.MaxLine = -1 }, "max-line", "negative"},
		{"client and server", func(c *Config) { c.Connect = "4000"; c.Listen = []string{"1"} }, "connect", "cannot be combined"},
		{"tunnel without dial", func(c *Config) {
			c.Listen = []string{"1"}
			c.TunnelEnabled = true
			c.TunnelHost = "gw"
		}, "tunnel", "hint:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			var ce *serr.ConfigError
			require.ErrorAs(t, err, &ce)
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestValidate_ClientAndConnectBack(t *testing.T) {
	cfg := Defaults()
	cfg.Connect = "4000"
	assert.NoError(t, cfg.Validate())

	cfg = Defaults()
	cfg.ConnectBack = "controller:7000"
	cfg.TunnelEnabled = true
	cfg.TunnelHost = "gw"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ListenAddr{Network: "tcp", Address: "controller:7000"}, cfg.BackAddr)

	cfg.ConnectBack = "controller"
	var ce *serr.ConfigError
	require.ErrorAs(t, cfg.Validate(), &ce)
	assert.Equal(t, "connect-back", ce.Field)
}
