package config

// loader.go - configuration from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix starts every supported environment variable.  Boolean
// values accept "1", "true" or "yes" in any case.
const EnvPrefix = "SCRIPTPORT_"

// LoadFromEnv overlays non-empty environment variables onto cfg.  Call
// it before flag parsing so flags win.
func LoadFromEnv(cfg *Config) {
	if v := env("LISTEN"); v != "" {
		cfg.Listen = splitList(v)
	}
	if v := env("MODE"); v != "" {
		cfg.Mode = v
	}
	if v := env("CONNECT_BACK"); v != "" {
		cfg.ConnectBack = v
	}
	if v, ok := envInt("MAX_LINE"); ok {
		cfg.MaxLine = v
	}
	if v, ok := envSeconds("WRITE_TIMEOUT"); ok {
		cfg.WriteTimeout = v
	}
	if v, ok := envSeconds("TIMEOUT"); ok {
		cfg.Timeout = v
	}
	if envBool("ALLOW_EXEC") {
		cfg.AllowExec = true
	}

	// SSH tunnel
	if v := env("TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := env("SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}
	if envBool("SSH_PASSWORD") {
		cfg.SSHPassword = true
	}
	if envBool("SSH_AGENT") {
		cfg.UseSSHAgent = true
	}
	if envBool("STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if v := env("KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}

	// Output
	if v, ok := envInt("VERBOSE"); ok && v > 0 {
		cfg.Verbose = v
	}
	if v := env("TRACE_FILE"); v != "" {
		cfg.TraceFile = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func env(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

func envInt(key string) (int, bool) {
	n, err := strconv.Atoi(env(key))
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	switch strings.ToLower(env(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// envSeconds reads a number of seconds, fractions allowed.
func envSeconds(key string) (time.Duration, bool) {
	f, err := strconv.ParseFloat(env(key), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return secondsDuration(f), true
}

func secondsDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
