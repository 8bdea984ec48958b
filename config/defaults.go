package config

import "time"

// Defaults shared by flags, environment variables and config files.
const (
	DefaultSSHPort = 22

	// DefaultLocalAddress is where a bare port number listens.
	DefaultLocalAddress = "127.0.0.1"

	DefaultMode = "multi"

	// DefaultMaxLine of zero leaves command length unbounded.
	DefaultMaxLine = 0

	DefaultWriteTimeout = 30 * time.Second

	// DefaultConnTimeout bounds TCP and SSH connection setup.
	DefaultConnTimeout = 30 * time.Second

	DefaultVerbosity = 0
)
