package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML layout of a config file:
//
//	listen: ["4000", "unix:/run/scriptport.sock"]
//	mode: multi
//	write_timeout: 30s
//	ssh:
//	  tunnel: ops@bastion
//	  agent: true
type fileConfig struct {
	Listen       []string `yaml:"listen"`
	Mode         string   `yaml:"mode"`
	ConnectBack  string   `yaml:"connect_back"`
	MaxLine      *int     `yaml:"max_line"`
	WriteTimeout string   `yaml:"write_timeout"`
	Timeout      string   `yaml:"timeout"`
	AllowExec    *bool    `yaml:"allow_exec"`
	Verbose      *int     `yaml:"verbose"`
	TraceFile    string   `yaml:"trace_file"`

	SSH struct {
		Tunnel        string `yaml:"tunnel"`
		Key           string `yaml:"key"`
		Password      *bool  `yaml:"password"`
		Agent         *bool  `yaml:"agent"`
		StrictHostKey *bool  `yaml:"strict_hostkey"`
		KnownHosts    string `yaml:"known_hosts"`
	} `yaml:"ssh"`
}

// LoadFile overlays the YAML file at path onto cfg.  Unknown keys are
// an error.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	if err := fc.apply(cfg); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	cfg.ConfigFile = path
	return nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	if len(fc.Listen) > 0 {
		cfg.Listen = fc.Listen
	}
	setString(&cfg.Mode, fc.Mode)
	setString(&cfg.ConnectBack, fc.ConnectBack)
	if fc.MaxLine != nil {
		cfg.MaxLine = *fc.MaxLine
	}
	if err := setDuration(&cfg.WriteTimeout, "write_timeout", fc.WriteTimeout); err != nil {
		return err
	}
	if err := setDuration(&cfg.Timeout, "timeout", fc.Timeout); err != nil {
		return err
	}
	setBool(&cfg.AllowExec, fc.AllowExec)
	if fc.Verbose != nil {
		cfg.Verbose = *fc.Verbose
	}
	setString(&cfg.TraceFile, fc.TraceFile)

	setString(&cfg.TunnelSpec, fc.SSH.Tunnel)
	setString(&cfg.SSHKeyPath, fc.SSH.Key)
	setBool(&cfg.SSHPassword, fc.SSH.Password)
	setBool(&cfg.UseSSHAgent, fc.SSH.Agent)
	setBool(&cfg.StrictHostKey, fc.SSH.StrictHostKey)
	setString(&cfg.KnownHostsPath, fc.SSH.KnownHosts)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, key, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
