package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File mirrors the CLI flags. Values from the file act as defaults for
// flags the user did not set explicitly on the command line.
type File struct {
	CAPath           string `yaml:"ca-path"`
	CertPath         string `yaml:"cert-path"`
	KeyPath          string `yaml:"key-path"`
	DownloadDir      string `yaml:"download-dir"`
	DiscoveryTimeout string `yaml:"discovery-timeout"` // duration string, e.g. "5s"
	Device           string `yaml:"device"`
	From             string `yaml:"from"`
	To               string `yaml:"to"`
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}
	if _, err := f.Timeout(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Timeout parses the discovery timeout, zero when unset.
func (f *File) Timeout() (time.Duration, error) {
	if f.DiscoveryTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(f.DiscoveryTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid discovery-timeout %q: %v", f.DiscoveryTimeout, err)
	}
	return d, nil
}
