// Package config loads mcgravity's YAML configuration file (spec component
// C6): the aggregator's own identity plus the map of upstream servers to
// register at startup.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcgravity/mcgravity/registry"
)

// Server is one entry of the config file's servers map.
type Server struct {
	URL         string   `yaml:"url"`
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
}

// Config is the parsed shape of the aggregator's YAML config file.
type Config struct {
	Name        string            `yaml:"name"`
	Version     string            `yaml:"version"`
	Description string            `yaml:"description"`
	Servers     map[string]Server `yaml:"servers"`
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate applies the structural schema spec §6 requires: every server
// entry needs a URL that parses as absolute. name/version are optional —
// defaultDescriptor fills them in per spec §3.
func (c *Config) Validate() error {
	for key, srv := range c.Servers {
		if strings.TrimSpace(srv.URL) == "" {
			return fmt.Errorf("servers.%s: url is required", key)
		}
		parsed, err := url.Parse(srv.URL)
		if err != nil {
			return fmt.Errorf("servers.%s: invalid url: %w", key, err)
		}
		if !parsed.IsAbs() {
			return fmt.Errorf("servers.%s: url must be absolute (scheme://host/...)", key)
		}
	}
	return nil
}

// Descriptors converts the config's servers map into registry descriptors.
func (c *Config) Descriptors() []registry.Descriptor {
	descriptors := make([]registry.Descriptor, 0, len(c.Servers))
	for _, srv := range c.Servers {
		descriptors = append(descriptors, defaultDescriptor(registry.Descriptor{
			URL:         srv.URL,
			Name:        srv.Name,
			Version:     srv.Version,
			Description: srv.Description,
			Tags:        srv.Tags,
		}))
	}
	return descriptors
}

// DescriptorsFromURLs builds descriptors from bare positional upstream
// URLs (the CLI fallback path when --config is not given or names no
// existing file, spec §6).
func DescriptorsFromURLs(urls []string) []registry.Descriptor {
	descriptors := make([]registry.Descriptor, 0, len(urls))
	for _, u := range urls {
		descriptors = append(descriptors, defaultDescriptor(registry.Descriptor{URL: u}))
	}
	return descriptors
}

// defaultDescriptor fills in the defaults spec.md §3 documents for
// UpstreamDescriptor: name defaults to the URL's host, version to "1.0.0".
func defaultDescriptor(d registry.Descriptor) registry.Descriptor {
	if strings.TrimSpace(d.Name) == "" {
		if parsed, err := url.Parse(d.URL); err == nil {
			d.Name = parsed.Host
		}
	}
	if strings.TrimSpace(d.Version) == "" {
		d.Version = "1.0.0"
	}
	return d
}
