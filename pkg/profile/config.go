package profile

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML layout of a profile file:
//
//	profiles:
//	  items:
//	    location: public
//	    duration: 10m
//	    etag: xxhash
//	    vary_query: [page]
type FileConfig struct {
	Profiles map[string]ProfileConfig `yaml:"profiles"`
}

// ProfileConfig is one named profile as written in YAML.
type ProfileConfig struct {
	Location    string   `yaml:"location"`
	Duration    string   `yaml:"duration"`
	HTTPMaxAge  string   `yaml:"http_max_age"`
	NoStore     bool     `yaml:"no_store"`
	ETag        string   `yaml:"etag"`
	HTTPVary    []string `yaml:"http_vary"`
	VaryHeaders []string `yaml:"vary_headers"`
	VaryQuery   []string `yaml:"vary_query"`
	VaryForm    []string `yaml:"vary_form"`
	VaryCookies []string `yaml:"vary_cookies"`
	VaryEnviron []string `yaml:"vary_environ"`
	Namespace   string   `yaml:"namespace"`
	Disabled    bool     `yaml:"disabled"`
}

var etagFuncs = map[string]ETagFunc{
	"xxhash": XXHashETag,
	"sha1":   SHA1ETag,
}

// Build converts the YAML form into a Profile.
func (c ProfileConfig) Build() (*Profile, error) {
	location, err := ParseLocation(c.Location)
	if err != nil {
		return nil, err
	}

	opts := Options{
		NoStore:     c.NoStore,
		HTTPVary:    c.HTTPVary,
		VaryHeaders: c.VaryHeaders,
		VaryQuery:   c.VaryQuery,
		VaryForm:    c.VaryForm,
		VaryCookies: c.VaryCookies,
		VaryEnviron: c.VaryEnviron,
		Namespace:   c.Namespace,
		Disabled:    c.Disabled,
	}

	if c.Duration != "" {
		if opts.Duration, err = time.ParseDuration(c.Duration); err != nil {
			return nil, fmt.Errorf("%w: duration: %v", ErrInvalidProfile, err)
		}
	}
	if c.HTTPMaxAge != "" {
		d, err := time.ParseDuration(c.HTTPMaxAge)
		if err != nil {
			return nil, fmt.Errorf("%w: http_max_age: %v", ErrInvalidProfile, err)
		}
		opts.HTTPMaxAge = &d
	}
	if c.ETag != "" {
		fn, ok := etagFuncs[strings.ToLower(c.ETag)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown etag function %q", ErrInvalidProfile, c.ETag)
		}
		opts.ETagFunc = fn
	}

	return New(location, opts)
}

// ParseProfiles decodes a YAML profile file into named profiles.
func ParseProfiles(data []byte) (map[string]*Profile, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	profiles := make(map[string]*Profile, len(cfg.Profiles))
	for name, pc := range cfg.Profiles {
		p, err := pc.Build()
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		profiles[name] = p
	}
	return profiles, nil
}

// LoadProfiles reads and parses a YAML profile file.
func LoadProfiles(filename string) (map[string]*Profile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	return ParseProfiles(data)
}
