package config

import (
	"errors"
	"net/url"
	"time"
)

// Config holds runtime settings for authctl.
type Config struct {
	AuthURL   string
	UsersAddr string
	Timeout   time.Duration
}

// LoadDefaults points the client at services running on localhost.
func (c *Config) LoadDefaults() {
	c.AuthURL = "http://127.0.0.1:8080"
	c.UsersAddr = "127.0.0.1:50051"
	c.Timeout = 10 * time.Second
}

func (c *Config) validate() error {
	var errs []error
	u, err := url.Parse(c.AuthURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, errors.New("auth url must be an absolute http(s) URL"))
	}
	if c.UsersAddr == "" {
		errs = append(errs, errors.New("users address is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	return errors.Join(errs...)
}

// LoadConfig applies defaults, then the JSON file, then flags from args.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
