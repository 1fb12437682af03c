// Package config loads the GRASS server's startup configuration: the
// base directory, listen port, and credential table, parsed from the
// fixed grass.conf line format.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ServerConfig is immutable once loaded.
type ServerConfig struct {
	Port        uint16
	BaseDir     string
	Credentials map[string]string
}

// CheckLogin reports whether username/password is a valid credential
// pair.
func (c *ServerConfig) CheckLogin(username, password string) bool {
	pw, ok := c.Credentials[username]
	return ok && pw == password
}

// Load reads and parses a grass.conf-style file from path.
func Load(path string) (*ServerConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) (*ServerConfig, error) {
	cfg := &ServerConfig{Credentials: map[string]string{}}
	port := -1

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := removeComment(scanner.Text())

		switch {
		case strings.HasPrefix(line, "base "):
			cfg.BaseDir = strings.TrimSpace(line[len("base "):])

		case strings.HasPrefix(line, "port "):
			if n, err := strconv.Atoi(strings.TrimSpace(line[len("port "):])); err == nil {
				port = n
			} else {
				port = -1
			}

		case strings.HasPrefix(line, "user "):
			rest := line[len("user "):]
			sep := strings.IndexByte(rest, ' ')
			if sep <= 0 || sep == len(rest) {
				continue
			}
			username := rest[:sep]
			password := rest[sep+1:]
			if !strings.Contains(password, " ") {
				cfg.Credentials[username] = password
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("port number out of range")
	}
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("invalid config file: base directory should be specified")
	}

	cfg.Port = uint16(port)
	return cfg, nil
}

func removeComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}
