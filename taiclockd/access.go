package taiclockd

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// inConfigDir reports whether name resolves to a file directly inside dir
func inConfigDir(dir, name string) (string, bool) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	absFile, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return "", false
	}
	return absFile, strings.HasPrefix(absFile, absDir+string(filepath.Separator))
}

// parsePort accepts "4014" or ":4014"
func parsePort(s string) (string, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), ":")
	port, err := strconv.Atoi(s)
	if err != nil || port <= 0 || port > 65535 {
		return "", false
	}
	return strconv.Itoa(port), true
}

// listenAddr returns Addr, with its port replaced by the content of a
// "port" file in ConfigDir when that file holds a valid port.
func (c *Config) listenAddr() string {
	if c.ConfigDir == "" {
		return c.Addr
	}
	path, ok := inConfigDir(c.ConfigDir, "port")
	if !ok {
		return c.Addr
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c.Addr
	}
	port, ok := parsePort(string(data))
	if !ok {
		return c.Addr
	}

	host, _, err := net.SplitHostPort(c.Addr)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, port)
}

func isNetworkName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') && !(r >= 'A' && r <= 'F') &&
			r != '.' && r != ':' {
			return false
		}
	}
	return true
}

func (c *Config) hasNetworkFile(network string) bool {
	if !isNetworkName(network) {
		return false
	}
	path, ok := inConfigDir(c.ConfigDir, network)
	if !ok {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// ClientOK follows DJB's clientok: with a ConfigDir, a client is allowed
// when a file named after its address, or its /8, /16 or /24 IPv4
// network, exists there. A file named "0" allows everybody. Without a
// ConfigDir everybody is allowed.
func (c *Config) ClientOK(ip net.IP) bool {
	if c.ConfigDir == "" {
		return true
	}
	if c.hasNetworkFile("0") {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		network := strconv.Itoa(int(ip4[0]))
		for i := 1; i <= 3; i++ {
			if c.hasNetworkFile(network) {
				return true
			}
			if i < 3 {
				network += "." + strconv.Itoa(int(ip4[i]))
			}
		}
	}

	return c.hasNetworkFile(ip.String())
}
