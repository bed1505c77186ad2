package mgmt

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// EndpointFileRelPath is where the server publishes its connector address,
// relative to the server output directory. The file only exists once the
// server has finished starting.
const EndpointFileRelPath = "logs/state/com.ibm.ws.jmx.rest.address"

const connectorScheme = "service:jmx:rest://"

// EndpointFilePath returns the connector address file for a server output directory
func EndpointFilePath(serverOutputDir string) string {
	return filepath.Join(serverOutputDir, filepath.FromSlash(EndpointFileRelPath))
}

// ParseConnectorAddress converts "service:jmx:rest://host:port/ctx" into an
// https URL. Plain http(s) URLs are accepted unchanged.
func ParseConnectorAddress(address string) (*url.URL, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("empty connector address")
	}

	if strings.HasPrefix(address, connectorScheme) {
		address = "https://" + strings.TrimPrefix(address, connectorScheme)
	} else if !strings.HasPrefix(address, "https://") && !strings.HasPrefix(address, "http://") {
		return nil, fmt.Errorf("unsupported connector address %q", address)
	}

	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connector address %q: %w", address, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("connector address %q has no host", address)
	}
	return u, nil
}

// ReadEndpointFile reads and parses the connector address file
func ReadEndpointFile(path string) (*url.URL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoint file: %w", err)
	}
	return ParseConnectorAddress(string(data))
}

// baseURL strips everything but scheme and host
func baseURL(u *url.URL) *url.URL {
	return &url.URL{Scheme: u.Scheme, Host: u.Host}
}
