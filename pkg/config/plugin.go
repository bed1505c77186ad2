package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"strings"
)

// PluginFacts are the path and name facts read from the build plugin's
// generated liberty-plugin-config.xml
type PluginFacts struct {
	InstallDirectory      string `xml:"installDirectory"`
	ServerDirectory       string `xml:"serverDirectory"`
	UserDirectory         string `xml:"userDirectory"`
	ServerOutputDirectory string `xml:"serverOutputDirectory"`
	ServerName            string `xml:"serverName"`
	ConfigDirectory       string `xml:"configDirectory"`
	AppsDirectory         string `xml:"appsDirectory"`
	ProjectType           string `xml:"projectType"`
}

// LoadPluginFacts reads the plugin configuration at path
func LoadPluginFacts(path string) (*PluginFacts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin config: %w", err)
	}

	var facts PluginFacts
	if err := xml.Unmarshal(data, &facts); err != nil {
		return nil, fmt.Errorf("failed to parse plugin config %s: %w", path, err)
	}

	facts.InstallDirectory = strings.TrimSpace(facts.InstallDirectory)
	facts.ServerDirectory = strings.TrimSpace(facts.ServerDirectory)
	facts.UserDirectory = strings.TrimSpace(facts.UserDirectory)
	facts.ServerOutputDirectory = strings.TrimSpace(facts.ServerOutputDirectory)
	facts.ServerName = strings.TrimSpace(facts.ServerName)
	facts.ConfigDirectory = strings.TrimSpace(facts.ConfigDirectory)
	facts.AppsDirectory = strings.TrimSpace(facts.AppsDirectory)
	facts.ProjectType = strings.TrimSpace(facts.ProjectType)
	return &facts, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
