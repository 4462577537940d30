// Package plugin loads external context sources as subprocess plugins
// over hashicorp/go-plugin's net/rpc protocol. A source plugin answers
// search queries with scored snippets that the search layer merges with
// local and web results.
package plugin

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	hclog "github.com/hashicorp/go-hclog"
	plugin "github.com/hashicorp/go-plugin"
)

// Handshake is used to verify host and plugin agree on the protocol.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "ACE_PLUGIN",
	MagicCookieValue: "ace-context-engine",
}

// Result is one snippet returned by an external source.
type Result struct {
	Content string
	URL     string
	Tags    []string
	Score   float64
}

// Source is the interface a context source plugin implements.
type Source interface {
	Name() string
	Search(query string, limit int) ([]Result, error)
}

// PluginMap names the plugins a host can dispense.
var PluginMap = map[string]plugin.Plugin{
	"source": &SourcePlugin{},
}

// Host owns a running plugin subprocess and its dispensed source.
type Host struct {
	client *plugin.Client
	source Source
}

// Open launches the plugin binary at path and dispenses its source.
// The caller must Close the host to reap the subprocess.
func Open(path string) (*Host, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              exec.Command(path),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "plugin",
			Output: io.Discard,
			Level:  hclog.Error,
		}),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("plugin %s: %w", filepath.Base(path), err)
	}
	raw, err := rpcClient.Dispense("source")
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("plugin %s: dispense: %w", filepath.Base(path), err)
	}
	source, ok := raw.(Source)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin %s: not a source plugin", filepath.Base(path))
	}
	return &Host{client: client, source: source}, nil
}

// Source returns the dispensed source.
func (h *Host) Source() Source { return h.source }

// Close kills the plugin subprocess.
func (h *Host) Close() {
	h.client.Kill()
}

// Serve runs impl as a plugin binary. Plugin main functions call this
// and never return.
func Serve(impl Source) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			"source": &SourcePlugin{Impl: impl},
		},
	})
}

// Discover lists executable files in dir, the conventional plugin
// directory. A missing dir yields an empty list.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Mode()&0o111 == 0 {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}
