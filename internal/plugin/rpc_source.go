package plugin

import (
	"net/rpc"

	plugin "github.com/hashicorp/go-plugin"
)

// SourcePlugin is the go-plugin wrapper that serves a Source over
// net/rpc. Impl is set on the plugin side and nil on the host side.
type SourcePlugin struct {
	Impl Source
}

func (p *SourcePlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &SourceRPCServer{Impl: p.Impl}, nil
}

func (p *SourcePlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &SourceRPCClient{client: c}, nil
}

// SearchArgs carries a search request across the RPC boundary.
type SearchArgs struct {
	Query string
	Limit int
}

// SourceRPCClient is the host-side proxy for a remote source.
type SourceRPCClient struct {
	client *rpc.Client
}

func (c *SourceRPCClient) Name() string {
	var resp string
	if err := c.client.Call("Plugin.Name", new(interface{}), &resp); err != nil {
		return "unknown"
	}
	return resp
}

func (c *SourceRPCClient) Search(query string, limit int) ([]Result, error) {
	var resp []Result
	err := c.client.Call("Plugin.Search", SearchArgs{Query: query, Limit: limit}, &resp)
	return resp, err
}

// SourceRPCServer is the plugin-side RPC server wrapping the real
// implementation.
type SourceRPCServer struct {
	Impl Source
}

func (s *SourceRPCServer) Name(args interface{}, resp *string) error {
	*resp = s.Impl.Name()
	return nil
}

func (s *SourceRPCServer) Search(args SearchArgs, resp *[]Result) error {
	results, err := s.Impl.Search(args.Query, args.Limit)
	if err != nil {
		return err
	}
	*resp = results
	return nil
}
