// Package mcp connects to Model Context Protocol servers and exposes their
// tools as external capabilities.
//
// Server tools are registered under "<server>_<tool>" with both parts
// sanitized, so they can be named in an agent's tool allowlist:
//
//	client := mcp.NewClient()
//	_ = client.AddServer(ctx, "github", mcp.ConfigFrom(cfg.MCP["github"]))
//	mcp.RegisterTools(client, registry)
//
// A definition that lists "github_create_issue" can then call that tool;
// definitions without the name never see it.
package mcp
