// Package dev provides the hotbridge development server.
//
// This package implements:
//   - File watching for handler source and asset changes
//   - Dependency-aware reload decisions (import graph scan + walk)
//   - Plugin-based hot loading of the in-process handler
//   - An optional out-of-process backend supervisor (ws mode)
//   - WebSocket-based dev client refresh notifications
//
// # Architecture
//
// The development server consists of several components:
//
//   - Watcher: monitors the file system for changes
//   - ImportGraph: maps changed files to the handler entry module
//   - PluginLoader: rebuilds the entry package as a Go plugin
//   - Supervisor: runs and restarts the backend process in ws mode
//   - Notifier: pushes reload/error events to dev clients via WebSocket
//   - Server: glues everything to the request gateway (pkg/gateway)
//
// # Usage
//
//	srv := dev.NewServer(dev.ServerOptions{Config: cfg})
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Reload Protocol
//
// Dev clients connect to /_hotbridge/reload via WebSocket.
// Messages are JSON-encoded:
//
//	{"type": "reload"}                // handler swapped, refresh
//	{"type": "error", "error": "..."} // reload failed, show overlay
//	{"type": "clear"}                 // clear the error overlay
package dev
