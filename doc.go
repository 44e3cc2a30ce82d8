// Package console is the state layer of a cloud-management console. It keeps
// ordered collections of machines, networks, IPs, public keys and users in
// sync with a JSON API, maintains filtered views over them incrementally and
// lets presentation code read and watch nested attributes through key paths.
//
// # Architecture
//
// Data flows in one direction:
//
//	API document -> cdc.Diff -> models.Collection -> view.FilteredView -> keypath.Binding -> presentation
//
// A fetched document is diffed against the collection it feeds, so an
// unchanged record produces no event and a changed one produces a single
// attribute change rather than a remove and add. Filtered views follow their
// source with binary searches over a mapping of source indexes. Bindings
// subscribe to every link of their path and re-resolve when an
// intermediate link changes.
//
// All of this runs on a single event loop goroutine (internal/console). API
// requests run on their own goroutines and post results back to the loop.
//
// # Quick Start
//
//	cfg, _ := config.Load("")
//	client, _ := clients.NewHTTPClient(cfg.HTTPConfig(), logger.Get())
//	app, _ := console.New(console.Dependencies{Config: cfg, API: client})
//	app.Start(ctx)
//	defer app.Stop()
//
//	app.Refresh(ctx, console.ResourceMachines, nil)
//	app.SetSearch(ctx, "web")
//	app.Bind(ctx, "model.view_machines.length", func(v interface{}) {
//	    fmt.Println("visible machines:", v)
//	})
//
// # Key Packages
//
//	pkg/models       - Records, ordered collections and their events
//	pkg/view         - Incrementally maintained filtered views
//	pkg/keypath      - Key-path resolution and bindings
//	pkg/cdc          - Document diffing into change events
//	pkg/clients      - JSON API client (HTTP/2, gzip, zstd, cookie jar)
//	pkg/router       - URL fragment routes
//	pkg/admin        - Bulk admin actions
//	pkg/session      - Session cookie parsing and watching
//	pkg/config       - Configuration management
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus collectors
//	pkg/observability - Tracing
//
// # Configuration
//
// Configuration is read from console.yaml with CONSOLE_ environment
// overrides. Values in the file may reference the environment with
// ${VAR_NAME} syntax. A .env file in the working directory is loaded by the
// CLI before anything else.
//
// # Development
//
//	go test ./...
//	go run ./cmd/console config init
//	go run ./cmd/console machines --watch 5s
package console
