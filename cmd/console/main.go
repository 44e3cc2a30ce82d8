package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/console/internal/console"
	"github.com/ajitpratap0/console/pkg/admin"
	"github.com/ajitpratap0/console/pkg/cdc"
	"github.com/ajitpratap0/console/pkg/clients"
	"github.com/ajitpratap0/console/pkg/config"
	"github.com/ajitpratap0/console/pkg/logger"
	"github.com/ajitpratap0/console/pkg/metrics"
	"github.com/ajitpratap0/console/pkg/observability"
	"github.com/ajitpratap0/console/pkg/session"
)

var version = "0.1.0"

// runtimeEnv is everything a command needs once configuration is loaded
type runtimeEnv struct {
	cfg      *config.Config
	log      *zap.Logger
	client   *clients.HTTPClient
	app      *console.App
	tracing  *observability.Provider
	metrics  *http.Server
	cred     session.Credential
	shutdown []func()
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configPath, logLevel string
	var env *runtimeEnv

	root := &cobra.Command{
		Use:   "console",
		Short: "Console - cloud machine management console",
		Long: `Console keeps live, filtered views of the machines, networks, IPs, keys and
users exposed by the cloud API and lets administrators act on users in bulk.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to console.yaml")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	setup := func(cmd *cobra.Command, _ []string) error {
		var err error
		env, err = newRuntime(cmd.Context(), configPath, logLevel)
		if err != nil {
			return err
		}
		cmd.SetContext(session.WithUser(cmd.Context(), env.cred))
		return nil
	}
	teardown := func(*cobra.Command, []string) {
		if env != nil {
			env.close()
		}
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Console v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(configCommand(&configPath))

	// Commands below talk to the API
	var opts machinesOptions
	machinesCmd := &cobra.Command{
		Use:   "machines",
		Short: "List machines, optionally filtered and refreshed periodically",
		Example: `  console machines --filter web
  console machines --watch 5s
  console machines --watch 5s --changes --op update --where state=running`,
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.listMachines(cmd.Context(), opts)
		},
	}
	machinesCmd.Flags().StringVarP(&opts.filter, "filter", "f", "", "Only show machines whose name or id contains this text")
	machinesCmd.Flags().DurationVarP(&opts.watch, "watch", "w", 0, "Refresh every interval until interrupted or signed out")
	machinesCmd.Flags().BoolVar(&opts.changes, "changes", false, "With --watch, print change events instead of the whole list")
	machinesCmd.Flags().StringSliceVar(&opts.ops, "op", nil, "Only print changes of these operations (insert, update, delete)")
	machinesCmd.Flags().StringArrayVar(&opts.where, "where", nil, "Only print changes matching field=value, field!=value, field~text or field=a,b")
	root.AddCommand(machinesCmd)

	root.AddCommand(&cobra.Command{
		Use:               "list <resource>",
		Short:             "List a collection (machines, networks, ips, keys, users)",
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.listResource(cmd.Context(), args[0])
		},
	})

	root.AddCommand(&cobra.Command{
		Use:               "route <fragment>",
		Short:             "Resolve a URL fragment the way the console would",
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.route(cmd.Context(), args[0])
		},
	})

	root.AddCommand(&cobra.Command{
		Use:               "stats",
		Short:             "Show the stats document",
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.document(cmd.Context(), console.DocumentStats)
		},
	})

	var subject, text string
	adminCmd := &cobra.Command{
		Use:   "admin <op> <target> <id>...",
		Short: "Submit a bulk admin action",
		Long: fmt.Sprintf(`Submit a bulk admin action. Supported operations: %s.
The contact operation requires --subject and --text.`, strings.Join(opNames(), ", ")),
		Args:              cobra.MinimumNArgs(2),
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := admin.ParseOp(args[0])
			if err != nil {
				return err
			}
			return env.submit(cmd.Context(), admin.Action{
				Op:      op,
				Target:  args[1],
				IDs:     args[2:],
				Subject: subject,
				Text:    text,
			})
		},
	}
	adminCmd.Flags().StringVar(&subject, "subject", "", "Message subject for contact")
	adminCmd.Flags().StringVar(&text, "text", "", "Message body for contact")
	root.AddCommand(adminCmd)

	root.AddCommand(&cobra.Command{
		Use:               "whoami",
		Short:             "Show the user the session cookie belongs to",
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(env.cred.String())
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage console configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *configPath
			if path == "" {
				path = config.FileName
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			cfg.Session.Cookie = ""
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})
	return cmd
}

func newRuntime(ctx context.Context, configPath, logLevel string) (*runtimeEnv, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return nil, err
	}
	logger.Set(log)
	env := &runtimeEnv{cfg: cfg, log: log}
	env.shutdown = append(env.shutdown, func() { _ = log.Sync() })

	if cfg.Observability.EnableTracing {
		env.tracing, err = observability.InitTracing(cfg.TracingConfig(version))
		if err != nil {
			env.close()
			return nil, err
		}
		env.shutdown = append(env.shutdown, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = env.tracing.Shutdown(sctx)
		})
	}
	if cfg.Observability.EnableMetrics {
		env.startMetrics()
	}

	env.client, err = clients.NewHTTPClient(cfg.HTTPConfig(), log)
	if err != nil {
		env.close()
		return nil, err
	}
	env.shutdown = append(env.shutdown, func() { _ = env.client.Close() })
	env.seedCookie()

	env.app, err = console.New(console.Dependencies{Config: cfg, API: env.client, Logger: log})
	if err != nil {
		env.close()
		return nil, err
	}
	env.app.Start(ctx)
	env.shutdown = append(env.shutdown, env.app.Stop)

	if err := env.app.SetUser(ctx, env.cred); err != nil {
		env.close()
		return nil, err
	}
	logger.WithContext(session.WithUser(ctx, env.cred)).Debug("console ready",
		zap.String("api", env.client.BaseURL().String()))
	return env, nil
}

// seedCookie places the configured session cookie in the client jar so
// requests carry it and the session watcher has a baseline
func (e *runtimeEnv) seedCookie() {
	name := e.cfg.Session.CookieName
	if e.cfg.Session.Cookie != "" {
		e.client.Jar().SetCookies(e.client.BaseURL(), []*http.Cookie{{
			Name:  name,
			Value: e.cfg.Session.Cookie,
			Path:  "/",
		}})
	}
	value, _ := session.NewJarSource(e.client.Jar(), e.client.BaseURL()).Cookie(name)
	e.cred = session.ParseCredential(value)
}

func (e *runtimeEnv) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	e.metrics = &http.Server{
		Addr:              e.cfg.Observability.MetricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := e.metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	e.shutdown = append(e.shutdown, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.metrics.Shutdown(sctx)
	})
	e.log.Info("metrics server started", zap.String("address", e.metrics.Addr))
}

func (e *runtimeEnv) close() {
	for i := len(e.shutdown) - 1; i >= 0; i-- {
		e.shutdown[i]()
	}
	e.shutdown = nil
}

// refresh waits for one resource to sync
func (e *runtimeEnv) refresh(ctx context.Context, resource string) (cdc.SyncStats, error) {
	type result struct {
		stats cdc.SyncStats
		err   error
	}
	ch := make(chan result, 1)
	if err := e.app.Refresh(ctx, resource, func(stats cdc.SyncStats, err error) {
		ch <- result{stats, err}
	}); err != nil {
		return cdc.SyncStats{}, err
	}
	select {
	case r := <-ch:
		return r.stats, r.err
	case <-ctx.Done():
		return cdc.SyncStats{}, ctx.Err()
	}
}

// machinesOptions are the flags of the machines command
type machinesOptions struct {
	filter  string
	watch   time.Duration
	changes bool
	ops     []string
	where   []string
}

// changeFilter builds the change event filter from --op and --where
func (o machinesOptions) changeFilter() (*cdc.EventFilter, error) {
	if len(o.ops) == 0 && len(o.where) == 0 {
		return nil, nil
	}
	filter := &cdc.EventFilter{}
	for _, name := range o.ops {
		op, err := cdc.ParseOperation(name)
		if err != nil {
			return nil, err
		}
		filter.Operations = append(filter.Operations, op)
	}
	for _, expr := range o.where {
		cond, err := cdc.ParseCondition(expr)
		if err != nil {
			return nil, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}
	return filter, nil
}

func (e *runtimeEnv) listMachines(ctx context.Context, opts machinesOptions) error {
	filter, err := opts.changeFilter()
	if err != nil {
		return err
	}
	if err := e.app.SetSearch(ctx, opts.filter); err != nil {
		return err
	}
	if _, err := e.refresh(ctx, console.ResourceMachines); err != nil {
		return err
	}
	if err := e.printView(ctx, console.ViewMachines, []string{"id", "name", "state"}); err != nil {
		return err
	}
	if opts.watch <= 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.app.WatchSession(ctx, session.NewJarSource(e.client.Jar(), e.client.BaseURL()),
		session.RedirectFunc(func(reason string) {
			fmt.Fprintf(os.Stderr, "session %s, sign in again at %s\n", reason, e.cfg.Session.SignInURL)
			cancel()
		}))

	if opts.changes {
		sub, err := e.app.WatchChanges(ctx, filter, printChanges)
		if err != nil {
			return err
		}
		defer sub.Cancel()
	}

	ticker := time.NewTicker(opts.watch)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := e.refresh(ctx, console.ResourceMachines)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.WithContext(ctx).Warn("refresh failed", zap.Error(err))
				continue
			}
			if stats.Total() == 0 || opts.changes {
				continue
			}
			fmt.Printf("\n%s  +%d ~%d -%d\n", time.Now().Format(time.TimeOnly),
				stats.Inserted, stats.Updated, stats.Deleted)
			if err := e.printView(ctx, console.ViewMachines, []string{"id", "name", "state"}); err != nil {
				return err
			}
		}
	}
}

// printChanges writes one line per change event. It runs on the loop.
func printChanges(events []cdc.ChangeEvent) {
	for _, ev := range events {
		line := ev.Timestamp.Format(time.TimeOnly) + "  " + ev.String()
		if len(ev.Changed) > 0 {
			line += "  " + strings.Join(ev.Changed, ",")
		}
		fmt.Println(line)
	}
}

func (e *runtimeEnv) listResource(ctx context.Context, resource string) error {
	if _, err := e.refresh(ctx, resource); err != nil {
		return err
	}
	viewName := resource
	if resource == console.ResourceUsers {
		if err := e.printView(ctx, console.ViewPendingUsers, nil); err != nil {
			return err
		}
		viewName = console.ViewActiveUsers
	}
	return e.printView(ctx, viewName, nil)
}

// printView writes a view as a table. With no columns every attribute seen
// in the view is printed, id first.
func (e *runtimeEnv) printView(ctx context.Context, viewName string, columns []string) error {
	docs, err := e.app.Snapshot(ctx, viewName)
	if err != nil {
		return err
	}
	if columns == nil {
		columns = columnsOf(docs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "# %s (%d)\n", viewName, len(docs))
	fmt.Fprintln(w, strings.ToUpper(strings.Join(columns, "\t")))
	for _, doc := range docs {
		cells := make([]string, len(columns))
		for i, c := range columns {
			if v, ok := doc[c]; ok && v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func columnsOf(docs []map[string]interface{}) []string {
	seen := map[string]struct{}{}
	for _, doc := range docs {
		for k := range doc {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		if k != "id" {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	return append([]string{"id"}, cols...)
}

func (e *runtimeEnv) route(ctx context.Context, fragment string) error {
	if _, err := e.refresh(ctx, console.ResourceMachines); err != nil {
		return err
	}
	m, err := e.app.Navigate(ctx, fragment)
	if err != nil {
		return err
	}
	viewName, err := e.app.Read(ctx, "model.view")
	if err != nil {
		return err
	}
	fmt.Printf("route:    %s\n", m.Route)
	fmt.Printf("view:     %v\n", viewName)
	if m.Fallback {
		fmt.Printf("fallback: %q did not match\n", fragment)
	}
	for k, v := range m.Params {
		fmt.Printf("param:    %s=%s\n", k, v)
	}
	if id := m.Param("id"); id != "" {
		name, err := e.app.Read(ctx, "model.selected.name")
		if err != nil {
			return err
		}
		fmt.Printf("selected: %v\n", name)
	}
	return nil
}

func (e *runtimeEnv) document(ctx context.Context, name string) error {
	done := make(chan error, 1)
	if err := e.app.FetchDocument(ctx, name, func(err error) { done <- err }); err != nil {
		return err
	}
	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	var attrs map[string]interface{}
	if err := e.app.Loop().Call(ctx, func() error {
		attrs = e.app.Document(name).Attributes()
		return nil
	}); err != nil {
		return err
	}
	out, err := yaml.Marshal(attrs)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

func (e *runtimeEnv) submit(ctx context.Context, action admin.Action) error {
	done := make(chan error, 1)
	if err := e.app.SubmitAdmin(ctx, action, func(status *clients.Status, err error) {
		if err == nil {
			fmt.Printf("%s %s: %d\n", action.Op, action.Target, status.Code)
		}
		done <- err
	}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func opNames() []string {
	names := make([]string, 0, len(admin.Ops))
	for _, op := range admin.Ops {
		names = append(names, string(op))
	}
	return names
}
