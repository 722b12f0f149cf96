// Command runasm builds run-assembly sources and disassembles the images.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/deixis/runasm"
	"github.com/deixis/runasm/internal/compiler"
	"github.com/deixis/runasm/internal/config"
	rasmcp "github.com/deixis/runasm/internal/mcp"
	"github.com/deixis/runasm/internal/observability"
	"github.com/deixis/runasm/internal/output"
	"github.com/deixis/runasm/internal/report"
	"github.com/deixis/runasm/internal/runner"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("runasm: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "build":
		err = buildMain(args)
	case "objdump":
		err = objdumpMain(args)
	case "caps":
		err = capsMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(runasm.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "runasm: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: runasm <command> [flags] [args]

Commands:
  build       Assemble a .run file and stage output.rom next to it
  objdump     Disassemble a staged .rom image
  caps        Print the adapter's capabilities as JSON
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "runasm <command> -h" for command-specific flags.`)
}

// --- build ---

func buildMain(args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output the build result as JSON")
	verboseFlag := fs.Bool("v", false, "debug logging")
	timeoutFlag := fs.Duration("timeout", 0, "override configured timeout (e.g. 30s)")
	exeFlag := fs.String("toolchain", "", "toolchain executable (overrides toolchain.exe)")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("build: expected exactly one input file")
	}
	input, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}

	setupLogging(*verboseFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := newCompiler(ctx, *timeoutFlag)
	if err != nil {
		return err
	}

	result, err := c.RunCompiler(ctx, compiler.BuildRequest{Exe: *exeFlag, Input: input})
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	if *jsonFlag {
		if err := writeJSON(result); err != nil {
			return err
		}
	} else {
		fmt.Print(formatBuildCLI(result))
	}

	if !result.Succeeded() {
		os.Exit(result.Code)
	}
	return nil
}

func formatBuildCLI(r *report.BuildResult) string {
	var b []byte
	w := func(format string, args ...any) {
		b = fmt.Appendf(b, format, args...)
	}

	b = append(b, output.String(r.Stdout)...)
	if r.Stderr != "" {
		w("%s", r.Stderr)
	}
	if r.Succeeded() {
		w("ok  %s\n", r.OutputPath)
	} else {
		w("FAIL  no output artifact produced\n")
	}
	return string(b)
}

// --- objdump ---

func objdumpMain(args []string) error {
	fs := flag.NewFlagSet("objdump", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output the listing as JSON")
	verboseFlag := fs.Bool("v", false, "debug logging")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("objdump: expected exactly one .rom file")
	}
	path, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}

	setupLogging(*verboseFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c, err := newCompiler(ctx, 0)
	if err != nil {
		return err
	}

	listing, err := c.Disassemble(ctx, path)
	if err != nil {
		return fmt.Errorf("objdump: %w", err)
	}

	if *jsonFlag {
		return writeJSON(listing)
	}
	fmt.Print(listing.String())
	return nil
}

// --- caps ---

func capsMain(args []string) error {
	fs := flag.NewFlagSet("caps", flag.ExitOnError)
	_ = fs.Parse(args)

	c, err := newCompiler(context.Background(), 0)
	if err != nil {
		return err
	}
	return writeJSON(c.Capabilities())
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	verboseFlag := fs.Bool("v", false, "debug logging")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(rasmcp.Instructions)
		return nil
	}

	setupLogging(*verboseFlag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, *httpAddr)
}

func serve(ctx context.Context, httpAddr string) error {
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}
	defer func() { _ = metrics.Shutdown(context.Background()) }()

	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := initCompiler(ctx, loaded.Config, 0, compiler.WithMetrics(metrics))
	if err != nil {
		return err
	}

	store := report.NewLRUStore(loaded.Config.StoreCapacity(), report.NewDiskStore())
	server := rasmcp.NewServer(c, store)

	if httpAddr != "" {
		return serveHTTP(ctx, server, metricsHandler, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, metricsHandler http.Handler, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.Handle("/", mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	slog.Info("Listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func loadConfig() (*config.LoadResult, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}
	loaded, err := config.Load(wd)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return loaded, nil
}

func newCompiler(ctx context.Context, timeoutOverride time.Duration) (*compiler.Compiler, error) {
	loaded, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return initCompiler(ctx, loaded.Config, timeoutOverride)
}

func initCompiler(ctx context.Context, cfg *config.Config, timeoutOverride time.Duration, opts ...compiler.Option) (*compiler.Compiler, error) {
	timeout := cfg.Timeout()
	if timeoutOverride > 0 {
		timeout = timeoutOverride
	}

	r := &runner.Runner{
		Timeout:   timeout,
		MaxOutput: cfg.MaxOutputBytes(),
	}

	c, err := compiler.New(cfg, r, opts...)
	if err != nil {
		return nil, fmt.Errorf("configuring compiler: %w", err)
	}
	if err := c.Initialise(ctx); err != nil {
		return nil, fmt.Errorf("initialising compiler: %w", err)
	}
	return c, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
