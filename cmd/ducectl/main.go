package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/duce/channel"
	"github.com/wippyai/duce/composition"
	"github.com/wippyai/duce/compositor"
	"github.com/wippyai/duce/transport"
	"github.com/wippyai/duce/transport/redistransport"
)

func main() {
	var (
		transportName = flag.String("transport", "local", "Transport: local or redis")
		redisAddr     = flag.String("redis", "localhost:6379", "Redis address for -transport redis and -serve")
		prefix        = flag.String("prefix", redistransport.DefaultPrefix, "Redis key prefix")
		serve         = flag.Bool("serve", false, "Serve an in-process compositor over Redis and block")
		pool          = flag.Int("pool", composition.DefaultMaxFreeSyncChannels, "Maximum free sync channels kept for reuse")
		resources     = flag.Int("resources", 8, "Number of gradient brushes to create")
		verbose       = flag.Bool("v", false, "Verbose logging")
		dump          = flag.Bool("dump", false, "Dump final statistics")
		interactive   = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	log := buildLogger(*verbose && !*interactive)
	defer log.Sync()
	channel.SetLogger(log.Named("channel"))
	composition.SetLogger(log.Named("composition"))
	compositor.SetLogger(log.Named("compositor"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := redistransport.Options{Prefix: *prefix, Logger: log}

	if *serve {
		if err := runServer(ctx, *redisAddr, opts, log); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg := composition.DefaultConfig()
	cfg.MaxFreeSyncChannels = *pool
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var (
		dialer transport.Dialer
		local  *compositor.Compositor
	)
	switch *transportName {
	case "local":
		local = compositor.New()
		defer local.Close()
		dialer = local
	case "redis":
		rdb := buildRedisClient(*redisAddr)
		defer rdb.Close()
		dialer = redistransport.NewDialer(rdb, opts)
	default:
		fmt.Fprintln(os.Stderr, "Usage: ducectl [-transport local|redis] [-redis addr] [-pool n] [-resources n] [-v] [-dump]")
		fmt.Fprintln(os.Stderr, "       ducectl -serve [-redis addr]")
		fmt.Fprintln(os.Stderr, "       ducectl -i  (interactive mode)")
		os.Exit(1)
	}

	sc := newScenario(dialer, cfg, *resources)

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(ctx, sc, *transportName); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	rep, err := sc.runAll(ctx)
	printReport(rep)
	if local != nil {
		fmt.Printf("\nCompositor: %d partitions left, %d batches applied, %d errors\n",
			local.Partitions(), local.Stats().Batches, local.Stats().Errors)
	}
	if *dump {
		fmt.Println()
		spew.Dump(rep.Manager, rep.Channel)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, addr string, opts redistransport.Options, log *zap.Logger) error {
	rdb := buildRedisClient(addr)
	defer rdb.Close()

	comp := compositor.New()
	defer comp.Close()

	log.Info("serving compositor", zap.String("addr", addr), zap.String("prefix", opts.Prefix))
	return redistransport.NewServer(rdb, comp, opts).Serve(ctx)
}

func buildLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	logConfig.Level.SetLevel(zap.DebugLevel)
	return zap.Must(logConfig.Build())
}

func buildRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MaxRetries:   3,
	})
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
)

func printReport(rep report) {
	width := 0
	for _, r := range rep.Steps {
		width = max(width, len(r.name))
	}
	for _, r := range rep.Steps {
		fmt.Println(formatStep(r, width))
	}

	m, c := rep.Manager, rep.Channel
	fmt.Printf("\nSync pool: %d created, %d reused, %d pooled, %d closed\n",
		m.SyncCreated, m.SyncReused, m.SyncPooled, m.SyncClosed)
	fmt.Printf("Channel: %d commands, %d batches, %d bytes, %d commits, %d presents\n",
		c.Commands, c.Batches, c.Bytes, c.Commits, c.Presents)
	fmt.Printf("Notifications: %d\n", rep.Notifications)
}

func formatStep(r stepResult, width int) string {
	name := r.name + strings.Repeat(" ", width-len(r.name))
	elapsed := dimStyle.Render(r.elapsed.Round(time.Microsecond).String())
	if r.err != nil {
		return failStyle.Render("✗ "+name) + "  " + r.err.Error()
	}
	return okStyle.Render("✓ "+name) + "  " + r.detail + "  " + elapsed
}
