// Command mamba is the streaming chat proxy server.
//
// Usage:
//
//	mamba serve --config ./config
//	mamba validate --config ./config
//	mamba version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/mamba/pkg/agent"
	"github.com/kadirpekel/mamba/pkg/auth"
	"github.com/kadirpekel/mamba/pkg/config"
	"github.com/kadirpekel/mamba/pkg/llms"
	"github.com/kadirpekel/mamba/pkg/logger"
	"github.com/kadirpekel/mamba/pkg/server"
	"github.com/kadirpekel/mamba/pkg/title"
	"github.com/kadirpekel/mamba/pkg/tools"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" default:"1" help:"Start the chat proxy server."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration and exit."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Config directory holding config.yaml." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFormat string `help:"Log format (json or text)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("mamba version %s\n", buildVersion())
	return nil
}

func buildVersion() string {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	return version
}

// ValidateCmd loads the configuration and reports whether it is usable.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration OK\n")
	fmt.Printf("  listen:   %s\n", cfg.Server.Address())
	fmt.Printf("  upstream: %s\n", cfg.OpenAI.BaseURL)
	fmt.Printf("  auth:     %s\n", cfg.Auth.Mode)
	fmt.Printf("  models:   %d\n", len(cfg.Models))
	return nil
}

// ServeCmd starts the chat proxy server.
type ServeCmd struct {
	Port int `help:"Override the configured listen port."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	// CLI flags win over config file logging settings.
	level := cfg.Logging.Level
	if cli.LogLevel != "" {
		level = cli.LogLevel
	}
	format := cfg.Logging.Format
	if cli.LogFormat != "" {
		format = cli.LogFormat
	}
	slogLevel, _ := logger.ParseLevel(level)
	logger.Init(slogLevel, os.Stderr, format)
	log := logger.GetLogger()

	provider := llms.NewOpenAIProvider(&cfg.OpenAI)

	displayTools, err := tools.NewDisplayRegistry()
	if err != nil {
		return fmt.Errorf("failed to build display tools: %w", err)
	}

	agents, err := agent.NewDefaultRegistry()
	if err != nil {
		return fmt.Errorf("failed to build agent registry: %w", err)
	}

	authn, err := auth.FromConfig(&cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to configure authentication: %w", err)
	}

	titles := title.NewService(provider, &cfg.Title, log)

	srv := server.New(cfg, provider, displayTools,
		server.WithAgents(agents),
		server.WithTitleService(titles),
		server.WithAuthenticator(authn),
		server.WithLogger(log),
		server.WithVersion(buildVersion()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	return srv.Start(ctx)
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("mamba"),
		kong.Description("Mamba - streaming chat proxy for LLM completion APIs"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
