package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/engageops/internal/agent"
	"github.com/nextlevelbuilder/engageops/internal/bus"
	"github.com/nextlevelbuilder/engageops/internal/config"
	"github.com/nextlevelbuilder/engageops/internal/executor"
	"github.com/nextlevelbuilder/engageops/internal/httpapi"
	"github.com/nextlevelbuilder/engageops/internal/providers"
	"github.com/nextlevelbuilder/engageops/internal/scheduler"
	"github.com/nextlevelbuilder/engageops/internal/session"
	"github.com/nextlevelbuilder/engageops/internal/tooldefs"
)

// systemPrompt is the Agent Driver's fixed system prompt: the dynamic tool
// dispatch set and the scope/credential defenses it must respect (§4.J).
const systemPrompt = `You are an assistant embedded in an authorized security-assessment
engagement. You may call execute_tool, execute_bash, record_finding,
read_file, and add_to_scope. Every target you touch must already be within
the engagement's defined scope — propose add_to_scope and wait for approval
before touching anything outside it. Never fabricate tool output.`

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestration server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("config.load_failed", "error", err)
		os.Exit(1)
	}

	provider := resolveProvider(cfg)
	if provider == nil {
		slog.Error("no LLM provider configured; set ENGAGE_ANTHROPIC_API_KEY, ENGAGE_OPENAI_API_KEY, or ENGAGE_DASHSCOPE_API_KEY")
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Tools.WorkspaceDir, 0o755); err != nil {
		slog.Error("workspace.mkdir_failed", "dir", cfg.Tools.WorkspaceDir, "error", err)
		os.Exit(1)
	}

	exec := executor.New()

	toolsReg, err := tooldefs.NewRegistry(cfg.Tools.DefinitionsFile)
	if err != nil {
		slog.Error("tooldefs.load_failed", "path", cfg.Tools.DefinitionsFile, "error", err)
		os.Exit(1)
	}

	cleanup := func(sessionID string) error {
		dir := cfg.Tools.WorkspaceDir + "/" + sessionID
		h := exec.Submit("cleanup-"+sessionID, tooldefs.BashToolName, []string{"sh", "-c", "rm -rf " + dir}, "", 30*time.Second)
		<-h.Done
		return nil
	}
	sessions, err := session.NewStore(cfg.Sessions.DataDir, cleanup)
	if err != nil {
		slog.Error("session.store_init_failed", "error", err)
		os.Exit(1)
	}

	hub := bus.NewHub()

	driverCfg := agent.Config{
		Model:                cfg.Agent.Model,
		MaxTokens:            cfg.Agent.MaxTokens,
		MaxToolIterations:    cfg.Agent.MaxToolIterations,
		StepApprovalTimeout:  time.Duration(cfg.Agent.StepApprovalTimeoutS) * time.Second,
		ScopeApprovalTimeout: time.Duration(cfg.Agent.ScopeApprovalTimeoutS) * time.Second,
		DefaultMaxSteps:      cfg.Agent.DefaultMaxSteps,
		SystemPrompt:         systemPrompt,
		WorkspaceDir:         cfg.Tools.WorkspaceDir,
	}
	driver := agent.New(providers.NewLLMAdapter(provider), sessions, toolsReg, exec, hub, driverCfg)

	sched := scheduler.New(cfg.Sessions.DataDir+"/schedules.json", driver)
	if err := sched.Start(); err != nil {
		slog.Error("scheduler.start_failed", "error", err)
		os.Exit(1)
	}

	srv := httpapi.New(cfg, sessions, toolsReg, exec, hub, driver, sched)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("serve.shutting_down")
		sched.Stop()
		hub.CloseAll()
	}()

	if err := srv.Start(ctx); err != nil {
		slog.Error("httpapi.serve_failed", "error", err)
		os.Exit(1)
	}
}

// resolveProvider picks the configured provider by name, falling back to
// whichever provider has an API key present, following the teacher's
// registerProviders pattern (cmd/gateway_providers.go) collapsed to a
// single active provider since the driver programs against exactly one.
func resolveProvider(cfg *config.Config) providers.Provider {
	anthropicKey := os.Getenv("ENGAGE_ANTHROPIC_API_KEY")
	openaiKey := os.Getenv("ENGAGE_OPENAI_API_KEY")
	dashscopeKey := os.Getenv("ENGAGE_DASHSCOPE_API_KEY")

	switch cfg.Agent.Provider {
	case "anthropic":
		if anthropicKey != "" {
			return providers.NewAnthropicProvider(anthropicKey)
		}
	case "openai":
		if openaiKey != "" {
			return providers.NewOpenAIProvider("openai", openaiKey, "", cfg.Agent.Model)
		}
	case "dashscope":
		if dashscopeKey != "" {
			return providers.NewDashScopeProvider(dashscopeKey, "", cfg.Agent.Model)
		}
	}

	// Configured provider's key is absent — fall back to the first
	// available one rather than refusing to start.
	switch {
	case anthropicKey != "":
		return providers.NewAnthropicProvider(anthropicKey)
	case openaiKey != "":
		return providers.NewOpenAIProvider("openai", openaiKey, "", cfg.Agent.Model)
	case dashscopeKey != "":
		return providers.NewDashScopeProvider(dashscopeKey, "", cfg.Agent.Model)
	}
	return nil
}
