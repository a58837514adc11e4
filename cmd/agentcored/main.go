// Command agentcored is the example composition root: it wires a
// koanf-loaded config, every provider adapter, the built-in and
// external tool registries, a permission manager, a rate budget, and a
// memory strategy into one Runner, then drives a single agent run from
// a CLI-supplied task. It also offers an -mcp flag that instead serves
// the same tool registry over the MCP protocol on stdio, grounded in
// the teacher's dual cmd/ entrypoints (one per Temporal worker, one per
// API server) generalized to this core's two operating modes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"agentcore/config"
	"agentcore/core"
	"agentcore/exttool"
	"agentcore/logger"
	"agentcore/mcpserver"
	"agentcore/memory"
	"agentcore/permission"
	"agentcore/provider"
	"agentcore/ratebudget"
	"agentcore/runner"
	"agentcore/secretmanager"
	"agentcore/tool"
)

func main() {
	var (
		configPath = flag.String("config", defaultConfigPath(), "path to the agentcored config file")
		task       = flag.String("task", "", "task prompt for a one-shot agent run")
		model      = flag.String("model", "", "model name; defaults to the configured provider default")
		providerID = flag.String("provider", "anthropic", "provider to run against: anthropic, openai, google, openai_compat")
		mcpMode    = flag.Bool("mcp", false, "serve the tool registry over MCP on stdio instead of running an agent")
		toolsDir   = flag.String("tools-dir", defaultToolsDir(), "directory of external tool manifests")
		trust      = flag.Bool("trust", false, "auto-approve every permission request")
	)
	flag.Parse()

	logger.StateDir = defaultStateDir()
	log := logger.Get()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	secrets := secretmanager.NewEnvManager(os.LookupEnv)
	providers := buildProviders(secrets)
	tools, _ := buildTools(*toolsDir)

	policy := permission.DefaultCommandPolicy()
	permMgr := permission.New(policy, *trust)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *mcpMode {
		workingDir, err := os.Getwd()
		if err != nil {
			log.Fatal().Err(err).Msg("resolving working directory")
		}
		server := mcpserver.NewServer(tools, workingDir)
		if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("mcp server exited")
		}
		return
	}

	if *task == "" {
		fmt.Fprintln(os.Stderr, "agentcored: -task is required unless -mcp is set")
		os.Exit(2)
	}

	modelName := *model
	if modelName == "" {
		modelName = cfg.DefaultModel(*providerID)
	}

	budget := ratebudget.New(2, 4)
	r := &runner.Runner{
		Providers:  providers,
		Tools:      tools,
		Permission: permMgr,
		Memory:     memory.Trimmed{KeepLast: 4},
		RequestPermission: func(req core.PermissionRequest) bool {
			return permMgr.RequestPermission(req) != permission.DecisionDeny
		},
	}

	workingDir, err := os.Getwd()
	if err != nil {
		log.Fatal().Err(err).Msg("resolving working directory")
	}

	agentCfg := core.AgentConfig{
		ID:            "agentcored-run",
		Name:          "agentcored",
		Task:          *task,
		WorkingDir:    workingDir,
		MaxIterations: 50,
		TokenBudget:   cfg.MaxContextTokens(),
		Model:         modelName,
		Trust:         *trust,
	}
	if agentCfg.TokenBudget == 0 {
		agentCfg.TokenBudget = 100000
	}

	actx := core.NewAgentContext(agentCfg, budget)
	result := r.Run(ctx, actx, modelName, *providerID)

	if !result.Success {
		log.Error().Strs("errors", result.Errors).Msg("agent run failed")
		os.Exit(1)
	}
	fmt.Println(result.Output)
}

func buildProviders(secrets secretmanager.Manager) *provider.Registry {
	reg := provider.NewRegistry()
	reg.Register(provider.AnthropicAdapter{Secrets: secrets})
	reg.Register(provider.OpenAIAdapter{Secrets: secrets})
	reg.Register(provider.GoogleAdapter{Secrets: secrets})
	reg.Register(provider.OpenAICompatAdapter{Secrets: secrets, Label: "openai_compat"})
	return reg
}

func buildTools(externalToolsDir string) (*tool.Registry, *tool.PlanStore) {
	reg := tool.NewRegistry()
	planStore := &tool.PlanStore{}

	reg.Register(tool.FileRead{})
	reg.Register(tool.FileWrite{})
	reg.Register(tool.FileEdit{})
	reg.Register(tool.Glob{})
	reg.Register(tool.Grep{})
	reg.Register(tool.PlanUpdate{Store: planStore})
	reg.Register(tool.Shell{Policy: permission.DefaultCommandPolicy()})

	manifests, err := exttool.DiscoverManifests(externalToolsDir)
	if err == nil {
		for _, m := range manifests {
			reg.Register(exttool.Tool{Manifest: m})
		}
	}

	return reg, planStore
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "agentcored.yaml"
	}
	return filepath.Join(dir, "agentcored", "config.yaml")
}

func defaultToolsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tools"
	}
	return filepath.Join(home, ".agentcore", "tools")
}

func defaultStateDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "agentcored")
}
