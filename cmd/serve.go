package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/jobauth/internal/authz"
	"github.com/nextlevelbuilder/jobauth/internal/bus"
	"github.com/nextlevelbuilder/jobauth/internal/chatloop"
	"github.com/nextlevelbuilder/jobauth/internal/config"
	"github.com/nextlevelbuilder/jobauth/internal/executor"
	"github.com/nextlevelbuilder/jobauth/internal/gateway"
	"github.com/nextlevelbuilder/jobauth/internal/gateway/methods"
	"github.com/nextlevelbuilder/jobauth/internal/job"
	"github.com/nextlevelbuilder/jobauth/internal/providers"
	"github.com/nextlevelbuilder/jobauth/internal/sandbox"
	"github.com/nextlevelbuilder/jobauth/internal/store/file"
	"github.com/nextlevelbuilder/jobauth/internal/store/pg"
	"github.com/nextlevelbuilder/jobauth/internal/telemetry"
	"github.com/nextlevelbuilder/jobauth/internal/transcription"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway: chat loop, job authorization, and execution",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	provider, err := selectProvider(cfg)
	if err != nil {
		return err
	}

	eventBus := bus.New()

	var jobStore job.Store
	var historyStore chatloop.HistoryStore
	var sandboxResolver chatloop.SandboxResolver
	var jobManager *job.Manager
	var evaluator *authz.Evaluator

	if cfg.IsManaged() {
		if err := checkSchemaOrAutoUpgrade(cfg.Database.PostgresDSN); err != nil {
			return fmt.Errorf("schema check: %w", err)
		}

		db, err := pg.OpenDB(cfg.Database.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()

		stores := pg.NewStores(db)
		jobStore = stores.Jobs
		historyStore = stores.ChatHistory
		sandboxResolver = stores.SandboxResolver
		evaluator = authz.NewEvaluator(stores.Authz)
		jobManager = buildJobManager(cfg, stores, evaluator)
	} else {
		db, err := openStandaloneDB(cfg)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer db.Close()

		jobStore = file.NewJobStore(db)
		historyStore = file.NewChatHistory(db)
		slog.Warn("no JOBAUTH_POSTGRES_DSN configured: running in standalone mode — " +
			"chat.send will answer plain messages, but tool calls that require " +
			"clearance evaluation, execution, or transcription have no backing " +
			"store and will fail")
	}

	loop := chatloop.NewLoop(provider, jobManager, evaluator, historyStore, nil)
	if sandboxResolver != nil {
		loop.SetSandboxResolver(sandboxResolver)
	}

	srv := gateway.NewServer(cfg, eventBus, loop, jobStore)
	methods.NewChatMethods(loop).Register(srv.Router())
	methods.NewJobMethods(jobStore, eventBus).Register(srv.Router())
	if jobManager != nil {
		methods.NewJobApprovalMethods(jobManager).Register(srv.Router())
	}

	slog.Info("jobauth serve starting", "protocol", protocol.ProtocolVersion, "managed", cfg.IsManaged())
	return srv.Start(ctx)
}

// buildJobManager wires the authorization + execution stack that only makes
// sense against the full Postgres store set (§4.1, §4.4, §4.5).
func buildJobManager(cfg *config.Config, stores *pg.Stores, evaluator *authz.Evaluator) *job.Manager {
	resolver := authz.NewResolver(stores.Authz)
	preauth := authz.NewPreAuthChecker(stores.Authz)

	registry := executor.NewRegistry()
	registry.Register(protocol.ActionUnsafeExecuteAsDangerousShell, executor.NewShellHandler(stores.SystemUsers, nil))
	registry.Register(protocol.ActionExecuteAsSafeShell, executor.NewSafeDSLHandler(stores.Containers, nil, sandbox.CompileOptions{}))
	registry.Register(protocol.ActionCreateContainer, executor.NewCreateContainerHandler(stores.Containers, stores.Provisioner))
	registry.Register(protocol.ActionAccessContainer, executor.NewAccessContainerHandler(stores.Containers))
	registry.Register(protocol.ActionAccessLocalInfoStore, executor.NewAccessInfoStoreHandler(stores.InfoStores))
	registry.Register(protocol.ActionAccessExternalInfoStore, executor.NewAccessInfoStoreHandler(stores.InfoStores))
	registry.Register(protocol.ActionRegisterInfoStore, executor.NewRegisterInfoStoreHandler(stores.InfoStores))
	registry.Register(protocol.ActionAccessWebsite, executor.NewAccessWebsiteHandler())
	registry.Register(protocol.ActionQuerySearchEngine, executor.NewQuerySearchEngineHandler(executor.NewChainSearchProvider(cfg.Search)))
	registry.Register(protocol.ActionManageAgent, executor.NewManageAgentHandler(stores.Agents))
	registry.Register(protocol.ActionCreateSubAgent, executor.NewCreateSubAgentHandler(stores.Agents))
	registry.Register(protocol.ActionEditTask, executor.NewEditTaskHandler(stores.Tasks))
	registry.Register(protocol.ActionEditAnyTask, executor.NewEditTaskHandler(stores.Tasks))
	registry.Register(protocol.ActionAccessSkill, executor.NewAccessSkillHandler(stores.Skills))

	orchestrator := transcription.NewOrchestrator(
		stores.Jobs,
		transcription.NewCommandAudioDriver(cfg.Transcription),
		transcription.NewHTTPSTTClient(cfg.Transcription),
		transcription.NewConfigAPIKeyResolver(cfg.Transcription),
	)
	if err := orchestrator.Reconcile(context.Background()); err != nil {
		slog.Warn("transcription reconciliation failed", "error", err)
	}
	registry.Register(protocol.ActionTranscribeFromAudioDevice, executor.NewTranscribeHandler(orchestrator))
	registry.Register(protocol.ActionTranscribeFromAudioStream, executor.NewTranscribeHandler(orchestrator))
	registry.Register(protocol.ActionTranscribeFromAudioFile, executor.NewTranscribeHandler(orchestrator))

	return job.NewManager(stores.Jobs, stores.AgentResolver, resolver, evaluator, preauth, registry, orchestrator)
}

func selectProvider(cfg *config.Config) (providers.Provider, error) {
	switch {
	case cfg.Providers.Anthropic.APIKey != "":
		opts := []providers.AnthropicOption{}
		if cfg.Providers.Anthropic.APIBase != "" {
			opts = append(opts, providers.WithAnthropicBaseURL(cfg.Providers.Anthropic.APIBase))
		}
		if cfg.Providers.Anthropic.Model != "" {
			opts = append(opts, providers.WithAnthropicModel(cfg.Providers.Anthropic.Model))
		}
		return providers.NewAnthropicProvider(cfg.Providers.Anthropic.APIKey, opts...), nil
	case cfg.Providers.OpenAI.APIKey != "":
		return providers.NewOpenAIProvider("openai", cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase, cfg.Providers.OpenAI.Model), nil
	case cfg.Providers.OpenRouter.APIKey != "":
		return providers.NewOpenAIProvider("openrouter", cfg.Providers.OpenRouter.APIKey, cfg.Providers.OpenRouter.APIBase, cfg.Providers.OpenRouter.Model), nil
	case cfg.Providers.Groq.APIKey != "":
		return providers.NewOpenAIProvider("groq", cfg.Providers.Groq.APIKey, cfg.Providers.Groq.APIBase, cfg.Providers.Groq.Model), nil
	case cfg.Providers.Gemini.APIKey != "":
		return providers.NewOpenAIProvider("gemini", cfg.Providers.Gemini.APIKey, cfg.Providers.Gemini.APIBase, cfg.Providers.Gemini.Model), nil
	case cfg.Providers.DashScope.APIKey != "":
		return providers.NewDashScopeProvider(cfg.Providers.DashScope.APIKey, cfg.Providers.DashScope.APIBase, cfg.Providers.DashScope.Model), nil
	default:
		return nil, fmt.Errorf("no LLM provider configured: set one of JOBAUTH_ANTHROPIC_API_KEY, JOBAUTH_OPENAI_API_KEY, JOBAUTH_OPENROUTER_API_KEY, JOBAUTH_GROQ_API_KEY, JOBAUTH_GEMINI_API_KEY, JOBAUTH_DASHSCOPE_API_KEY")
	}
}

func openStandaloneDB(cfg *config.Config) (*sql.DB, error) {
	path := cfg.Database.SqlitePath
	if path == "" {
		path = "jobauth.db"
	}
	return file.OpenDB(path)
}
