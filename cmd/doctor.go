package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/jobauth/internal/config"
	"github.com/nextlevelbuilder/jobauth/internal/store/pg"
	"github.com/nextlevelbuilder/jobauth/internal/upgrade"
	"github.com/nextlevelbuilder/jobauth/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("jobauth doctor")
	fmt.Printf("  Version:  %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, defaults + env apply)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Database:")
	if cfg.IsManaged() {
		fmt.Printf("    %-12s managed\n", "Mode:")
		checkManagedSchema(cfg)
	} else {
		fmt.Printf("    %-12s standalone (%s)\n", "Mode:", orDash(cfg.Database.SqlitePath, "jobauth.db"))
		fmt.Printf("    %-12s no JOBAUTH_POSTGRES_DSN — clearance evaluation, execution, and\n", "Note:")
		fmt.Println("                 transcription have no backing store in this mode")
	}

	fmt.Println()
	fmt.Println("  Providers:")
	checkProvider("Anthropic", cfg.Providers.Anthropic.APIKey)
	checkProvider("OpenAI", cfg.Providers.OpenAI.APIKey)
	checkProvider("OpenRouter", cfg.Providers.OpenRouter.APIKey)
	checkProvider("Groq", cfg.Providers.Groq.APIKey)
	checkProvider("Gemini", cfg.Providers.Gemini.APIKey)

	fmt.Println()
	fmt.Println("  Search:")
	checkProvider("Brave", cfg.Search.BraveAPIKey)
	fmt.Printf("    %-12s %s\n", "DuckDuckGo:", enabledStatus(cfg.Search.DDGEnabled))

	fmt.Println()
	fmt.Println("  Transcription:")
	if cfg.Transcription.ProxyURL != "" {
		fmt.Printf("    %-12s %s\n", "Proxy:", cfg.Transcription.ProxyURL)
		checkProvider("STT key", cfg.Transcription.APIKey)
	} else {
		fmt.Printf("    %-12s (not configured)\n", "Proxy:")
	}

	fmt.Println()
	fmt.Println("  Sandbox:")
	fmt.Printf("    %-12s %s\n", "Status:", enabledStatus(cfg.Sandbox.Enabled))

	fmt.Println()
	fmt.Println("  External Tools:")
	checkBinary("docker")
	checkBinary("curl")

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkManagedSchema(cfg *config.Config) {
	db, err := pg.OpenDB(cfg.Database.PostgresDSN)
	if err != nil {
		fmt.Printf("    %-12s CONNECT FAILED (%s)\n", "Status:", err)
		return
	}
	defer db.Close()

	s, schemaErr := upgrade.CheckSchema(db)
	if schemaErr != nil {
		fmt.Printf("    %-12s CHECK FAILED (%s)\n", "Schema:", schemaErr)
	} else if s.Dirty {
		fmt.Printf("    %-12s v%d (DIRTY — run: jobauth migrate force %d)\n", "Schema:", s.CurrentVersion, s.CurrentVersion-1)
	} else if s.Compatible {
		fmt.Printf("    %-12s v%d (up to date)\n", "Schema:", s.CurrentVersion)
	} else if s.CurrentVersion > s.RequiredVersion {
		fmt.Printf("    %-12s v%d (binary too old, requires v%d)\n", "Schema:", s.CurrentVersion, s.RequiredVersion)
	} else {
		fmt.Printf("    %-12s v%d (upgrade needed — run: jobauth migrate up)\n", "Schema:", s.CurrentVersion)
	}

	pending, hookErr := upgrade.PendingHooks(context.Background(), db)
	if hookErr == nil && len(pending) > 0 {
		fmt.Printf("    %-12s %d pending\n", "Data hooks:", len(pending))
	} else if hookErr == nil {
		fmt.Printf("    %-12s all applied\n", "Data hooks:")
	}
}

func checkProvider(name, apiKey string) {
	if apiKey != "" {
		masked := apiKey
		if len(apiKey) > 8 {
			masked = apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
		}
		fmt.Printf("    %-12s %s\n", name+":", masked)
	} else {
		fmt.Printf("    %-12s (not configured)\n", name+":")
	}
}

func checkBinary(name string) {
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Printf("    %-12s NOT FOUND\n", name+":")
	} else {
		fmt.Printf("    %-12s %s\n", name+":", path)
	}
}

func enabledStatus(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func orDash(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
