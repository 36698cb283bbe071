package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sentinelgate/sentinel/internal/auditor"
	"github.com/sentinelgate/sentinel/internal/config"
	"github.com/sentinelgate/sentinel/internal/hardkill"
	"github.com/sentinelgate/sentinel/internal/judge"
	"github.com/sentinelgate/sentinel/internal/logger"
	"github.com/sentinelgate/sentinel/internal/policy"
	"github.com/sentinelgate/sentinel/internal/runtime"
	"github.com/sentinelgate/sentinel/internal/semantic"
	"github.com/sentinelgate/sentinel/internal/store"
)

// app bundles the wired components a subcommand needs.
type app struct {
	settings config.Settings
	engine   *policy.Engine
	auditor  *auditor.CommandAuditor
	store    *store.Store
	logger   *logger.AuditLogger
	runtime  *runtime.Runtime
}

func (a *app) Close() {
	if a.logger != nil {
		a.logger.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// buildApp assembles the full pipeline from settings, flags and config files.
func buildApp() (*app, error) {
	settings := config.FromEnv()
	if constitutionPath != "" {
		settings.ConstitutionPath = constitutionPath
	}
	if policyPath != "" {
		settings.PolicyPath = policyPath
	}
	if dbPath != "" {
		settings.DBPath = dbPath
	}

	diag := os.Stderr

	constitution, err := config.LoadConstitution(settings.ConstitutionPath, diag)
	if err != nil {
		return nil, fmt.Errorf("load constitution: %w", err)
	}

	engine, err := policy.Load(settings.PolicyPath, diag)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	st, err := store.Open(settings.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	auditLogPath := logPath
	if auditLogPath == "" {
		auditLogPath = filepath.Join(filepath.Dir(settings.DBPath), "audit.jsonl")
	}
	auditLog, err := logger.New(auditLogPath)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	sem := buildSemantic(settings, constitution, diag)
	cmdAuditor := auditor.New(hardkill.New(constitution.HardKillConfig()), sem)

	rt := runtime.New(
		engine,
		cmdAuditor,
		runtime.NewStoreApprovals(st),
		[]runtime.AuditSink{runtime.NewStoreSink(st), runtime.NewLoggerSink(auditLog)},
		settings.ExecTimeout,
		diag,
	)

	return &app{
		settings: settings,
		engine:   engine,
		auditor:  cmdAuditor,
		store:    st,
		logger:   auditLog,
		runtime:  rt,
	}, nil
}

// buildSemantic selects the judge backend. A configured Gemini key wins; the
// heuristic judge is the offline fallback so the gateway still reaches
// semantic verdicts without credentials.
func buildSemantic(settings config.Settings, constitution *config.Constitution, diag *os.File) auditor.SemanticAuditor {
	var backend judge.Judge
	switch {
	case strings.EqualFold(settings.Model, "heuristic"):
		backend = judge.NewHeuristicJudge()
	case settings.GeminiAPIKey != "":
		backend = judge.NewGeminiJudge(settings.GeminiAPIKey, settings.Model)
	default:
		fmt.Fprintln(diag, "warning: GEMINI_API_KEY not set, falling back to heuristic judge")
		backend = judge.NewHeuristicJudge()
	}

	sem := semantic.New(backend)
	sem.ContextBlock = constitution.SemanticContext()
	return sem
}
