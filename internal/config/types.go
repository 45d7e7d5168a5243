package config

// QuickChecksMode selects how the harness treats an unavailable quick-check.
type QuickChecksMode string

const (
	QuickChecksStrictAuto QuickChecksMode = "strict_auto"
	QuickChecksDisabled   QuickChecksMode = "disabled"
)

// Severity is a review finding's severity band.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// ModelTier selects which backend tier an LLM call is routed to.
type ModelTier string

const (
	ModelSpeed ModelTier = "speed"
	ModelSmart ModelTier = "smart"
)

// HarnessConfig governs the attempt loop's policy. Every field here maps to a
// named knob in the run report so a reader can reconstruct why an attempt
// behaved the way it did.
type HarnessConfig struct {
	MaxAttempts         int   `json:"max_attempts"`
	MaxTotalMs          int64 `json:"max_total_ms"`
	MaxTotalCostUSD      float64 `json:"max_total_cost_usd"`

	MaxAutoReviewFixLoops     int `json:"max_auto_review_fix_loops"`
	MaxAutoQuickCheckFixLoops int `json:"max_auto_quick_check_fix_loops"`
	MaxAutoSyntaxFixLoops     int `json:"max_auto_syntax_fix_loops"`

	QuickChecksMode          QuickChecksMode `json:"quick_checks_mode"`
	ReviewBlockingSeverities []Severity      `json:"review_blocking_severities"`

	MaxChangedFiles        int `json:"max_changed_files"`
	MaxTotalChangedLines   int `json:"max_total_changed_lines"`
	MaxChangedLinesPerFile int `json:"max_changed_lines_per_file"`

	QuickCheckTimeoutMs int64 `json:"quick_check_timeout_ms"`

	RequireQuickCheckDetectable bool `json:"require_quick_check_detectable"`
	FailOnReducedConfidence     bool `json:"fail_on_reduced_confidence"`

	RequireIndependentReviewOnPass bool      `json:"require_independent_review_on_pass"`
	AdversarialReviewModel         ModelTier `json:"adversarial_review_model"`

	ReserveIndependentReviewMs      int64   `json:"reserve_independent_review_ms"`
	ReserveIndependentReviewCostUSD float64 `json:"reserve_independent_review_cost_usd"`

	MaxSmartEscalationsPerAttempt int `json:"max_smart_escalations_per_attempt"`
	EnableQuickCheckBaseline      bool `json:"enable_quick_check_baseline"`

	// ErrorLocationStripPatterns are regexes stripped from quick-check stderr
	// lines before location parsing (e.g. pnpm's "> test:size:" task prefix).
	ErrorLocationStripPatterns []string `json:"error_location_strip_patterns"`

	// QuickCheckFixRequiresInScopeError: when false, a single-file attempt may
	// target its only changed file even if the parser found no location.
	QuickCheckFixRequiresInScopeError bool `json:"quick_check_fix_requires_in_scope_error"`
}

// InteractiveStrict is tuned for an interactive caller: fast, and permissive
// when quick-checks are unavailable rather than blocking on that alone.
func InteractiveStrict() HarnessConfig {
	return HarnessConfig{
		MaxAttempts:                      3,
		MaxTotalMs:                       180_000,
		MaxTotalCostUSD:                  0.75,
		MaxAutoReviewFixLoops:            2,
		MaxAutoQuickCheckFixLoops:        2,
		MaxAutoSyntaxFixLoops:            2,
		QuickChecksMode:                  QuickChecksStrictAuto,
		ReviewBlockingSeverities:         []Severity{SeverityCritical, SeverityWarning},
		MaxChangedFiles:                  6,
		MaxTotalChangedLines:             400,
		MaxChangedLinesPerFile:           250,
		QuickCheckTimeoutMs:              45_000,
		RequireQuickCheckDetectable:      false,
		FailOnReducedConfidence:          false,
		RequireIndependentReviewOnPass:   true,
		AdversarialReviewModel:           ModelSmart,
		ReserveIndependentReviewMs:       8_000,
		ReserveIndependentReviewCostUSD:  0.01,
		MaxSmartEscalationsPerAttempt:    1,
		EnableQuickCheckBaseline:         true,
		ErrorLocationStripPatterns:       []string{`^>\s*test:size:\s*`},
		QuickCheckFixRequiresInScopeError: true,
	}
}

// LabStrict is tuned for unattended batch runs: requires a detectable
// quick-check and allows more repair budget per attempt.
func LabStrict() HarnessConfig {
	c := InteractiveStrict()
	c.MaxAttempts = 4
	c.MaxTotalMs = 420_000
	c.MaxTotalCostUSD = 2.00
	c.MaxAutoReviewFixLoops = 3
	c.MaxAutoQuickCheckFixLoops = 3
	c.MaxAutoSyntaxFixLoops = 3
	c.RequireQuickCheckDetectable = true
	c.FailOnReducedConfidence = true
	c.ReviewBlockingSeverities = []Severity{SeverityCritical, SeverityWarning, SeverityInfo}
	return c
}

// Preset resolves a named preset, falling back to InteractiveStrict for an
// unrecognized name.
func Preset(name string) HarnessConfig {
	switch name {
	case "lab_strict", "lab-strict":
		return LabStrict()
	default:
		return InteractiveStrict()
	}
}

// Config is the top-level cosmos-harness configuration: ambient settings plus
// the harness policy knobs, loaded and merged the same way across user and
// repo scopes.
type Config struct {
	Harness  HarnessConfig  `json:"harness"`
	Models   ModelsConfig   `json:"models"`
	OpenCode OpenCodeConfig `json:"opencode"`
	Copilot  CopilotConfig  `json:"copilot"`
	Sandbox  SandboxConfig  `json:"sandbox"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// ModelsConfig names the concrete model ids behind the Speed/Smart tiers.
type ModelsConfig struct {
	Speed string `json:"speed"`
	Smart string `json:"smart"`
}

// OpenCodeConfig controls the OpenCode-backed Speed-tier LLM client.
type OpenCodeConfig struct {
	URL         string `json:"url"`
	AutoStart   bool   `json:"auto_start"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Permissions string `json:"permissions"`
}

// CopilotConfig controls the Copilot-backed Smart-tier LLM client.
type CopilotConfig struct {
	Endpoint string `json:"endpoint"`
	Token    string `json:"token"`
}

// SandboxConfig controls the Sandbox Manager's on-disk layout.
type SandboxConfig struct {
	Root             string `json:"root"`
	DisablePushEnvVar string `json:"disable_push_env_var"`
}

// MetricsConfig controls the optional Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Harness: InteractiveStrict(),
		Models: ModelsConfig{
			Speed: "anthropic/claude-sonnet-4-20250514",
			Smart: "anthropic/claude-opus-4-20250514",
		},
		OpenCode: OpenCodeConfig{
			URL:         "http://localhost:4096",
			AutoStart:   true,
			Username:    "opencode",
			Permissions: "allow",
		},
		Copilot: CopilotConfig{
			Endpoint: "https://api.githubcopilot.com",
		},
		Sandbox: SandboxConfig{
			Root:              "cosmos-harness",
			DisablePushEnvVar: "COSMOS_DISABLE_PUSH",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}
