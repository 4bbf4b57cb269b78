package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/spf13/viper"
	"k8s.io/apimachinery/pkg/util/validation"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "UPGRADE_HELPERS"

// Keys shared by all commands.
const (
	KeyVerbose     = "verbose"
	KeyNoColor     = "no-color"
	KeyNoHeaders   = "no-headers"
	KeyMetricsFile = "metrics-file"
)

// Keys for guardrails-probe.
const (
	KeyNamespace = "namespace"
	KeyCheck     = "check"
	KeyFix       = "fix"
	KeyDryRun    = "dry-run"
)

// Keys for dashboard-redirect.
const (
	KeyRedirectURL = "redirect-url"
	KeyRouteHost   = "route-host"
	KeyOutput      = "output"
	KeyApply       = "apply"
)

// DefaultOutput is where the redirect manifest is written.
const DefaultOutput = "dashboard-redirect.yaml"

// Mode names understood by executor.ParseMode.
const (
	ModeInspect  = "inspect"
	ModeApply    = "apply"
	ModeSimulate = "simulate"
)

// New returns a viper instance reading UPGRADE_HELPERS_* variables, with
// dashes in keys mapped to underscores.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyOutput, DefaultOutput)
	return v
}

// ValidationError reports bad or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid --%s: %s", e.Field, e.Reason)
}

// Global holds settings every command uses.
type Global struct {
	Verbose     bool
	NoColor     bool
	NoHeaders   bool
	MetricsFile string
	Timeouts    Timeouts
}

// LoadGlobal reads the shared settings.
func LoadGlobal(v *viper.Viper) Global {
	return Global{
		Verbose:     v.GetBool(KeyVerbose),
		NoColor:     v.GetBool(KeyNoColor),
		NoHeaders:   v.GetBool(KeyNoHeaders),
		MetricsFile: v.GetString(KeyMetricsFile),
		Timeouts:    LoadTimeouts(v),
	}
}

// Guardrails holds the guardrails-probe settings.
type Guardrails struct {
	Namespace string
	Mode      string
}

// LoadGuardrails reads and validates the guardrails-probe settings.
// --dry-run wins over --check and --fix; --check and --fix together are
// rejected.
func LoadGuardrails(v *viper.Viper) (Guardrails, error) {
	ns := strings.TrimSpace(v.GetString(KeyNamespace))
	if ns == "" {
		return Guardrails{}, &ValidationError{Field: KeyNamespace, Reason: "namespace is required"}
	}
	if errs := validation.IsDNS1123Label(ns); len(errs) > 0 {
		return Guardrails{}, &ValidationError{Field: KeyNamespace, Reason: strings.Join(errs, "; ")}
	}

	check, fix, dryRun := v.GetBool(KeyCheck), v.GetBool(KeyFix), v.GetBool(KeyDryRun)
	if check && fix {
		return Guardrails{}, &ValidationError{Field: KeyCheck, Reason: "cannot be combined with --fix"}
	}

	mode := ModeApply
	switch {
	case dryRun:
		mode = ModeSimulate
	case check:
		mode = ModeInspect
	}
	return Guardrails{Namespace: ns, Mode: mode}, nil
}

// Redirect holds the dashboard-redirect settings.
type Redirect struct {
	RedirectURL string
	RouteHost   string
	Output      string
	Apply       bool
	DryRun      bool
}

// LoadRedirect reads and validates the dashboard-redirect settings.
func LoadRedirect(v *viper.Viper) (Redirect, error) {
	cfg := Redirect{
		RouteHost: v.GetString(KeyRouteHost),
		Output:    v.GetString(KeyOutput),
		Apply:     v.GetBool(KeyApply),
		DryRun:    v.GetBool(KeyDryRun),
	}

	if raw := v.GetString(KeyRedirectURL); raw != "" {
		u, err := ValidateRedirectURL(raw)
		if err != nil {
			return Redirect{}, err
		}
		cfg.RedirectURL = u
	}
	if cfg.RouteHost != "" {
		if err := ValidateRouteHost(cfg.RouteHost); err != nil {
			return Redirect{}, err
		}
	}
	if cfg.Output == "" {
		return Redirect{}, &ValidationError{Field: KeyOutput, Reason: "output path must not be empty"}
	}
	if cfg.DryRun && !cfg.Apply {
		return Redirect{}, &ValidationError{Field: KeyDryRun, Reason: "only valid together with --apply"}
	}
	return cfg, nil
}

// ValidateRedirectURL checks that raw is an absolute http(s) URL with a host
// and returns it without trailing slashes.
func ValidateRedirectURL(raw string) (string, error) {
	for _, r := range raw {
		if unsafeInNginx(r) {
			return "", &ValidationError{Field: KeyRedirectURL, Reason: fmt.Sprintf("character %q is not allowed", r)}
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", &ValidationError{Field: KeyRedirectURL, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &ValidationError{Field: KeyRedirectURL, Reason: fmt.Sprintf("scheme must be http or https, got %q", u.Scheme)}
	}
	if u.Host == "" {
		return "", &ValidationError{Field: KeyRedirectURL, Reason: "URL has no host"}
	}
	return strings.TrimRight(raw, "/"), nil
}

// unsafeInNginx matches characters that end or expand the unquoted return
// directive in the generated nginx.conf.
func unsafeInNginx(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune(";${}\"'`\\", r)
}

// ValidateRouteHost checks that host is a DNS-1123 subdomain. The value is
// otherwise used as given.
func ValidateRouteHost(host string) error {
	if errs := validation.IsDNS1123Subdomain(host); len(errs) > 0 {
		return &ValidationError{Field: KeyRouteHost, Reason: strings.Join(errs, "; ")}
	}
	return nil
}
