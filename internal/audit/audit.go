// Package audit provides structured audit logging for CLI startup and for
// every Azure CLI execution the gateway performs. It records command text,
// resolved configuration, and sanitised environment state so operators can
// trace what happened without exposing secret values.
//
// Secrets are logged as presence/absence only — never their values — and
// command text is redacted before it reaches a log line or a history row.
package audit

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"
)

// secretEnvKeys lists environment variable names whose values must never be
// logged. Only presence ("set") or absence ("unset") is recorded.
var secretEnvKeys = map[string]bool{
	"AZURE_CREDENTIALS": true,
	"AZMCP_AUTH_TOKEN":  true,
}

// passwordPattern matches the secret value passed to az login's password
// flag, in both "--password x" and "--password=x" spellings.
var passwordPattern = regexp.MustCompile(`(--password|\s-p)([ =]+)\S+`)

// Redact masks secret values embedded in command text so that log entries
// and history rows never carry them. Today that is the service principal
// password on az login.
func Redact(command string) string {
	return passwordPattern.ReplaceAllString(command, "$1$2****")
}

// LogCommandStart emits a structured audit log entry when a CLI command
// begins. It records the command name, config file source, and sanitised
// environment.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	}

	// Log key operational env vars with sanitisation.
	for _, entry := range auditKeys {
		val := os.Getenv(entry.key)
		if entry.secret {
			attrs = append(attrs, slog.String(entry.key, presence(val)))
		} else {
			attrs = append(attrs, slog.String(entry.key, valOrUnset(val)))
		}
	}

	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: command start", attrs...)
}

// ExecutionStarted emits the audit entry written before the gateway runs an
// Azure CLI command.
func ExecutionStarted(log *slog.Logger, command string) {
	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: execution start",
		slog.String("command", Redact(command)))
}

// ExecutionFinished emits the audit entry written after an execution, once
// the result text is known.
func ExecutionFinished(log *slog.Logger, kind string, ok bool, elapsed time.Duration) {
	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: execution end",
		slog.String("kind", kind),
		slog.Bool("ok", ok),
		slog.Int64("duration_ms", elapsed.Milliseconds()))
}

// auditEntry defines an env var to include in the audit log.
type auditEntry struct {
	// key is the environment variable name.
	key string
	// secret indicates the value should be redacted to presence/absence.
	secret bool
}

// auditKeys is the ordered list of env vars included in every startup audit
// entry.
var auditKeys = []auditEntry{
	{"AZURE_CREDENTIALS", true},
	{"AZMCP_AUTH_TOKEN", true},
	{"AZMCP_CONFIG", false},
	{"AZMCP_HISTORY_DB", false},
	{"AZURE_CONFIG_DIR", false},
	{"LOG_LEVEL", false},
	{"LOG_FORMAT", false},
}

// SanitiseKey returns "set" or "unset" for known secret keys, or the actual
// value for non-secret keys. This is safe to use in log messages.
func SanitiseKey(key, value string) string {
	if secretEnvKeys[key] {
		return presence(value)
	}
	return valOrUnset(value)
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// valOrUnset returns the value if non-empty, "unset" otherwise.
func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// sanitiseConfigPath returns the config path or "none" if empty.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	// Redact home directory for privacy in logs.
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
