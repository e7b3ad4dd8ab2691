package azcli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/azmcp-go/internal/audit"
)

// CredentialsEnv is the environment variable holding the service principal
// JSON, in the format produced by `az ad sp create-for-rbac --json-auth`.
const CredentialsEnv = "AZURE_CREDENTIALS"

// Credentials is the service principal identity used for the one-shot
// non-interactive login at startup. It is parsed once and never mutated.
type Credentials struct {
	// TenantID is the Entra tenant to log in to.
	TenantID string `json:"tenantId"`
	// ClientID is the service principal's application (client) ID.
	ClientID string `json:"clientId"`
	// ClientSecret is the service principal's password.
	ClientSecret string `json:"clientSecret"`
}

// LoadCredentials parses the service principal JSON. An empty or whitespace
// value means no credentials are configured and returns (nil, nil). Extra
// fields in the JSON (subscription ID, endpoint URLs) are tolerated and
// ignored.
func LoadCredentials(raw string) (*Credentials, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var c Credentials
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("parse azure credentials: %w", err)
	}
	if c.TenantID == "" || c.ClientID == "" || c.ClientSecret == "" {
		return nil, fmt.Errorf("azure credentials missing tenantId, clientId, or clientSecret")
	}
	return &c, nil
}

// LoginCommand synthesizes the non-interactive service principal login.
func (c *Credentials) LoginCommand() string {
	return fmt.Sprintf("az login --service-principal --tenant %s --username %s --password %s",
		c.TenantID, c.ClientID, c.ClientSecret)
}

// BootstrapLogin parses raw credentials and, when present, runs the service
// principal login through gw. It is called once at server startup. Every
// failure mode — malformed JSON, missing fields, a failed login — is logged
// and swallowed so that startup continues; a server without a valid login
// still serves, it just returns az errors until someone logs in.
func BootstrapLogin(ctx context.Context, gw *Gateway, log *slog.Logger, raw string) {
	creds, err := LoadCredentials(raw)
	if err != nil {
		log.Error("parsing azure credentials", "error", err)
		return
	}
	if creds == nil {
		log.Warn("no azure credentials provided")
		return
	}

	result := gw.Execute(ctx, creds.LoginCommand())
	log.Info("azure cli login result", "result", audit.Redact(result))
}
