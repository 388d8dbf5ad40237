package agent

import (
	"context"
	"strings"

	"github.com/hugo-lorenzo-mato/rolechain/internal/logging"
)

// EchoClient answers without calling a model. It is used for dry runs.
type EchoClient struct {
	name string
}

// NewEchoClient creates an echo provider.
func NewEchoClient(cfg ProviderConfig, _ *logging.Logger) (Provider, error) {
	return &EchoClient{name: cfg.Name}, nil
}

// Name returns the provider name.
func (c *EchoClient) Name() string {
	return c.name
}

// Complete returns the prompt prefixed with the role, so each step's output
// is a deterministic function of its input.
func (c *EchoClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	role := req.Role
	if role == "" {
		role = "agent"
	}
	return "[" + role + "] " + strings.TrimSpace(req.Prompt), nil
}
