package stdio

import (
	"github.com/fyrsmithlabs/factcheckd/internal/chat"
)

// CheckResult is the daemon's answer to a check.
type CheckResult = chat.Result

// Health is the daemon's /health payload.
type Health struct {
	Status  string   `json:"status"`
	Version string   `json:"version,omitempty"`
	Models  []string `json:"models"`

	VectorStore string `json:"vector_store,omitempty"`
}

// CheckClaimParams defines parameters for the check_claim tool.
type CheckClaimParams struct {
	Message string `json:"message" jsonschema:"Claim or message to fact-check"`
	Model   string `json:"model,omitempty" jsonschema:"Model id to answer with (optional, defaults to the daemon's default model)"`
}

// StatusParams defines parameters for the status tool (none).
type StatusParams struct{}
