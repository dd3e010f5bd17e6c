package orchestration

import (
	"context"
	"encoding/json"
	"strings"

	"knowde-backend/application/contracts"
	pkgerrors "knowde-backend/pkg/errors"
)

// Role is one specialist step in a workflow. A role reads what it needs from
// the shared context, does its work through the capability ports, and returns
// a payload that must satisfy its declared contract schema. Roles never talk
// to each other directly.
type Role interface {
	// Name identifies the role in the shared context and in logs
	Name() string

	// Schema names the contract the role's output must satisfy
	Schema() contracts.Kind

	// Execute produces the role's payload for this run
	Execute(ctx context.Context, sc *SharedContext) (interface{}, error)
}

// violationSuffix marks the shared-context entry carrying validation feedback
// for a role's retry after a contract violation
const violationSuffix = ".violation"

// lastViolation returns the validation feedback recorded for a role, if its
// previous output failed the schema gate
func lastViolation(sc *SharedContext, roleName string) (string, bool) {
	return LatestAs[string](sc, roleName+violationSuffix)
}

// decodeModelJSON unmarshals a model completion into out. Models occasionally
// wrap JSON in a markdown fence; strip it before parsing. A completion that
// is not valid JSON for the expected shape is a contract violation.
func decodeModelJSON(raw string, role string, out interface{}) error {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return pkgerrors.NewContractViolationError(role, err)
	}
	return nil
}
