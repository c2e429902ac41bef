package bundles

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrNotReady              = errors.New("artifact not ready")
	ErrArtifactMissing       = errors.New("artifact missing from storage")
	ErrPaymentRequired       = errors.New("payment required")
	ErrJobQueueNotConfigured = errors.New("job queue not configured")
)

const (
	ErrorCodeCatalog     = "CATALOG_ERROR"
	ErrorCodeRender      = "RENDER_ERROR"
	ErrorCodeStorage     = "STORAGE_ERROR"
	ErrorCodeEntitlement = "ENTITLEMENT_ERROR"
	ErrorCodeQueue       = "QUEUE_ERROR"
	ErrorCodeInternal    = "INTERNAL_ERROR"
)

// EntitlementMismatchError means the client's free claim disagrees with the server.
type EntitlementMismatchError struct {
	Claimed bool
	Actual  bool
}

func (e *EntitlementMismatchError) Error() string {
	return fmt.Sprintf("entitlement mismatch: client claimed isFree=%t, server computed isFree=%t", e.Claimed, e.Actual)
}

// UnknownDesignsError lists submitted ids that are not in the catalog.
type UnknownDesignsError struct {
	IDs []string
}

func (e *UnknownDesignsError) Error() string {
	return "unknown designs: " + strings.Join(e.IDs, ", ")
}
