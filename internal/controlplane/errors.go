package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrConfirmationRequired = errors.New("reset requires confirm=true")
	ErrAuditUnavailable     = errors.New("store backend does not expose audit records")
)
