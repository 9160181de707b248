package engine

import "errors"

var (
	ErrEmptyInput = errors.New("message is empty")

	// ErrTurnInProgress rejects a second turn while one is streaming.
	ErrTurnInProgress = errors.New("a turn is already in progress")

	// ErrSelectionRequired pauses a tool invocation until the caller picks
	// documents and calls ResumeToolInvocation.
	ErrSelectionRequired = errors.New("document selection required")

	ErrUnknownTool               = errors.New("unknown tool kind")
	ErrMessageNotFound           = errors.New("message not found")
	ErrMissingOriginatingRequest = errors.New("message has no originating request to reissue")
)
