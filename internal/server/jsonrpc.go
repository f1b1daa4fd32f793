package server

import (
	goerrors "errors"

	apexerrors "github.com/apexls/apexls/internal/errors"
)

// JSON-RPC error codes the transport maps internal failures to.
const (
	CodeInvalidParams    = -32602
	CodeInternalError    = -32603
	CodeRequestCancelled = -32800
)

// WireError is the transport-facing error shape.
type WireError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *WireError) Error() string { return e.Message }

// ToWireError maps an internal error to its JSON-RPC code: input errors to
// InvalidParams, timeouts and cancellations to RequestCancelled, everything
// else to InternalError.
func ToWireError(err error) *WireError {
	if err == nil {
		return nil
	}

	switch {
	case goerrors.Is(err, apexerrors.ErrTimeout),
		goerrors.Is(err, apexerrors.ErrCancelled):
		return &WireError{Code: CodeRequestCancelled, Message: err.Error()}
	case goerrors.Is(err, apexerrors.ErrMalformedID),
		goerrors.Is(err, apexerrors.ErrHandlerNotRegistered),
		goerrors.Is(err, apexerrors.ErrAlreadyInitialised),
		goerrors.Is(err, apexerrors.ErrSchedulerNotInitialised),
		isDuplicateSymbol(err):
		return &WireError{Code: CodeInvalidParams, Message: err.Error()}
	default:
		return &WireError{Code: CodeInternalError, Message: err.Error()}
	}
}

func isDuplicateSymbol(err error) bool {
	var dup *apexerrors.DuplicateSymbolError
	return goerrors.As(err, &dup)
}
