package rpc

import (
	"errors"

	"connectrpc.com/connect"
)

// ErrorRule maps every error matching Target (via errors.Is) to Code.
type ErrorRule struct {
	Target error
	Code   connect.Code
}

// ErrorMapper turns domain errors into connect errors. Rules are checked in
// order, so more specific sentinels must come before the ones they wrap.
type ErrorMapper []ErrorRule

// Map returns a connect error for err. Errors no rule matches become
// CodeInternal with a generic message so storage details never reach clients.
func (m ErrorMapper) Map(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}
	for _, rule := range m {
		if errors.Is(err, rule.Target) {
			return connect.NewError(rule.Code, err)
		}
	}
	return connect.NewError(connect.CodeInternal, errors.New("internal error"))
}

// InvalidArgument is a shorthand for request decoding failures.
func InvalidArgument(msg string) error {
	return connect.NewError(connect.CodeInvalidArgument, errors.New(msg))
}
