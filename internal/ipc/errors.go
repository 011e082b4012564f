package ipc

import (
	"errors"
	"net/rpc"
	"strings"

	"cardsorter/internal/services"
)

// RemoteError is a daemon-side failure returned over RPC.
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// Unwrap exposes the services marker matching Kind.
func (e *RemoteError) Unwrap() error {
	switch e.Kind {
	case services.KindValidation:
		return services.ErrValidation
	case services.KindConfiguration:
		return services.ErrConfiguration
	case services.KindNotFound:
		return services.ErrNotFound
	case services.KindUnavailable:
		return services.ErrUnavailable
	case services.KindConflict:
		return services.ErrConflict
	default:
		return nil
	}
}

func encodeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New("[" + services.FailureKind(err) + "] " + err.Error())
}

func decodeError(err error) error {
	var serverErr rpc.ServerError
	if !errors.As(err, &serverErr) {
		return err
	}
	msg := string(serverErr)
	if rest, ok := strings.CutPrefix(msg, "["); ok {
		if kind, message, found := strings.Cut(rest, "] "); found {
			return &RemoteError{Kind: kind, Message: message}
		}
	}
	return &RemoteError{Kind: services.KindInternal, Message: msg}
}
