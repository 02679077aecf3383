package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/url"
)

// Normalize maps any failure onto one of the four kinds. Errors that are
// already classified pass through untouched, so it is safe to apply at every
// layer boundary.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}

	var (
		urlErr    *url.Error
		netErr    net.Error
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)

	switch {
	case stderrors.As(err, &syntaxErr):
		return NewProtocolError("malformed JSON", map[string]any{"offset": syntaxErr.Offset}, err)
	case stderrors.As(err, &typeErr):
		return NewProtocolError("unexpected JSON type", map[string]any{"field": typeErr.Field}, err)
	case stderrors.As(err, &urlErr):
		return NewTransportError("request failed", urlErr.URL, err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return NewTransportError("request timed out", "", err)
	case stderrors.Is(err, context.Canceled):
		return NewTransportError("request canceled", "", err)
	case stderrors.As(err, &netErr):
		return NewTransportError("network error", "", err)
	default:
		return NewTransportError("unclassified failure", "", err)
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
