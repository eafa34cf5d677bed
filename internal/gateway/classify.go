package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/quantumwallet/qwallet/internal/transport"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

var errInvalidJSON = errors.New("response is not valid JSON")

// maxMessageLen caps backend text surfaced in error messages.
const maxMessageLen = 200

// classify maps a channel error onto the failure taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var se *transport.StatusError
	if !errors.As(err, &se) {
		if qwerr.KindOf(err) == qwerr.KindConnectivity {
			return err
		}
		var qe *qwerr.QWalletError
		if errors.As(err, &qe) {
			return err
		}
		return qwerr.WithCause(qwerr.ErrUnknown, err)
	}

	status := strconv.Itoa(se.HTTPStatus)
	switch {
	case se.HTTPStatus == http.StatusUnauthorized:
		e := qwerr.ErrUnauthorized
		if msg := backendMessage(se.Body); msg != "" {
			e = qwerr.WithMessage(e, msg)
		}
		return qwerr.WithDetails(qwerr.WithCause(e, se), map[string]string{"status": status})
	case se.HTTPStatus >= 400 && se.HTTPStatus < 500:
		msg := backendMessage(se.Body)
		if msg == "" {
			return qwerr.WithDetails(qwerr.WithCause(qwerr.ErrUnknown, se), map[string]string{"status": status})
		}
		return qwerr.WithDetails(
			qwerr.WithCause(qwerr.WithMessage(qwerr.ErrApplicationRejected, msg), se),
			map[string]string{"status": status},
		)
	default:
		return qwerr.WithDetails(qwerr.WithCause(qwerr.ErrUnknown, se), map[string]string{"status": status})
	}
}

// backendMessage extracts a readable message from an error body: JSON
// "message" or "error", otherwise the text itself when it is not JSON.
func backendMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	if gjson.Valid(trimmed) {
		for _, field := range []string{"message", "error"} {
			if v := gjson.Get(trimmed, field); v.Exists() && v.Type == gjson.String && v.String() != "" {
				return truncate(v.String())
			}
		}
		return ""
	}
	if strings.HasPrefix(trimmed, "<") {
		// HTML error pages are not messages
		return ""
	}
	return truncate(trimmed)
}

// rejectedBody reports a 2xx answer that still carries {success:false}.
func rejectedBody(body []byte) error {
	if !gjson.ValidBytes(body) {
		return nil
	}
	ok := gjson.GetBytes(body, "success")
	if !ok.Exists() || ok.Type != gjson.False {
		return nil
	}
	msg := backendMessage(body)
	if msg == "" {
		msg = qwerr.ErrApplicationRejected.Message
	}
	return qwerr.WithMessage(qwerr.ErrApplicationRejected, msg)
}

// decodeError wraps a 2xx body that cannot be understood.
func decodeError(operation string, cause error) error {
	return qwerr.WithDetails(qwerr.WithCause(qwerr.ErrUnknown, cause), map[string]string{"operation": operation})
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	return s[:maxMessageLen] + "..."
}
