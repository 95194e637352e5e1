package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/grouporder/internal/apperr"
)

// Response headers describing a failed call.
const (
	HeaderErrorKind = "Grouporder-Error-Kind"
	HeaderRetryable = "Grouporder-Retryable"
)

var codeByKind = map[apperr.Kind]connect.Code{
	apperr.KindValidation:    connect.CodeInvalidArgument,
	apperr.KindNotFound:      connect.CodeNotFound,
	apperr.KindAuthorization: connect.CodePermissionDenied,
	apperr.KindState:         connect.CodeFailedPrecondition,
	apperr.KindConflict:      connect.CodeAborted,
	apperr.KindUnavailable:   connect.CodeUnavailable,
	apperr.KindInternal:      connect.CodeInternal,
}

// toConnectError maps an engine error onto a connect code. Messages of
// unavailable and internal errors are replaced with the public message.
func toConnectError(err error) *connect.Error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	kind := apperr.KindOf(err)
	code, ok := codeByKind[kind]
	if !ok {
		code = connect.CodeInternal
	}
	meta := apperr.MetadataFor(kind)

	msg := meta.PublicMessage
	if e := apperr.As(err); e != nil && kind != apperr.KindUnavailable && kind != apperr.KindInternal {
		msg = e.Message() + formatDetails(e.Details())
	}

	cerr := connect.NewError(code, errors.New(msg))
	cerr.Meta().Set(HeaderErrorKind, string(kind))
	if meta.Retryable {
		cerr.Meta().Set(HeaderRetryable, "true")
	}
	return cerr
}

func formatDetails(details map[string]string) string {
	if len(details) == 0 {
		return ""
	}
	fields := make([]string, 0, len(details))
	for field := range details {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = fmt.Sprintf("%s: %s", field, details[field])
	}
	return " (" + strings.Join(parts, "; ") + ")"
}

// fail logs a failed RPC and converts the error. Caller mistakes log at Warn,
// infrastructure failures at Error.
func fail(method string, err error, attrs ...any) *connect.Error {
	attrs = append(attrs, "error", err)
	switch apperr.KindOf(err) {
	case apperr.KindUnavailable, apperr.KindInternal:
		slog.Error(method+" failed", attrs...)
	default:
		slog.Warn(method+" failed", attrs...)
	}
	return toConnectError(err)
}
