package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ConnectErrorBadInput             = "CONNECT_BAD_INPUT"
	ConnectErrorNoSuchConnection     = "CONNECT_NO_SUCH_CONNECTION"
	ConnectErrorDuplicateConnection  = "CONNECT_DUPLICATE_CONNECTION"
	ConnectErrorFactoryNotRegistered = "CONNECT_FACTORY_NOT_REGISTERED"
	ConnectErrorUnknownProvider      = "CONNECT_UNKNOWN_PROVIDER"
	ConnectErrorSignUpFailed         = "CONNECT_SIGNUP_FAILED"
	ConnectErrorInternal             = "CONNECT_INTERNAL_ERROR"
)

func connectErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureConnectErrorEnvelope(richErr)
	}

	switch {
	case goerrors.Is(err, ErrNoSuchConnection):
		return newConnectError(err.Error(), goerrors.CategoryNotFound, ConnectErrorNoSuchConnection)
	case goerrors.Is(err, ErrDuplicateConnection):
		return newConnectError(err.Error(), goerrors.CategoryConflict, ConnectErrorDuplicateConnection)
	case goerrors.Is(err, ErrNoSuchConnectionFactory):
		return newConnectError(err.Error(), goerrors.CategoryInternal, ConnectErrorFactoryNotRegistered)
	case goerrors.Is(err, ErrInvalidConnectionKey):
		return newConnectError(err.Error(), goerrors.CategoryBadInput, ConnectErrorBadInput)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "sign-up"), strings.Contains(msg, "sign up"):
		return newConnectError(err.Error(), goerrors.CategoryInternal, ConnectErrorSignUpFailed)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "empty"):
		return newConnectError(err.Error(), goerrors.CategoryBadInput, ConnectErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureConnectErrorEnvelope(mapped)
}

func newConnectError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureConnectErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureConnectErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = connectHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultConnectTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultConnectTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ConnectErrorBadInput
	case goerrors.CategoryNotFound:
		return ConnectErrorNoSuchConnection
	case goerrors.CategoryConflict:
		return ConnectErrorDuplicateConnection
	default:
		return ConnectErrorInternal
	}
}

func connectHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
