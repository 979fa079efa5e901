package auth

import (
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-connect/core"
)

var (
	// ErrBadCredentials is returned by an AuthenticationManager that rejects
	// a credential. It routes the request to the register redirect, never to
	// a server fault.
	ErrBadCredentials = errors.New("auth: bad credentials")

	// ErrUnknownProvider reports a request naming a provider id with no
	// registered handshake service.
	ErrUnknownProvider = errors.New("auth: unknown provider")
)

// UnknownProviderError matches ErrUnknownProvider via errors.Is and is
// surfaced as a client error, not a server fault.
type UnknownProviderError struct {
	ProviderID string
}

func (e *UnknownProviderError) Error() string {
	if e == nil {
		return ErrUnknownProvider.Error()
	}
	return fmt.Sprintf("%s: %s", ErrUnknownProvider.Error(), e.ProviderID)
}

func (e *UnknownProviderError) Unwrap() error {
	return ErrUnknownProvider
}

func unknownProvider(providerID string) error {
	return &UnknownProviderError{ProviderID: providerID}
}

func unknownProviderEnvelope(providerID string) *goerrors.Error {
	err := goerrors.New(unknownProvider(providerID).Error(), goerrors.CategoryNotFound).
		WithTextCode(core.ConnectErrorUnknownProvider)
	err.Code = http.StatusNotFound
	return err
}
