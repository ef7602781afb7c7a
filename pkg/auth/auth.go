package auth

import (
	"fmt"
	"net/http"
)

var (
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrMissingToken       = fmt.Errorf("missing access token")
)

// Handler defines the interface for auth handlers
type Handler interface {
	ApplyAuth(req *http.Request) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(req *http.Request) error

func (f HandlerFunc) ApplyAuth(req *http.Request) error { return f(req) }
