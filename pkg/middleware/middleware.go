// Package middleware holds the HTTP middleware shared by every module:
// panic recovery, CORS, request logging and body limits.
package middleware

import "net/http"

// Func wraps a handler.
type Func = func(http.Handler) http.Handler

// System is an ordered middleware stack. The first Func added is the
// outermost wrapper.
type System interface {
	Use(fns ...Func)
	Apply(handler http.Handler) http.Handler
}

type stack struct {
	fns []Func
}

func New() System {
	return &stack{}
}

func (s *stack) Use(fns ...Func) {
	for _, fn := range fns {
		if fn != nil {
			s.fns = append(s.fns, fn)
		}
	}
}

func (s *stack) Apply(handler http.Handler) http.Handler {
	for i := len(s.fns) - 1; i >= 0; i-- {
		handler = s.fns[i](handler)
	}
	return handler
}
