package apierrors

import "errors"

// UserError is a validation failure meant to be shown to the person who
// triggered the operation. It never indicates corrupted state: callers
// catch it at the interaction boundary and display Message ephemerally.
type UserError struct {
	Code    string
	Message string
}

func (e *UserError) Error() string {
	return e.Message
}

// NewUserError builds a UserError with the registered default message.
func NewUserError(code string) *UserError {
	return &UserError{Code: code, Message: Registry.Message(code)}
}

// NewUserErrorf builds a UserError with a custom display message.
func NewUserErrorf(code, message string) *UserError {
	return &UserError{Code: code, Message: message}
}

// AsUserError unwraps err into a *UserError if it is one.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
