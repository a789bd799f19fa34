package core

import "errors"

var (
	// ErrNullException is returned by Context.Run when the script threw null.
	ErrNullException = errors.New("script threw null")

	// ErrNotSerializable is returned by Value.JSON when the value has no JSON
	// text (functions, symbols, BigInt, cyclic objects).
	ErrNotSerializable = errors.New("value is not serializable")

	// ErrContextClosed is returned when a closed context is used.
	ErrContextClosed = errors.New("context closed")

	// ErrContextRetired is returned by backends that cannot reuse a context
	// after it was interrupted.
	ErrContextRetired = errors.New("context retired after interrupt")

	// ErrInvalidHandle is returned when a native call carries a handle that
	// is not registered, typically because the sandbox was released.
	ErrInvalidHandle = errors.New("invalid sandbox handle")

	// ErrGasLimitExceeded is returned when metered work passes the gas limit.
	ErrGasLimitExceeded = errors.New("gas limit exceeded")
)
