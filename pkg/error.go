package pkg

import "errors"

// Driver errors, per error kind.
var (
	// ErrTransport indicates a failure reading from or writing to the UART.
	ErrTransport = errors.New("transport error")

	// ErrBaudDetection indicates no baud rate in the probe list produced a
	// response from the module.
	ErrBaudDetection = errors.New("baud detection failed")

	// ErrInvalidResponse indicates the module returned a response that did
	// not parse as expected for the command sent.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrTimeout indicates a command did not receive a response in time.
	ErrTimeout = errors.New("command timeout")

	// ErrNetwork indicates a general networking failure reported by the
	// module (e.g. a +UUWLD disconnect reason).
	ErrNetwork = errors.New("network error")

	// ErrOverflow indicates a ring buffer or socket receive buffer could
	// not hold the data offered to it.
	ErrOverflow = errors.New("buffer overflow")

	// ErrSocketSetFull indicates the socket set has no free slots.
	ErrSocketSetFull = errors.New("socket set full")

	// ErrInvalidSocket indicates an operation referenced a handle with no
	// matching socket, or the socket is of the wrong type for the call.
	ErrInvalidSocket = errors.New("invalid socket")

	// ErrSocketClosed indicates an operation on a socket already closed.
	ErrSocketClosed = errors.New("socket closed")

	// ErrSocketNotConnected indicates an operation requiring an established
	// connection was attempted on an unconnected socket.
	ErrSocketNotConnected = errors.New("socket not connected")

	// ErrNotBound indicates a listener operation on a port with no bound
	// listener.
	ErrNotBound = errors.New("not bound")

	// ErrDuplicateSocket indicates an attempt to register a socket under a
	// handle, peer-handle, or channel-id already in use.
	ErrDuplicateSocket = errors.New("duplicate socket")

	// ErrSupplicant indicates a Wi-Fi join failed at the supplicant layer
	// (authentication, association, or security mismatch).
	ErrSupplicant = errors.New("wifi supplicant error")

	// ErrDuplicateCredentials indicates an imported credential's digest did
	// not match the caller's expectation, meaning a different blob is
	// already stored under that name.
	ErrDuplicateCredentials = errors.New("duplicate credentials")

	// ErrUninitialized indicates an operation was attempted before the
	// runner's init sequence completed.
	ErrUninitialized = errors.New("uninitialized")

	// ErrAlreadyRunning indicates the runner or ingress task is already
	// running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates an operation requiring the runner to be
	// running was attempted while stopped.
	ErrNotRunning = errors.New("not running")
)
