package avcapture

import "errors"

var (
	// ErrDeviceNotReady is returned by Init when the device reports it can't
	// capture yet, e.g. it has no input signal.
	ErrDeviceNotReady = errors.New("avcapture: device is not ready")
	// ErrUnsupportedFormat is returned by Init when the device can't deliver
	// the configured format or the format has no fixed frame size.
	ErrUnsupportedFormat = errors.New("avcapture: unsupported format")
	// ErrDeviceBusy is returned by Init when another process owns the stream.
	ErrDeviceBusy = errors.New("avcapture: device is owned by another process")
	// ErrInvalidConfig wraps every Config validation failure.
	ErrInvalidConfig = errors.New("avcapture: invalid config")
	// ErrInvalidState is returned for lifecycle calls made out of order.
	ErrInvalidState = errors.New("avcapture: invalid state")
)

// IsFatal reports whether err stopped a running pipeline rather than
// preventing it from starting.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// FatalError wraps a device failure that aborted a running pipeline.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return "avcapture: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
