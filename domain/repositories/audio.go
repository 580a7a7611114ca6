package repositories

import (
	"context"
	"errors"
	"io"

	"github.com/satriahrh/schedula/domain"
)

var (
	// ErrPermissionDenied is returned when the microphone cannot be acquired
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrUnsupported is returned when a speech capability is absent from the runtime
	ErrUnsupported = errors.New("capability not supported")
)

// Microphone gates access to the capture device
type Microphone interface {
	// RequestPermission blocks until access is granted or denied
	RequestPermission(ctx context.Context) error
	// Open returns a PCM stream from the device
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Notifier shows non-blocking notices to the user
type Notifier interface {
	Notify(notice domain.Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(notice domain.Notice)

func (f NotifierFunc) Notify(notice domain.Notice) { f(notice) }
