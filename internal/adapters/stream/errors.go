package stream

import "errors"

// ErrSubscriberClosed is returned by Send after the subscriber is closed.
var ErrSubscriberClosed = errors.New("stream: subscriber closed")
