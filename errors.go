package termsync

import "errors"

// Protocol decode errors. These are the only errors the codec produces;
// the engine itself has no fatal conditions.
var (
	ErrFrameTooShort    = errors.New("termsync: frame too short")
	ErrPayloadTruncated = errors.New("termsync: frame payload truncated")
	ErrUnknownFrame     = errors.New("termsync: unknown frame type")
	ErrUnknownUpdate    = errors.New("termsync: unknown update kind")
)

// Session and transport errors.
var (
	ErrSessionClosed = errors.New("termsync: session closed")
	ErrHostShutdown  = errors.New("termsync: host requested shutdown")
)
