package ingest

import "fmt"

// FetchErrorKind classifies provider-side failures.
type FetchErrorKind string

const (
	// FetchUnavailable covers timeouts and non-2xx provider responses.
	FetchUnavailable FetchErrorKind = "unavailable"
	// FetchTransport covers network-level failures before a response.
	FetchTransport FetchErrorKind = "transport"
	// FetchMalformed covers responses that cannot be decoded.
	FetchMalformed FetchErrorKind = "malformed"
)

// FetchError is the typed failure returned by provider fetches. A failed
// fetch never results in a partial write.
type FetchError struct {
	Kind   FetchErrorKind
	Detail string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Kind, e.Detail)
}

func (e *FetchError) Unwrap() error { return e.Err }

func fetchErr(kind FetchErrorKind, detail string, err error) *FetchError {
	return &FetchError{Kind: kind, Detail: detail, Err: err}
}
