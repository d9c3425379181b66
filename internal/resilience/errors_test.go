package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("server overloaded"), 503)
	assert.True(t, IsTransient(err))
}

func TestIsTransient_WrappedByEris(t *testing.T) {
	inner := NewTransientError(errors.New("rate limited"), 429)
	assert.True(t, IsTransient(eris.Wrap(inner, "fetch: get")))
}

func TestIsTransient_NilAndRegular(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("invalid input")))
}

func TestIsTransient_Network(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("write tcp: %w", syscall.ECONNRESET)))
	assert.True(t, IsTransient(&net.DNSError{Err: "no such host", Name: "acme.invalid"}))
	assert.True(t, IsTransient(errors.New("read: i/o timeout")))
}

func TestCheckStatus(t *testing.T) {
	assert.NoError(t, CheckStatus("https://acme.com", 200))
	assert.NoError(t, CheckStatus("https://acme.com", 204))

	err := CheckStatus("https://acme.com", 404)
	var se *StatusError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.StatusCode)
	assert.False(t, IsTransient(err))
	assert.Equal(t, "http_404", Kind(err))

	err = CheckStatus("https://acme.com", 429)
	assert.True(t, IsTransient(err))
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, "transient", Kind(err))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestKind(t *testing.T) {
	assert.Empty(t, Kind(nil))
	assert.Equal(t, "permanent", Kind(errors.New("bad url")))
}
