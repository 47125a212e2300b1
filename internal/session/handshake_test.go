package session

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNegotiate_Success(t *testing.T) {
	q := url.Values{"targetName": {"Html"}, "toolVersion": {"1.0.0"}, "compiledAt": {"1000"}}
	hs, err := Negotiate("/", q, "/", "1.0.0", []string{"Html"}, nil)
	require.Nil(t, err)
	require.Equal(t, "Html", hs.TargetName)
}

func TestNegotiate_BadURL(t *testing.T) {
	_, err := Negotiate("/other", url.Values{}, "/", "1.0.0", nil, nil)
	require.NotNil(t, err)
	require.Equal(t, BadURL, err.Kind)
}

func TestNegotiate_ParamsDecodeError(t *testing.T) {
	q := url.Values{"targetName": {"Html"}}
	_, err := Negotiate("/", q, "/", "1.0.0", []string{"Html"}, nil)
	require.NotNil(t, err)
	require.Equal(t, ParamsDecodeError, err.Kind)
}

func TestNegotiate_WrongVersion(t *testing.T) {
	q := url.Values{"targetName": {"Html"}, "toolVersion": {"0.0.0"}, "compiledAt": {"1000"}}
	_, err := Negotiate("/", q, "/", "1.0.0", []string{"Html"}, nil)
	require.NotNil(t, err)
	require.Equal(t, WrongVersion, err.Kind)
}

func TestNegotiate_TargetDisabled(t *testing.T) {
	q := url.Values{"targetName": {"Html"}, "toolVersion": {"1.0.0"}, "compiledAt": {"1000"}}
	_, err := Negotiate("/", q, "/", "1.0.0", nil, []string{"Html"})
	require.NotNil(t, err)
	require.Equal(t, TargetDisabled, err.Kind)
}

func TestNegotiate_TargetNotFound(t *testing.T) {
	q := url.Values{"targetName": {"Ghost"}, "toolVersion": {"1.0.0"}, "compiledAt": {"1000"}}
	_, err := Negotiate("/", q, "/", "1.0.0", []string{"Html"}, nil)
	require.NotNil(t, err)
	require.Equal(t, TargetNotFound, err.Kind)
	require.Contains(t, err.Enabled, "Html")
}
