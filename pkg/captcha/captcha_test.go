package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenaforge/instancer/pkg/instancerr"
)

func TestDisabledVerifierAlwaysSucceeds(t *testing.T) {
	v := New("", "")
	assert.False(t, v.Enabled())
	require.NoError(t, v.Verify(context.Background(), "", ""))
}

func TestEnabledVerifierRejectsMissingResponse(t *testing.T) {
	v := New("secret", "sitekey")
	err := v.Verify(context.Background(), "", "1.2.3.4")
	require.Error(t, err)
	assert.Equal(t, instancerr.CaptchaFailed, instancerr.KindOf(err))
}

func TestVerifySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "secret", r.FormValue("secret"))
		assert.Equal(t, "resp-token", r.FormValue("response"))
		w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	v := New("secret", "sitekey")
	v.HTTPClient = srv.Client()
	prev := verifyURL
	verifyURL = srv.URL
	defer func() { verifyURL = prev }()

	require.NoError(t, v.Verify(context.Background(), "resp-token", ""))
}

func TestVerifyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false}`))
	}))
	defer srv.Close()

	v := New("secret", "sitekey")
	v.HTTPClient = srv.Client()
	prev := verifyURL
	verifyURL = srv.URL
	defer func() { verifyURL = prev }()

	err := v.Verify(context.Background(), "resp-token", "")
	require.Error(t, err)
	assert.Equal(t, instancerr.CaptchaFailed, instancerr.KindOf(err))
}
