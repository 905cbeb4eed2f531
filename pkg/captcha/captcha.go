// Package captcha implements the optional hCaptcha pre-check plugged in
// front of start/stop, kept entirely outside the lifecycle core per the
// design note that captcha is a pre-check, not an internal concern.
// Grounded on the original util/hcaptcha.py verify_hcaptcha helper.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arenaforge/instancer/pkg/instancerr"
)

// verifyURL is a var (not a const) so tests can point it at a local stub.
var verifyURL = "https://hcaptcha.com/siteverify"

// Verifier checks a site-verify response token against the hCaptcha API.
// A zero-value Verifier (Secret == "") is inert - see Enabled.
type Verifier struct {
	Secret     string
	SiteKey    string
	HTTPClient *http.Client
}

// New builds a Verifier. A Verifier with an empty secret/site key disables
// validation wholesale, matching config.CaptchaEnabled's "both configured"
// rule.
func New(secret, siteKey string) *Verifier {
	return &Verifier{
		Secret:     secret,
		SiteKey:    siteKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether captcha validation is configured at all.
func (v *Verifier) Enabled() bool {
	return v != nil && v.Secret != "" && v.SiteKey != ""
}

type siteVerifyResponse struct {
	Success bool `json:"success"`
}

// Verify checks response (the client-submitted captcha token) against the
// hCaptcha API, optionally attaching the requester's IP. It is a no-op
// success when the verifier is disabled.
func (v *Verifier) Verify(ctx context.Context, response, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	if response == "" {
		return instancerr.New(instancerr.CaptchaFailed, "captcha response is missing")
	}

	form := url.Values{
		"secret":   {v.Secret},
		"response": {response},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building hcaptcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return instancerr.Wrap(instancerr.Internal, "calling hcaptcha siteverify", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return instancerr.New(instancerr.Internal, fmt.Sprintf("hcaptcha siteverify returned status %d", resp.StatusCode))
	}

	var body siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return instancerr.Wrap(instancerr.Internal, "decoding hcaptcha response", err)
	}
	if !body.Success {
		return instancerr.New(instancerr.CaptchaFailed, "captcha validation failed")
	}
	return nil
}
