package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

const (
	deviceAuthURL  = "https://device.auth.xboxlive.com/device/authenticate"
	sisuAuthURL    = "https://sisu.xboxlive.com/authenticate"
	sisuAuthorize  = "https://sisu.xboxlive.com/authorize"
	xstsAuthorize  = "https://xsts.auth.xboxlive.com/xsts/authorize"
	mcLoginURL     = "https://api.minecraftservices.com/authentication/login_with_xbox"
	mcEntitlements = "https://api.minecraftservices.com/entitlements/mcstore"
	mcProfileURL   = "https://api.minecraftservices.com/minecraft/profile"
	msOAuthAuthURL = "https://login.live.com/oauth20_authorize.srf"
	msOAuthTokenURL = "https://login.live.com/oauth20_token.srf"

	maxRetries  = 5
	retryDelay  = 250 * time.Millisecond
)

// signedRequest wraps the JSON request body and response plumbing
// every XBL-chain step shares, with the retry policy of spec §4.J:
// retry only connect/timeout errors, up to 5 times, 250ms fixed delay.
type signedRequest struct {
	Method  string
	URL     string
	Body    any
	Headers map[string]string
}

type apiResponse struct {
	Body       []byte
	StatusCode int
	Date       time.Time
}

func (f *Flow) doJSON(ctx context.Context, req signedRequest) (apiResponse, error) {
	var payload []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return apiResponse{}, onelauncher.Wrap(onelauncher.KindSerde, err, "marshal auth request")
		}
		payload = b
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := f.doOnce(ctx, req, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if onelauncher.KindOf(err) != onelauncher.KindNetwork {
			return apiResponse{}, err
		}
		select {
		case <-ctx.Done():
			return apiResponse{}, onelauncher.Wrap(onelauncher.KindCancelled, ctx.Err(), "auth request cancelled")
		case <-time.After(retryDelay):
		}
	}
	return apiResponse{}, lastErr
}

func (f *Flow) doOnce(ctx context.Context, req signedRequest, payload []byte) (apiResponse, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return apiResponse{}, onelauncher.Wrap(onelauncher.KindIO, err, "build auth request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("x-xbl-contract-version", "1")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.http.Do(httpReq)
	if err != nil {
		// net/http doesn't expose a stable connect-vs-timeout sentinel;
		// any transport-level failure is treated as the retryable
		// Network kind, matching internal/fetch's policy.
		return apiResponse{}, onelauncher.Wrap(onelauncher.KindNetwork, err, req.URL)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResponse{}, onelauncher.Wrap(onelauncher.KindNetwork, err, req.URL)
	}

	date := time.Now().UTC()
	if d := resp.Header.Get("Date"); d != "" {
		if parsed, perr := http.ParseTime(d); perr == nil {
			date = parsed
		}
	}

	if resp.StatusCode >= 400 {
		return apiResponse{Body: data, StatusCode: resp.StatusCode, Date: date}, onelauncher.HTTPStatus(resp.StatusCode)
	}

	return apiResponse{Body: data, StatusCode: resp.StatusCode, Date: date}, nil
}
