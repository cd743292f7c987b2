package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// Flow drives the Microsoft -> Xbox Live -> XSTS -> Minecraft chain of
// spec §4.J. One Flow is constructed per launcher instance and shares
// the device key/token cached in Store across logins.
type Flow struct {
	http     *http.Client
	store    *Store
	oauthCfg oauth2.Config
}

// New constructs a Flow. clientID is the Azure AD application id
// registered for this launcher; redirectURI must match one registered
// on that application.
func New(store *Store, clientID, redirectURI string) *Flow {
	return &Flow{
		http:  &http.Client{Timeout: 30 * time.Second},
		store: store,
		oauthCfg: oauth2.Config{
			ClientID:    clientID,
			RedirectURL: redirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  msOAuthAuthURL,
				TokenURL: msOAuthTokenURL,
			},
			Scopes: []string{"XboxLive.signin", "offline_access"},
		},
	}
}

// Begin starts a login: a fresh PKCE pair per spec §4.J (verifier = 64
// random bytes hex-encoded, challenge = base64url(sha256(verifier))),
// then a SisuAuthenticate call that yields the session id and the
// redirect URI the UI must open in a browser.
func (f *Flow) Begin(ctx context.Context) (*LoginFlow, error) {
	verifierBytes := make([]byte, 64)
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, onelauncher.AuthStep("pkce", err)
	}
	verifier := hex.EncodeToString(verifierBytes)
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	kp, err := f.ensureDeviceKeyAndToken(ctx)
	if err != nil {
		return nil, err
	}

	sisu, err := f.sisuAuthenticate(ctx, kp)
	if err != nil {
		return nil, err
	}

	authURL := f.oauthCfg.AuthCodeURL(sisu.SessionID,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("prompt", "select_account"))

	return &LoginFlow{
		Verifier:    verifier,
		Challenge:   challenge,
		SessionID:   sisu.SessionID,
		RedirectURI: authURL,
	}, nil
}

// Finish completes the chain from an authorization code (extracted by
// the caller from the browser redirect) through OAuthToken, SisuAuthorize,
// XstsAuthorize, MinecraftToken, MinecraftEntitlements, and
// MinecraftProfile, persisting the resulting credential.
func (f *Flow) Finish(ctx context.Context, code string, flow *LoginFlow) (Credentials, error) {
	kp, err := f.ensureDeviceKeyAndToken(ctx)
	if err != nil {
		return Credentials{}, err
	}

	oauthTok, err := f.oauthCfg.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", flow.Verifier))
	if err != nil {
		return Credentials{}, onelauncher.AuthStep("oauth_token", err)
	}

	authz, err := f.sisuAuthorize(ctx, kp, oauthTok.AccessToken, flow.SessionID)
	if err != nil {
		return Credentials{}, err
	}

	xsts, err := f.xstsAuthorize(ctx, kp, authz.UserToken, authz.TitleToken)
	if err != nil {
		return Credentials{}, err
	}

	mcToken, err := f.minecraftToken(ctx, xsts)
	if err != nil {
		return Credentials{}, err
	}

	if err := f.minecraftEntitlements(ctx, mcToken.AccessToken); err != nil {
		return Credentials{}, err
	}

	profile, err := f.minecraftProfile(ctx, mcToken.AccessToken)
	if err != nil {
		return Credentials{}, err
	}

	cred := Credentials{
		UUID:         dashifyUUID(profile.ID),
		Username:     profile.Name,
		AccessToken:  mcToken.AccessToken,
		RefreshToken: oauthTok.RefreshToken,
		ExpiresAt:    mcToken.expiresAt(),
	}
	if err := f.store.Put(cred); err != nil {
		return Credentials{}, err
	}
	return cred, nil
}

// ensureDeviceKeyAndToken loads the cached device key/token from
// Store, or generates a key and fetches a fresh token, per spec §4.J:
// "device key and token are cached". The cache is keyed by machine id
// so every profile on this machine shares one device registration.
func (f *Flow) ensureDeviceKeyAndToken(ctx context.Context) (*keyPair, error) {
	machineID, err := f.store.MachineID()
	if err != nil {
		return nil, onelauncher.AuthStep("device_token", err)
	}
	if saved, ok := f.store.DeviceToken(machineID); ok && time.Now().Before(saved.NotAfter) {
		kp, err := loadKeyPair(saved.Key)
		if err == nil {
			kp.token = saved.Token
			return kp, nil
		}
	}
	return f.refreshDeviceToken(ctx, nil, machineID)
}

// refreshDeviceToken generates a device key (if none was passed) and
// requests a new device token. A signed request that fails is not
// retried with a regenerated token by any caller.
func (f *Flow) refreshDeviceToken(ctx context.Context, existing *keyPair, machineID string) (*keyPair, error) {
	kp := existing
	if kp == nil {
		generated, err := generateDeviceKey()
		if err != nil {
			return nil, err
		}
		kp = generated
	}

	body := map[string]any{
		"Properties": map[string]any{
			"AuthMethod": "ProofOfPossession",
			"Id":         fmt.Sprintf("{%s}", kp.ID),
			"DeviceType": "Win32",
			"Version":    "10.0.19041",
			"ProofKey": map[string]any{
				"crv": "P-256",
				"alg": "ES256",
				"use": "sig",
				"kty": "EC",
				"x":   kp.X,
				"y":   kp.Y,
			},
		},
		"RelyingParty": "http://auth.xboxlive.com",
		"TokenType":    "JWT",
	}

	sig, err := kp.signRequest(http.MethodPost, "/device/authenticate", "", mustJSON(body), time.Now().UTC())
	if err != nil {
		return nil, err
	}

	resp, err := f.doJSON(ctx, signedRequest{
		Method:  http.MethodPost,
		URL:     deviceAuthURL,
		Body:    body,
		Headers: map[string]string{"Signature": sig},
	})
	if err != nil {
		return nil, onelauncher.AuthStep("device_token", err)
	}

	var parsed struct {
		Token       string `json:"Token"`
		NotAfter    string `json:"NotAfter"`
		DisplayClaims struct {
			Xdi []map[string]string `json:"xdi"`
		} `json:"DisplayClaims"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, onelauncher.AuthStep("device_token", onelauncher.Wrap(onelauncher.KindSerde, err, "parse device token"))
	}

	notAfter, _ := time.Parse(time.RFC3339, parsed.NotAfter)
	kp.token = parsed.Token
	if err := f.store.PutDeviceToken(machineID, SavedDeviceToken{Key: kp.DeviceKey, Token: parsed.Token, NotAfter: notAfter}); err != nil {
		return nil, err
	}
	return kp, nil
}

type sisuAuthenticateResult struct {
	SessionID string
}

func (f *Flow) sisuAuthenticate(ctx context.Context, kp *keyPair) (*sisuAuthenticateResult, error) {
	body := map[string]any{
		"AppId":       f.oauthCfg.ClientID,
		"DeviceToken": kp.token,
		"Offers":      []string{"service::user.auth.xboxlive.com::MBI_SSL"},
		"Query":       map[string]string{"display": "touch"},
		"RedirectUri": f.oauthCfg.RedirectURL,
		"Sandbox":     "RETAIL",
		"TokenType":   "code",
	}
	sig, err := kp.signRequest(http.MethodPost, "/authenticate", "", mustJSON(body), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	resp, err := f.doJSON(ctx, signedRequest{Method: http.MethodPost, URL: sisuAuthURL, Body: body, Headers: map[string]string{"Signature": sig}})
	if err != nil {
		return nil, onelauncher.AuthStep("sisu_authenticate", err)
	}
	var parsed struct {
		SessionID string `json:"SessionId"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, onelauncher.AuthStep("sisu_authenticate", onelauncher.Wrap(onelauncher.KindSerde, err, "parse SisuAuthenticate"))
	}
	return &sisuAuthenticateResult{SessionID: parsed.SessionID}, nil
}

type sisuAuthorizeResult struct {
	UserToken  string
	TitleToken string
}

func (f *Flow) sisuAuthorize(ctx context.Context, kp *keyPair, msaAccessToken, sessionID string) (*sisuAuthorizeResult, error) {
	body := map[string]any{
		"AccessToken": "t=" + msaAccessToken,
		"AppId":       f.oauthCfg.ClientID,
		"DeviceToken": kp.token,
		"ProofKey": map[string]any{
			"crv": "P-256", "alg": "ES256", "use": "sig", "kty": "EC", "x": kp.X, "y": kp.Y,
		},
		"Sandbox":   "RETAIL",
		"SessionId": sessionID,
		"SiteName":  "user.auth.xboxlive.com",
		"RelyingParty": "http://auth.xboxlive.com",
	}
	sig, err := kp.signRequest(http.MethodPost, "/authorize", "", mustJSON(body), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	resp, err := f.doJSON(ctx, signedRequest{Method: http.MethodPost, URL: sisuAuthorize, Body: body, Headers: map[string]string{"Signature": sig}})
	if err != nil {
		return nil, onelauncher.AuthStep("sisu_authorize", err)
	}
	var parsed struct {
		UserToken struct {
			Token string `json:"Token"`
		} `json:"UserToken"`
		TitleToken struct {
			Token string `json:"Token"`
		} `json:"TitleToken"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, onelauncher.AuthStep("sisu_authorize", onelauncher.Wrap(onelauncher.KindSerde, err, "parse SisuAuthorize"))
	}
	return &sisuAuthorizeResult{UserToken: parsed.UserToken.Token, TitleToken: parsed.TitleToken.Token}, nil
}

// xstsResult is the Xbox token spec §4.J's XstsAuthorize step yields:
// the token itself plus the user hash (uhs) needed for the Minecraft
// identity token.
type xstsResult struct {
	Token string
	UHS   string
}

func (f *Flow) xstsAuthorize(ctx context.Context, kp *keyPair, userToken, titleToken string) (*xstsResult, error) {
	tokens := []string{userToken}
	body := map[string]any{
		"Properties": map[string]any{
			"SandboxId":  "RETAIL",
			"UserTokens": tokens,
			"TitleToken": titleToken,
		},
		"RelyingParty": "rp://api.minecraftservices.com/",
		"TokenType":    "JWT",
	}
	sig, err := kp.signRequest(http.MethodPost, "/xsts/authorize", "", mustJSON(body), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	resp, err := f.doJSON(ctx, signedRequest{Method: http.MethodPost, URL: xstsAuthorize, Body: body, Headers: map[string]string{"Signature": sig}})
	if err != nil {
		return nil, onelauncher.AuthStep("xsts_authorize", err)
	}
	var parsed struct {
		Token         string `json:"Token"`
		DisplayClaims struct {
			Xui []struct {
				Uhs string `json:"uhs"`
			} `json:"xui"`
		} `json:"DisplayClaims"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, onelauncher.AuthStep("xsts_authorize", onelauncher.Wrap(onelauncher.KindSerde, err, "parse XstsAuthorize"))
	}
	uhs := ""
	if len(parsed.DisplayClaims.Xui) > 0 {
		uhs = parsed.DisplayClaims.Xui[0].Uhs
	}
	return &xstsResult{Token: parsed.Token, UHS: uhs}, nil
}

type mcTokenResult struct {
	AccessToken string
	ExpiresIn   int
}

func (r mcTokenResult) expiresAt() time.Time {
	if r.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	// Fall back to decoding the token's own exp claim; Mojang issues
	// the Minecraft access token as a JWT.
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(r.AccessToken, claims); err == nil {
		if exp, ok := claims["exp"].(float64); ok {
			return time.Unix(int64(exp), 0)
		}
	}
	return time.Now().Add(24 * time.Hour)
}

func (f *Flow) minecraftToken(ctx context.Context, xsts *xstsResult) (*mcTokenResult, error) {
	body := map[string]any{
		"identityToken": fmt.Sprintf("XBL3.0 x=%s;%s", xsts.UHS, xsts.Token),
	}
	resp, err := f.doJSON(ctx, signedRequest{Method: http.MethodPost, URL: mcLoginURL, Body: body})
	if err != nil {
		return nil, onelauncher.AuthStep("minecraft_token", err)
	}
	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, onelauncher.AuthStep("minecraft_token", onelauncher.Wrap(onelauncher.KindSerde, err, "parse MinecraftToken"))
	}
	return &mcTokenResult{AccessToken: parsed.AccessToken, ExpiresIn: parsed.ExpiresIn}, nil
}

func (f *Flow) minecraftEntitlements(ctx context.Context, accessToken string) error {
	resp, err := f.doJSON(ctx, signedRequest{
		Method:  http.MethodGet,
		URL:     mcEntitlements,
		Headers: map[string]string{"Authorization": "Bearer " + accessToken},
	})
	if err != nil {
		return onelauncher.AuthStep("minecraft_entitlements", err)
	}
	var parsed struct {
		Items []struct {
			Name string `json:"name"`
		} `json:"items"`
	}
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return onelauncher.AuthStep("minecraft_entitlements", onelauncher.Wrap(onelauncher.KindSerde, err, "parse entitlements"))
	}
	if len(parsed.Items) == 0 {
		return onelauncher.AuthStep("minecraft_entitlements", onelauncher.New(onelauncher.KindNotFound, "account does not own Minecraft"))
	}
	return nil
}

type minecraftProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (f *Flow) minecraftProfile(ctx context.Context, accessToken string) (*minecraftProfile, error) {
	resp, err := f.doJSON(ctx, signedRequest{
		Method:  http.MethodGet,
		URL:     mcProfileURL,
		Headers: map[string]string{"Authorization": "Bearer " + accessToken},
	})
	if err != nil {
		return nil, onelauncher.AuthStep("minecraft_profile", err)
	}
	var profile minecraftProfile
	if err := json.Unmarshal(resp.Body, &profile); err != nil {
		return nil, onelauncher.AuthStep("minecraft_profile", onelauncher.Wrap(onelauncher.KindSerde, err, "parse profile"))
	}
	return &profile, nil
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// dashifyUUID inserts hyphens into a 32-hex-character uuid, the form
// Mojang's profile endpoint returns.
func dashifyUUID(simple string) string {
	if len(simple) != 32 {
		return simple
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s", simple[0:8], simple[8:12], simple[12:16], simple[16:20], simple[20:32])
}
