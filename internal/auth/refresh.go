package auth

import (
	"context"
	"errors"
	"net"

	"golang.org/x/oauth2"

	"github.com/Polyfrost/onelauncher-core/internal/onelauncher"
)

// Refresh re-runs OAuth-refresh plus SisuAuthorize, XstsAuthorize, and
// MinecraftToken for a stored credential whose token has expired, per
// spec §4.J. On a connect/timeout failure it returns the stale
// credential rather than erasing it, per spec §8 scenario 6 and §7:
// "lets offline users still launch".
func (f *Flow) Refresh(ctx context.Context, uuid string) (Credentials, error) {
	stale, err := f.store.Get(uuid)
	if err != nil {
		return Credentials{}, err
	}
	if !stale.Expired() {
		return stale, nil
	}

	refreshed, err := f.doRefresh(ctx, stale)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, onelauncher.New(onelauncher.KindNetwork, "")) || errors.Is(err, onelauncher.Cancelled) || errors.As(err, &netErr) {
			return stale, nil
		}
		return Credentials{}, err
	}
	return refreshed, nil
}

func (f *Flow) doRefresh(ctx context.Context, stale Credentials) (Credentials, error) {
	kp, err := f.ensureDeviceKeyAndToken(ctx)
	if err != nil {
		return Credentials{}, err
	}

	tokenSource := f.oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: stale.RefreshToken})
	oauthTok, err := tokenSource.Token()
	if err != nil {
		return Credentials{}, onelauncher.AuthStep("oauth_refresh", err)
	}

	sisuSession, err := f.sisuAuthenticate(ctx, kp)
	if err != nil {
		return Credentials{}, err
	}
	authz, err := f.sisuAuthorize(ctx, kp, oauthTok.AccessToken, sisuSession.SessionID)
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

	refreshToken := oauthTok.RefreshToken
	if refreshToken == "" {
		refreshToken = stale.RefreshToken
	}

	cred := Credentials{
		UUID:         stale.UUID,
		Username:     stale.Username,
		AccessToken:  mcToken.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    mcToken.expiresAt(),
	}
	if err := f.store.Put(cred); err != nil {
		return Credentials{}, err
	}
	return cred, nil
}

// DefaultUserRefreshed returns the default user's credential, running
// Refresh if its token has expired, per spec §6's get_default_user /
// "whichever account selects for launch" contract.
func (f *Flow) DefaultUserRefreshed(ctx context.Context) (Credentials, error) {
	def, err := f.store.DefaultUser()
	if err != nil {
		return Credentials{}, err
	}
	return f.Refresh(ctx, def.UUID)
}
