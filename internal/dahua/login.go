package dahua

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

const clientType = "Web3.0"

// logoutTimeout caps the best-effort logout so a hung NVR cannot stall run
// teardown.
const logoutTimeout = 5 * time.Second

func md5Upper(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// ComputeHash derives the Dahua challenge response: two chained MD5 digests,
// each rendered as 32 uppercase hex characters. The protocol mandates MD5;
// this is not a password-storage hash.
func ComputeHash(user, pass, realm, random string) string {
	step1 := md5Upper(user + ":" + realm + ":" + pass)
	return md5Upper(user + ":" + random + ":" + step1)
}

type loginChallenge struct {
	Realm  string `json:"realm"`
	Random string `json:"random"`
}

// Login runs the two-step challenge/response against /RPC2_Login and returns
// the session id. The first step is retried once on timeout; all other
// failures surface immediately.
func (c *Client) Login(ctx context.Context, user, pass string) (string, error) {
	step1 := map[string]any{
		"method": "global.login",
		"params": map[string]any{
			"userName":   user,
			"password":   "",
			"clientType": clientType,
		},
		"id": 1,
	}

	env, err := c.post(ctx, "/RPC2_Login", step1)
	if err != nil && ErrorCode(err) == CodeTimeout {
		env, err = c.post(ctx, "/RPC2_Login", step1)
	}
	if err != nil {
		return "", err
	}

	var ch loginChallenge
	if len(env.Params) > 0 {
		// Parse errors fall through to the empty-field check below.
		_ = json.Unmarshal(env.Params, &ch)
	}
	sid := string(env.Session)
	if ch.Realm == "" || ch.Random == "" || sid == "" {
		return "", newError(CodeLoginRejected, "malformed login challenge from %s: not a Dahua device or wrong port", c.base)
	}

	env, err = c.post(ctx, "/RPC2_Login", map[string]any{
		"method": "global.login",
		"params": map[string]any{
			"userName":      user,
			"password":      ComputeHash(user, pass, ch.Realm, ch.Random),
			"clientType":    clientType,
			"authorityType": "Default",
		},
		"id":      2,
		"session": sid,
	})
	if err != nil {
		return "", err
	}
	if !env.Result {
		e := newError(CodeLoginRejected, "login rejected by NVR at %s: wrong credentials or user locked", c.base)
		if env.Error != nil {
			e.DeviceCode = env.Error.Code
		}
		return "", e
	}
	return sid, nil
}

// Logout closes the NVR session. Best effort on every exit path, including
// cancelled runs, so it detaches from the parent's cancellation.
func (c *Client) Logout(ctx context.Context, sid string) {
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
	defer cancel()
	_, _ = c.post(lctx, "/RPC2", map[string]any{
		"method":  "global.logout",
		"params":  map[string]any{},
		"id":      99,
		"session": sid,
	})
}
