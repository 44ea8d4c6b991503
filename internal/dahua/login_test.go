package dahua

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser  = "admin"
	testPass  = "donbosco2024"
	testRealm = "Login to 4E03A9FPAG00042"
	testRand  = "1778261500"
	testSID   = "1462749002"
)

type rpcRequest struct {
	Method string `json:"method"`
	Params struct {
		UserName string `json:"userName"`
		Password string `json:"password"`
		Name     string `json:"name"`
	} `json:"params"`
	ID      int    `json:"id"`
	Session string `json:"session"`
}

// fakeNVRHandler speaks the two-step login plus configManager reads. With
// configFails set, RemoteDevice reads answer result:false like firmware with
// the web service half-up.
func fakeNVRHandler(t *testing.T, table map[string]any, configFails bool) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/RPC2_Login" && req.Params.Password == "":
			fmt.Fprintf(w, `{"result":false,"params":{"realm":%q,"random":%q,"encryption":"Default"},"session":%q,"error":{"code":268632079,"message":"Component error"}}`,
				testRealm, testRand, testSID)
		case r.URL.Path == "/RPC2_Login":
			if req.Params.Password == ComputeHash(testUser, testPass, testRealm, testRand) && req.Session == testSID {
				fmt.Fprintf(w, `{"result":true,"session":%q}`, testSID)
			} else {
				fmt.Fprint(w, `{"result":false,"error":{"code":268632085,"message":"Password not valid"}}`)
			}
		case req.Method == "configManager.getConfig" && req.Params.Name == "RemoteDevice":
			if configFails {
				fmt.Fprint(w, `{"result":false,"error":{"code":268959743,"message":"Invalid request"}}`)
				return
			}
			resp := map[string]any{
				"result":  true,
				"params":  map[string]any{"table": table},
				"session": testSID,
			}
			_ = json.NewEncoder(w).Encode(resp)
		case req.Method == "configManager.getConfig":
			fmt.Fprint(w, `{"result":true,"params":{"table":{}}}`)
		case req.Method == "global.logout":
			fmt.Fprint(w, `{"result":true}`)
		default:
			fmt.Fprint(w, `{"result":false,"error":{"code":268632064,"message":"Method not found"}}`)
		}
	}
}

// newFakeNVR serves the two-step login plus a RemoteDevice table.
func newFakeNVR(t *testing.T, table map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(fakeNVRHandler(t, table, false))
}

func TestLogin_Success(t *testing.T) {
	ts := newFakeNVR(t, nil)
	defer ts.Close()

	c := NewClient(ts.URL, 0)
	sid, err := c.Login(context.Background(), testUser, testPass)
	require.NoError(t, err)
	assert.Equal(t, testSID, sid)
}

func TestLogin_WrongPassword(t *testing.T) {
	ts := newFakeNVR(t, nil)
	defer ts.Close()

	c := NewClient(ts.URL, 0)
	_, err := c.Login(context.Background(), testUser, "wrong")
	require.Error(t, err)
	assert.Equal(t, CodeLoginRejected, ErrorCode(err))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 268632085, e.DeviceCode)
}

func TestLogin_NotADahuaDevice(t *testing.T) {
	// Well-formed JSON but no realm/random/session: some other web server.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, 0)
	_, err := c.Login(context.Background(), testUser, testPass)
	require.Error(t, err)
	assert.Equal(t, CodeLoginRejected, ErrorCode(err))
	assert.Contains(t, err.Error(), "not a Dahua device")
}

func TestLogin_TimeoutRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(400 * time.Millisecond)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, 50*time.Millisecond)
	_, err := c.Login(context.Background(), testUser, testPass)
	require.Error(t, err)
	assert.Equal(t, CodeTimeout, ErrorCode(err))
	assert.Equal(t, int32(2), calls.Load(), "timeout should be retried exactly once")
}

func TestLogin_Connect(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // nothing listening anymore

	c := NewClient(ts.URL, 0)
	_, err := c.Login(context.Background(), testUser, testPass)
	require.Error(t, err)
	assert.Equal(t, CodeConnect, ErrorCode(err))
}

func TestPost_HTTPStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, 0)
	_, err := c.Login(context.Background(), testUser, testPass)
	require.Error(t, err)
	assert.Equal(t, CodeHTTPStatus, ErrorCode(err))
}

func TestPost_JSONParse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not an rpc endpoint</html>")
	}))
	defer ts.Close()

	c := NewClient(ts.URL, 0)
	_, err := c.Login(context.Background(), testUser, testPass)
	require.Error(t, err)
	assert.Equal(t, CodeJSONParse, ErrorCode(err))
}

func TestComputeHash(t *testing.T) {
	h := ComputeHash(testUser, testPass, testRealm, testRand)
	assert.Regexp(t, regexp.MustCompile(`^[0-9A-F]{32}$`), h)

	// Deterministic.
	assert.Equal(t, h, ComputeHash(testUser, testPass, testRealm, testRand))

	// Any argument change changes the digest.
	assert.NotEqual(t, h, ComputeHash("other", testPass, testRealm, testRand))
	assert.NotEqual(t, h, ComputeHash(testUser, "other", testRealm, testRand))
	assert.NotEqual(t, h, ComputeHash(testUser, testPass, "other", testRand))
	assert.NotEqual(t, h, ComputeHash(testUser, testPass, testRealm, "other"))
}
