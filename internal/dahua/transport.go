package dahua

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"
)

// DefaultTimeout is generous because many NVRs sit behind site-to-site VPNs.
const DefaultTimeout = 15 * time.Second

// Client speaks Dahua's JSON-over-HTTP RPC2 protocol against one base URL.
// It holds its own http.Client so every sync run gets a private connection
// pool.
type Client struct {
	base string
	http *http.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}
}

// flexString tolerates firmware that returns the session id as a JSON number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

type deviceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// envelope is the RPC2 response frame: {result, params, session?, error?}.
type envelope struct {
	Result  bool            `json:"result"`
	Params  json.RawMessage `json:"params"`
	Session flexString      `json:"session"`
	Error   *deviceError    `json:"error"`
}

// post sends one RPC body and decodes the envelope. Errors are classified
// into the CONNECT / TIMEOUT / HTTP_STATUS / JSON_PARSE taxonomy. No retry
// policy lives here; the login flow retries selectively.
func (c *Client) post(ctx context.Context, path string, body map[string]any) (*envelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, newError(CodeRPCError, "marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return nil, newError(CodeConnect, "build request for %s: %v", c.base, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newError(CodeHTTPStatus, "nvr at %s returned HTTP "+strconv.Itoa(resp.StatusCode), c.base)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, newError(CodeJSONParse, "nvr at %s returned invalid JSON: %v", c.base, err)
	}
	return &env, nil
}

func classifyTransport(base string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(CodeTimeout, "no response from %s within timeout", base)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return newError(CodeTimeout, "no response from %s within timeout", base)
	}
	return newError(CodeConnect, "cannot connect to %s: check IP, port and network/VPN access", base)
}
