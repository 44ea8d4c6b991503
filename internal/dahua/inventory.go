package dahua

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Camera is one normalized row of the NVR's RemoteDevice table. Status is
// advisory (the NVR's own view); authoritative liveness comes from the TCP
// prober.
type Camera struct {
	Channel int    `json:"channel"`
	Name    string `json:"name"`
	IP      string `json:"ip"`
	MAC     string `json:"mac"`
	Model   string `json:"model"`
	Serial  string `json:"serial"`
	Status  string `json:"status"`
}

// ModelRule infers a camera model when the NVR leaves DeviceType empty.
// First matching rule wins; empty prefix or substring matches everything.
type ModelRule struct {
	SerialPrefix    string
	VersionContains string
	Model           string
}

var modelRules = []ModelRule{
	{SerialPrefix: "9B000AAPAG", VersionContains: "2.800.0000000.8.R", Model: "DH-IPC-HDW1239T1-A-LED-S5"},
	{SerialPrefix: "9F0E033PAG", VersionContains: "", Model: "DH-IPC-HFW2441S-S"},
}

func inferModel(serial, version string) string {
	for _, r := range modelRules {
		if r.SerialPrefix != "" && !strings.HasPrefix(serial, r.SerialPrefix) {
			continue
		}
		if r.VersionContains != "" && !strings.Contains(version, r.VersionContains) {
			continue
		}
		return r.Model
	}
	return ""
}

var infoKeyRe = regexp.MustCompile(`INFO_(\d+)`)

// remoteDevice is one table entry. ConnectionState stays raw because firmware
// returns it as bool, string or number depending on version.
type remoteDevice struct {
	Enable          bool            `json:"Enable"`
	Address         string          `json:"Address"`
	Mac             string          `json:"Mac"`
	DeviceType      string          `json:"DeviceType"`
	SerialNo        string          `json:"SerialNo"`
	Name            string          `json:"Name"`
	Version         string          `json:"Version"`
	ConnectionState json.RawMessage `json:"ConnectionState"`
	VideoInputs     []struct {
		Name string `json:"Name"`
	} `json:"VideoInputs"`
}

// parseConnectionState reports whether a raw ConnectionState value means
// online. Missing values fall back to the Enable flag.
func parseConnectionState(raw json.RawMessage, enable bool) bool {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return enable
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "connected", "1":
			return true
		}
		return false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return false
}

// getConfig fetches one configManager table through the authenticated session.
func (c *Client) getConfig(ctx context.Context, sid, name string, id int) (*envelope, error) {
	return c.post(ctx, "/RPC2", map[string]any{
		"method":  "configManager.getConfig",
		"params":  map[string]any{"name": name},
		"id":      id,
		"session": sid,
	})
}

// tableOf unwraps params.table; some firmware inlines the entries directly
// under params.
func tableOf(params json.RawMessage) map[string]json.RawMessage {
	var wrapper struct {
		Table json.RawMessage `json:"table"`
	}
	raw := params
	if err := json.Unmarshal(params, &wrapper); err == nil && len(wrapper.Table) > 0 {
		raw = wrapper.Table
	}
	var table map[string]json.RawMessage
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil
	}
	return table
}

// FetchCameras reads the RemoteDevice table and normalizes every enabled
// entry that carries an address. Returned list is sorted by channel.
func (c *Client) FetchCameras(ctx context.Context, sid string) ([]Camera, error) {
	env, err := c.getConfig(ctx, sid, "RemoteDevice", 3)
	if err != nil {
		return nil, err
	}
	if !env.Result || len(env.Params) == 0 {
		e := newError(CodeRPCError, "RemoteDevice config unavailable on %s", c.base)
		if env.Error != nil {
			e.DeviceCode = env.Error.Code
		}
		return nil, e
	}

	var cams []Camera
	for key, raw := range tableOf(env.Params) {
		var dev remoteDevice
		if err := json.Unmarshal(raw, &dev); err != nil {
			continue
		}
		if dev.Address == "" || !dev.Enable {
			continue
		}

		channel := 0
		if m := infoKeyRe.FindStringSubmatch(key); m != nil {
			n, _ := strconv.Atoi(m[1])
			channel = n + 1
		}

		// SerialNo is empty on some firmware; the device Name doubles as the
		// identifier there. Known quirk, reproduced on purpose.
		serial := dev.SerialNo
		if serial == "" {
			serial = dev.Name
		}
		model := dev.DeviceType
		if model == "" {
			model = inferModel(serial, dev.Version)
		}
		name := ""
		if len(dev.VideoInputs) > 0 {
			name = dev.VideoInputs[0].Name
		}
		status := "offline"
		if parseConnectionState(dev.ConnectionState, dev.Enable) {
			status = "online"
		}

		cams = append(cams, Camera{
			Channel: channel,
			Name:    name,
			IP:      dev.Address,
			MAC:     dev.Mac,
			Model:   model,
			Serial:  serial,
			Status:  status,
		})
	}

	sort.Slice(cams, func(i, j int) bool { return cams[i].Channel < cams[j].Channel })
	return cams, nil
}

// ChannelStates re-reads per-channel connection state. The ChannelTitle call
// keeps the RPC id sequence aligned with what the web client sends; its
// payload is not used.
func (c *Client) ChannelStates(ctx context.Context, sid string) (map[int]string, error) {
	_, _ = c.getConfig(ctx, sid, "ChannelTitle", 4)

	env, err := c.getConfig(ctx, sid, "RemoteDevice", 5)
	if err != nil {
		return nil, err
	}
	if !env.Result || len(env.Params) == 0 {
		return nil, newError(CodeRPCError, "RemoteDevice refresh unavailable on %s", c.base)
	}

	states := make(map[int]string)
	for key, raw := range tableOf(env.Params) {
		m := infoKeyRe.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		var dev remoteDevice
		if err := json.Unmarshal(raw, &dev); err != nil {
			continue
		}
		if parseConnectionState(dev.ConnectionState, dev.Enable) {
			states[n+1] = "online"
		} else {
			states[n+1] = "offline"
		}
	}
	return states, nil
}

// Inventory is the full extraction flow: login, RemoteDevice table, state
// refresh, best-effort logout. State refresh failures are swallowed; the
// advisory status from the first read stands in that case.
func (c *Client) Inventory(ctx context.Context, user, pass string) ([]Camera, error) {
	sid, err := c.Login(ctx, user, pass)
	if err != nil {
		return nil, err
	}
	defer c.Logout(ctx, sid)

	cams, err := c.FetchCameras(ctx, sid)
	if err != nil {
		return nil, err
	}
	if states, err := c.ChannelStates(ctx, sid); err == nil {
		for i := range cams {
			if st, ok := states[cams[i].Channel]; ok {
				cams[i].Status = st
			}
		}
	}
	return cams, nil
}
