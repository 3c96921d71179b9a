package live

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/glizzus/livesfx/internal/util"
	"github.com/tidwall/gjson"
)

const maxResponseBytes = 1 << 20

// HTTPClient is the subset of *http.Client the API client uses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// API is the open-platform game lifecycle.
type API interface {
	Start(ctx context.Context, code string) (*StartInfo, error)
	Heartbeat(ctx context.Context, gameID string) error
	End(ctx context.Context, gameID string) error
}

// StartInfo is what a started game needs to open its connection.
type StartInfo struct {
	GameID   string
	Links    []string
	AuthBody string
}

// Endpoint returns the first non-empty websocket link.
func (i *StartInfo) Endpoint() (string, error) {
	link, ok := util.FindFirst(i.Links, func(l string) bool {
		return strings.TrimSpace(l) != ""
	})
	if !ok {
		return "", ErrNoEndpoint
	}
	return link, nil
}

// Client calls the open-platform HTTP API.
type Client struct {
	host   string
	appID  int64
	signer *Signer
	http   HTTPClient
}

var _ API = (*Client)(nil)

func NewClient(host string, appID int64, signer *Signer, httpClient HTTPClient) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		host:   strings.TrimRight(host, "/"),
		appID:  appID,
		signer: signer,
		http:   httpClient,
	}
}

type startRequest struct {
	Code  string `json:"code"`
	AppID int64  `json:"app_id"`
}

type heartbeatRequest struct {
	GameID string `json:"game_id"`
}

type endRequest struct {
	GameID string `json:"game_id"`
	AppID  int64  `json:"app_id"`
}

func (c *Client) Start(ctx context.Context, code string) (*StartInfo, error) {
	data, err := c.post(ctx, "/v2/app/start", startRequest{Code: code, AppID: c.appID})
	if err != nil {
		return nil, err
	}

	info := &StartInfo{
		GameID:   data.Get("game_info.game_id").String(),
		AuthBody: data.Get("websocket_info.auth_body").String(),
	}
	data.Get("websocket_info.wss_link").ForEach(func(_, link gjson.Result) bool {
		info.Links = append(info.Links, link.String())
		return true
	})
	return info, nil
}

func (c *Client) Heartbeat(ctx context.Context, gameID string) error {
	_, err := c.post(ctx, "/v2/app/heartbeat", heartbeatRequest{GameID: gameID})
	return err
}

func (c *Client) End(ctx context.Context, gameID string) error {
	_, err := c.post(ctx, "/v2/app/end", endRequest{GameID: gameID, AppID: c.appID})
	return err
}

// post sends a signed JSON request and returns the data field of the
// response envelope.
func (c *Client) post(ctx context.Context, path string, payload any) (gjson.Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to encode %s request: %w", path, err)
	}

	header, err := c.signer.Headers(body)
	if err != nil {
		return gjson.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header = header

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, &TransportError{Op: "POST " + path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, &TransportError{Op: "POST " + path, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, &TransportError{
			Op:  "POST " + path,
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, &TransportError{Op: "POST " + path, Err: fmt.Errorf("response is not JSON")}
	}

	envelope := gjson.ParseBytes(raw)
	if code := envelope.Get("code").Int(); code != 0 {
		return gjson.Result{}, &APIError{Path: path, Code: code, Message: envelope.Get("message").String()}
	}
	return envelope.Get("data"), nil
}
