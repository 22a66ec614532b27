// Package client provides the API client used by latticectl.
//
// LatticeAPIClient wraps a Resty client configured with timeouts, retry on
// connection failures, and request logging routed through the lattice
// logger. Every latticed endpoint answers with the same envelope:
//
//	{"status": "success", "data": ..., "count": n}
//	{"status": "error", "message": "..."}
//
// Responses are decoded straight into the typed structs below, which mirror
// the daemon's JSON without importing the server packages.
package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/concave-dev/lattice/cmd/latticectl/config"
	"github.com/concave-dev/lattice/cmd/latticectl/utils"
	"github.com/concave-dev/lattice/internal/logging"
	"github.com/go-resty/resty/v2"
)

// APIResponse is the success envelope returned by latticed.
type APIResponse[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
	Count  int    `json:"count,omitempty"`
}

// APIError is the error envelope returned by latticed.
type APIError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API request failed with status %d", e.Code)
	}
	return fmt.Sprintf("API request failed with status %d: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// IsConflict reports whether err is a 409 from the API.
func IsConflict(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusConflict
}

// Node is one cluster member as seen by the queried daemon.
type Node struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	State     string    `json:"state"`
	Connected bool      `json:"connected"`
	Local     bool      `json:"local"`
	Departed  bool      `json:"departed"`
	LastSeen  time.Time `json:"lastSeen"`
	Leads     []string  `json:"leads"`
}

// GetID returns the node id for NodeLike interface compliance.
func (n Node) GetID() string {
	return n.ID
}

// Stream is one open cluster connection.
type Stream struct {
	Node         string    `json:"node"`
	Bound        bool      `json:"bound"`
	LocalAddr    string    `json:"localAddr"`
	RemoteAddr   string    `json:"remoteAddr"`
	Outbound     bool      `json:"outbound"`
	Worker       int       `json:"worker"`
	Created      time.Time `json:"created"`
	LastActivity time.Time `json:"lastActivity"`
}

// ControllerNode is a node identity as reported in cluster info.
type ControllerNode struct {
	ID    string `json:"id"`
	IP    string `json:"ip"`
	Port  int    `json:"port"`
	State string `json:"state"`
}

// ClusterStatus holds aggregate counts for the queried daemon's view.
type ClusterStatus struct {
	TotalNodes   int            `json:"totalNodes"`
	NodesByState map[string]int `json:"nodesByState"`
	Streams      int            `json:"streams"`
	BoundStreams int            `json:"boundStreams"`
	KnownLeaders int            `json:"knownLeaders"`
}

// ClusterInfo is the cluster overview served by /cluster/info.
type ClusterInfo struct {
	Version     string         `json:"version"`
	LocalNode   ControllerNode `json:"localNode"`
	Status      ClusterStatus  `json:"status"`
	WorkerLoads []int          `json:"workerLoads"`
	Subjects    []string       `json:"subjects"`
	OwnedPaths  []string       `json:"ownedPaths"`
	Contests    []string       `json:"contests"`
	Uptime      time.Duration  `json:"uptime"`
}

// Health is the daemon health report.
type Health struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	Node      string    `json:"node"`
	Peers     int       `json:"peers"`
}

// Leader is one leader board entry. Leader is empty for a path that only
// has candidates.
type Leader struct {
	Path       string      `json:"path"`
	Leader     string      `json:"leader,omitempty"`
	Term       uint64      `json:"term"`
	Elected    *time.Time  `json:"elected,omitempty"`
	Renewed    *time.Time  `json:"renewed,omitempty"`
	Local      bool        `json:"local"`
	Contesting bool        `json:"contesting"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Candidate is a node running for a path, oldest first in a Leader.
type Candidate struct {
	Node  string    `json:"node"`
	Since time.Time `json:"since"`
}

// Candidacy is the result of a run or withdraw request.
type Candidacy struct {
	Path       string `json:"path"`
	Contesting bool   `json:"contesting"`
}

// LatticeAPIClient talks to one latticed API server.
type LatticeAPIClient struct {
	client  *resty.Client
	baseURL string
}

// NewLatticeAPIClient returns a client for the API at apiAddr (host:port).
func NewLatticeAPIClient(apiAddr string, timeout int) *LatticeAPIClient {
	client := resty.New()

	baseURL := fmt.Sprintf("http://%s/api/v1", apiAddr)

	// Route Resty's internal logging through our structured logging system
	client.SetLogger(utils.RestyLogger{})

	client.
		SetTimeout(time.Duration(timeout)*time.Second).
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", fmt.Sprintf("latticectl/%s", config.Version))

	// Only retry on connection errors, not HTTP errors
	client.
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil
		})

	client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		logging.Debug("Making API request: %s %s", req.Method, req.URL)
		return nil
	})

	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logging.Debug("API response: %d %s (took %v)",
			resp.StatusCode(), resp.Status(), resp.Time())
		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		logging.Debug("API request failed: %s %s - %v", req.Method, req.URL, err)
	})

	return &LatticeAPIClient{
		client:  client,
		baseURL: baseURL,
	}
}

// CreateAPIClient returns a client for the configured --api address.
func CreateAPIClient() *LatticeAPIClient {
	return NewLatticeAPIClient(config.Global.APIAddr, config.Global.Timeout)
}

// do sends a request and decodes the success envelope's data into T.
func do[T any](api *LatticeAPIClient, method, path string, query map[string]string) (T, int, error) {
	var response APIResponse[T]
	var apiErr APIError

	req := api.client.R().
		SetResult(&response).
		SetError(&apiErr)
	for k, v := range query {
		if v != "" {
			req.SetQueryParam(k, v)
		}
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		var zero T
		return zero, 0, fmt.Errorf("failed to connect to API server at %s: %w", api.baseURL, err)
	}
	if resp.IsError() {
		var zero T
		msg := apiErr.Message
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return zero, 0, &StatusError{Code: resp.StatusCode(), Message: msg}
	}
	return response.Data, response.Count, nil
}

// leadershipPath builds the URL for a leadership path, escaping each segment.
func leadershipPath(path string) string {
	return "/leadership/" + escapePath(path)
}

func stepdownPath(path string) string {
	return "/stepdown/" + escapePath(path)
}

func escapePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// GetHealth fetches the daemon health report. The endpoint does not use the
// envelope.
func (api *LatticeAPIClient) GetHealth() (*Health, error) {
	var health Health
	resp, err := api.client.R().SetResult(&health).Get("/health")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to API server at %s: %w", api.baseURL, err)
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	}
	return &health, nil
}

// GetNodes lists cluster nodes, optionally filtered by state.
func (api *LatticeAPIClient) GetNodes(state string) ([]Node, error) {
	nodes, _, err := do[[]Node](api, resty.MethodGet, "/cluster/nodes", map[string]string{"state": state})
	return nodes, err
}

// GetNode fetches one node by exact id.
func (api *LatticeAPIClient) GetNode(id string) (*Node, error) {
	node, _, err := do[Node](api, resty.MethodGet, "/cluster/nodes/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// GetStreams lists open streams. outbound is "", "true" or "false".
func (api *LatticeAPIClient) GetStreams(outbound string) ([]Stream, error) {
	streams, _, err := do[[]Stream](api, resty.MethodGet, "/cluster/streams", map[string]string{"outbound": outbound})
	return streams, err
}

// GetClusterInfo fetches the cluster overview.
func (api *LatticeAPIClient) GetClusterInfo() (*ClusterInfo, error) {
	info, _, err := do[ClusterInfo](api, resty.MethodGet, "/cluster/info", nil)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// GetLeaders lists the leader board, optionally only paths led by leader.
func (api *LatticeAPIClient) GetLeaders(leader string) ([]Leader, error) {
	leaders, _, err := do[[]Leader](api, resty.MethodGet, "/leadership", map[string]string{"leader": leader})
	return leaders, err
}

// GetLeader fetches the leader board entry for path.
func (api *LatticeAPIClient) GetLeader(path string) (*Leader, error) {
	lead, _, err := do[Leader](api, resty.MethodGet, leadershipPath(path), nil)
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// RunForLeadership asks the daemon to contest path.
func (api *LatticeAPIClient) RunForLeadership(path string) (*Candidacy, error) {
	c, _, err := do[Candidacy](api, resty.MethodPost, leadershipPath(path), nil)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Withdraw asks the daemon to stop contesting path.
func (api *LatticeAPIClient) Withdraw(path string) (*Candidacy, error) {
	c, _, err := do[Candidacy](api, resty.MethodDelete, leadershipPath(path), nil)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Stepdown asks the daemon to give up path while staying a candidate.
func (api *LatticeAPIClient) Stepdown(path string) (*Candidacy, error) {
	c, _, err := do[Candidacy](api, resty.MethodPost, stepdownPath(path), nil)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
