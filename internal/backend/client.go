package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/launcher/internal/infrastructure/config"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/launcher/internal/shared/id"
	"github.com/GriffinCanCode/launcher/internal/shared/types"
)

// RequestIDHeader correlates client and backend logs
const RequestIDHeader = "X-Request-ID"

// envelope is the response shape of every command
type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Client invokes backend commands over HTTP
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *zap.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer
}

// NewClient creates a backend client from configuration
func NewClient(cfg config.BackendConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Retries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = time.Second
	retryClient.Logger = nil
	retryClient.CheckRetry = retryConnectionErrors

	restyClient := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "Launcher-Core/1.0").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetTransport(retryClient.StandardClient().Transport)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS)
	}

	breaker := resilience.New("backend", resilience.Settings{
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		// command rejections mean the backend is healthy
		IsSuccessful: func(err error) bool { return err == nil || IsCommandError(err) },
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		resty:   restyClient,
		limiter: limiter,
		breaker: breaker,
		logger:  logger,
	}
}

// WithMetrics adds metrics tracking to the client
func (c *Client) WithMetrics(metrics *monitoring.Metrics) *Client {
	c.metrics = metrics
	return c
}

// WithTracer opens a span per command and forwards trace headers
func (c *Client) WithTracer(tracer *tracing.Tracer) *Client {
	c.tracer = tracer
	return c
}

// retryConnectionErrors retries only when no response was received.
// Commands are not idempotent, so a 5xx is never replayed.
func retryConnectionErrors(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return err != nil && resp == nil, nil
}

// invoke calls command with args and decodes the envelope's data into out
func (c *Client) invoke(ctx context.Context, command string, args any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit error: %w", err)
	}

	span, ctx := c.tracer.StartSpan(ctx, command)
	timer := monitoring.NewTimer(c.metrics, command)
	err := c.breaker.Do(func() error {
		return c.call(ctx, command, args, out)
	})
	c.tracer.End(span, err)

	switch {
	case err == nil:
		timer.Stop("ok")
	case IsCommandError(err):
		timer.Stop("rejected")
	default:
		timer.Stop("error")
		c.logger.Warn("Backend call failed", zap.String("command", command), zap.Error(err))
	}
	return err
}

func (c *Client) call(ctx context.Context, command string, args any, out any) error {
	if args == nil {
		args = struct{}{}
	}

	req := c.resty.R().
		SetContext(ctx).
		SetHeader(RequestIDHeader, id.NewRequestID().String()).
		SetBody(args)
	tracing.Inject(ctx, func(key, value string) { req.SetHeader(key, value) })

	resp, err := req.Post("/invoke/" + command)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransport, command, err)
	}

	var env envelope
	if err := sonic.Unmarshal(resp.Body(), &env); err != nil {
		if resp.IsError() {
			return fmt.Errorf("%w: %s: http %d", ErrTransport, command, resp.StatusCode())
		}
		return fmt.Errorf("decode %s response: %w", command, err)
	}

	if !env.OK {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("http %d", resp.StatusCode())
		}
		return &Error{Command: command, Message: msg}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", command, err)
	}
	return nil
}

// GetInstances lists installed instances
func (c *Client) GetInstances(ctx context.Context) ([]types.Instance, error) {
	var instances []types.Instance
	if err := c.invoke(ctx, CmdGetInstances, nil, &instances); err != nil {
		return nil, err
	}
	return instances, nil
}

// LaunchInstance starts an instance
func (c *Client) LaunchInstance(ctx context.Context, name string) error {
	return c.invoke(ctx, CmdLaunchInstance, map[string]string{"name": name}, nil)
}

// KillInstance asks the backend to stop a running instance
func (c *Client) KillInstance(ctx context.Context, name string) error {
	return c.invoke(ctx, CmdKillInstance, map[string]string{"name": name}, nil)
}

// DuplicateInstance copies source into a new instance named target
func (c *Client) DuplicateInstance(ctx context.Context, source, target string) error {
	return c.invoke(ctx, CmdDuplicateInstance, map[string]string{"source": source, "new_name": target}, nil)
}

// CreateInstance creates a new instance
func (c *Client) CreateInstance(ctx context.Context, req types.CreateInstanceRequest) error {
	return c.invoke(ctx, CmdCreateInstance, req, nil)
}

// GetAccounts lists signed-in accounts
func (c *Client) GetAccounts(ctx context.Context) ([]types.Account, error) {
	var accounts []types.Account
	if err := c.invoke(ctx, CmdGetAccounts, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// SwitchAccount makes uuid the active account
func (c *Client) SwitchAccount(ctx context.Context, uuid string) error {
	return c.invoke(ctx, CmdSwitchAccount, map[string]string{"uuid": uuid}, nil)
}

// AddAccount runs the interactive sign-in flow
func (c *Client) AddAccount(ctx context.Context) error {
	return c.invoke(ctx, CmdAddAccount, nil, nil)
}

// RemoveAccount signs an account out
func (c *Client) RemoveAccount(ctx context.Context, uuid string) error {
	return c.invoke(ctx, CmdRemoveAccount, map[string]string{"uuid": uuid}, nil)
}

// RegisterUserInFriendsSystem registers the active account with the friends service
func (c *Client) RegisterUserInFriendsSystem(ctx context.Context) error {
	return c.invoke(ctx, CmdRegisterFriends, nil, nil)
}

// UpdateUserStatus publishes the active account's presence
func (c *Client) UpdateUserStatus(ctx context.Context, status types.PresenceStatus, instance *string) error {
	args := struct {
		Status          types.PresenceStatus `json:"status"`
		CurrentInstance *string              `json:"current_instance"`
	}{status, instance}
	return c.invoke(ctx, CmdUpdateUserStatus, args, nil)
}

// GetFriends lists the active account's friends
func (c *Client) GetFriends(ctx context.Context) ([]types.Friend, error) {
	var friends []types.Friend
	if err := c.invoke(ctx, CmdGetFriends, nil, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

// GetFriendRequests lists pending incoming friend requests
func (c *Client) GetFriendRequests(ctx context.Context) ([]types.FriendRequest, error) {
	var requests []types.FriendRequest
	if err := c.invoke(ctx, CmdGetFriendRequests, nil, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// SendFriendRequest sends a friend request to username
func (c *Client) SendFriendRequest(ctx context.Context, username string) error {
	return c.invoke(ctx, CmdSendFriendRequest, map[string]string{"username": username}, nil)
}

// AcceptFriendRequest accepts a pending request
func (c *Client) AcceptFriendRequest(ctx context.Context, id string) error {
	return c.invoke(ctx, CmdAcceptFriendRequest, map[string]string{"request_id": id}, nil)
}

// RejectFriendRequest rejects a pending request
func (c *Client) RejectFriendRequest(ctx context.Context, id string) error {
	return c.invoke(ctx, CmdRejectFriendRequest, map[string]string{"request_id": id}, nil)
}

// RemoveFriend removes a friend
func (c *Client) RemoveFriend(ctx context.Context, uuid string) error {
	return c.invoke(ctx, CmdRemoveFriend, map[string]string{"friend_uuid": uuid}, nil)
}

var _ Commands = (*Client)(nil)
