package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/launcher/internal/domain/launch"
	"github.com/GriffinCanCode/launcher/internal/domain/orchestrator"
	"github.com/GriffinCanCode/launcher/internal/shared/types"
)

// Facade is the slice of the orchestrator the handlers drive
type Facade interface {
	Snapshot() orchestrator.State
	Policy() launch.Policy

	RequestLaunch(ctx context.Context, name string) error
	RequestKill(ctx context.Context, name string) error
	RefreshInstances(ctx context.Context) error
	RequestDuplicate(ctx context.Context, source, target string) error
	RequestCreate(ctx context.Context, req types.CreateInstanceRequest) error
	DismissTask(target string) error
	DismissAlert()

	SwitchAccount(ctx context.Context, uuid string) error
	AddAccount(ctx context.Context) error
	RemoveAccount(ctx context.Context, uuid string) error
	OpenAccountPicker()
	CloseAccountPicker()

	SendFriendRequest(ctx context.Context, username string) error
	AcceptRequest(ctx context.Context, id string) error
	RejectRequest(ctx context.Context, id string) error
	StageFriendRemoval(uuid, username string)
	ConfirmFriendRemoval(ctx context.Context) error
	CancelFriendRemoval()
	OpenAddFriendPanel()
	CloseAddFriendPanel()
}

// Handlers contains all view API handlers
type Handlers struct {
	orch   Facade
	logger *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(orch Facade, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{orch: orch, logger: logger}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/state", h.State)

	instances := r.Group("/instances")
	instances.POST("", h.CreateInstance)
	instances.POST("/refresh", h.RefreshInstances)
	instances.POST("/:name/launch", h.LaunchInstance)
	instances.POST("/:name/kill", h.KillInstance)
	instances.POST("/:name/duplicate", h.DuplicateInstance)

	r.DELETE("/tasks/:target", h.DismissTask)
	r.DELETE("/alert", h.DismissAlert)

	accounts := r.Group("/accounts")
	accounts.POST("", h.AddAccount)
	accounts.POST("/:uuid/switch", h.SwitchAccount)
	accounts.DELETE("/:uuid", h.RemoveAccount)
	accounts.PUT("/picker", h.SetAccountPicker)

	friends := r.Group("/friends")
	friends.POST("/requests", h.SendFriendRequest)
	friends.POST("/requests/:id/accept", h.AcceptRequest)
	friends.POST("/requests/:id/reject", h.RejectRequest)
	friends.POST("/removal", h.StageFriendRemoval)
	friends.POST("/removal/confirm", h.ConfirmFriendRemoval)
	friends.DELETE("/removal", h.CancelFriendRemoval)
	friends.PUT("/panel", h.SetAddFriendPanel)
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "launcher orchestration",
	})
}

// Health reports a summary of the orchestrator state
func (h *Handlers) Health(c *gin.Context) {
	state := h.orch.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"authenticated": state.Authenticated,
		"tasks":         len(state.Tasks),
		"running":       len(state.Running),
		"policy":        h.orch.Policy(),
	})
}

// State returns the full view snapshot
func (h *Handlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Snapshot())
}

type duplicateRequest struct {
	Target string `json:"target" binding:"required"`
}

type removalRequest struct {
	UUID     string `json:"uuid" binding:"required"`
	Username string `json:"username"`
}

type friendRequest struct {
	Username string `json:"username"`
}

type toggleRequest struct {
	Open bool `json:"open"`
}

// CreateInstance creates an instance and tracks its progress
func (h *Handlers) CreateInstance(c *gin.Context) {
	var req types.CreateInstanceRequest
	if !h.bind(c, &req) {
		return
	}
	h.run(c, h.orch.RequestCreate(c.Request.Context(), req))
}

// RefreshInstances reloads the instance list
func (h *Handlers) RefreshInstances(c *gin.Context) {
	h.run(c, h.orch.RefreshInstances(c.Request.Context()))
}

// LaunchInstance launches an instance
func (h *Handlers) LaunchInstance(c *gin.Context) {
	h.run(c, h.orch.RequestLaunch(c.Request.Context(), c.Param("name")))
}

// KillInstance stops a running instance
func (h *Handlers) KillInstance(c *gin.Context) {
	h.run(c, h.orch.RequestKill(c.Request.Context(), c.Param("name")))
}

// DuplicateInstance copies an instance under a new name
func (h *Handlers) DuplicateInstance(c *gin.Context) {
	var req duplicateRequest
	if !h.bind(c, &req) {
		return
	}
	h.run(c, h.orch.RequestDuplicate(c.Request.Context(), c.Param("name"), req.Target))
}

// DismissTask removes a task and any alert it raised
func (h *Handlers) DismissTask(c *gin.Context) {
	h.run(c, h.orch.DismissTask(c.Param("target")))
}

// DismissAlert acknowledges the blocking alert
func (h *Handlers) DismissAlert(c *gin.Context) {
	h.orch.DismissAlert()
	h.run(c, nil)
}

// AddAccount runs the sign-in flow
func (h *Handlers) AddAccount(c *gin.Context) {
	h.run(c, h.orch.AddAccount(c.Request.Context()))
}

// SwitchAccount makes an account active
func (h *Handlers) SwitchAccount(c *gin.Context) {
	h.run(c, h.orch.SwitchAccount(c.Request.Context(), c.Param("uuid")))
}

// RemoveAccount signs an account out
func (h *Handlers) RemoveAccount(c *gin.Context) {
	h.run(c, h.orch.RemoveAccount(c.Request.Context(), c.Param("uuid")))
}

// SetAccountPicker opens or closes the account picker
func (h *Handlers) SetAccountPicker(c *gin.Context) {
	var req toggleRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Open {
		h.orch.OpenAccountPicker()
	} else {
		h.orch.CloseAccountPicker()
	}
	h.run(c, nil)
}

// SendFriendRequest sends a friend request by username
func (h *Handlers) SendFriendRequest(c *gin.Context) {
	var req friendRequest
	if !h.bind(c, &req) {
		return
	}
	h.run(c, h.orch.SendFriendRequest(c.Request.Context(), req.Username))
}

// AcceptRequest accepts a pending friend request
func (h *Handlers) AcceptRequest(c *gin.Context) {
	h.run(c, h.orch.AcceptRequest(c.Request.Context(), c.Param("id")))
}

// RejectRequest rejects a pending friend request
func (h *Handlers) RejectRequest(c *gin.Context) {
	h.run(c, h.orch.RejectRequest(c.Request.Context(), c.Param("id")))
}

// StageFriendRemoval stages a friend for removal
func (h *Handlers) StageFriendRemoval(c *gin.Context) {
	var req removalRequest
	if !h.bind(c, &req) {
		return
	}
	h.orch.StageFriendRemoval(req.UUID, req.Username)
	h.run(c, nil)
}

// ConfirmFriendRemoval removes the staged friend
func (h *Handlers) ConfirmFriendRemoval(c *gin.Context) {
	h.run(c, h.orch.ConfirmFriendRemoval(c.Request.Context()))
}

// CancelFriendRemoval drops the staged friend
func (h *Handlers) CancelFriendRemoval(c *gin.Context) {
	h.orch.CancelFriendRemoval()
	h.run(c, nil)
}

// SetAddFriendPanel opens or closes the add-friend panel
func (h *Handlers) SetAddFriendPanel(c *gin.Context) {
	var req toggleRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Open {
		h.orch.OpenAddFriendPanel()
	} else {
		h.orch.CloseAddFriendPanel()
	}
	h.run(c, nil)
}

func (h *Handlers) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// run answers with the post-call snapshot, or the mapped error
func (h *Handlers) run(c *gin.Context, err error) {
	if err != nil {
		h.logger.Debug("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.orch.Snapshot())
}
