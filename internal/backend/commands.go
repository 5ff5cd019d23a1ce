package backend

import (
	"context"

	"github.com/GriffinCanCode/launcher/internal/shared/types"
)

// Command names understood by the backend
const (
	CmdGetInstances        = "get_instances"
	CmdLaunchInstance      = "launch_instance"
	CmdKillInstance        = "kill_instance"
	CmdDuplicateInstance   = "duplicate_instance"
	CmdCreateInstance      = "create_instance"
	CmdGetAccounts         = "get_accounts"
	CmdSwitchAccount       = "switch_account"
	CmdAddAccount          = "add_account"
	CmdRemoveAccount       = "remove_account"
	CmdRegisterFriends     = "register_user_in_friends_system"
	CmdUpdateUserStatus    = "update_user_status"
	CmdGetFriends          = "get_friends"
	CmdGetFriendRequests   = "get_friend_requests"
	CmdSendFriendRequest   = "send_friend_request"
	CmdAcceptFriendRequest = "accept_friend_request"
	CmdRejectFriendRequest = "reject_friend_request"
	CmdRemoveFriend        = "remove_friend"
)

// Instances is the instance half of the command interface
type Instances interface {
	GetInstances(ctx context.Context) ([]types.Instance, error)
	LaunchInstance(ctx context.Context, name string) error
	KillInstance(ctx context.Context, name string) error
	DuplicateInstance(ctx context.Context, source, target string) error
	CreateInstance(ctx context.Context, req types.CreateInstanceRequest) error
}

// Accounts is the account half of the command interface
type Accounts interface {
	GetAccounts(ctx context.Context) ([]types.Account, error)
	SwitchAccount(ctx context.Context, uuid string) error
	AddAccount(ctx context.Context) error
	RemoveAccount(ctx context.Context, uuid string) error
}

// Social is the friends half of the command interface
type Social interface {
	RegisterUserInFriendsSystem(ctx context.Context) error
	UpdateUserStatus(ctx context.Context, status types.PresenceStatus, instance *string) error
	GetFriends(ctx context.Context) ([]types.Friend, error)
	GetFriendRequests(ctx context.Context) ([]types.FriendRequest, error)
	SendFriendRequest(ctx context.Context, username string) error
	AcceptFriendRequest(ctx context.Context, id string) error
	RejectFriendRequest(ctx context.Context, id string) error
	RemoveFriend(ctx context.Context, uuid string) error
}

// Commands is the full backend command interface
type Commands interface {
	Instances
	Accounts
	Social
}
