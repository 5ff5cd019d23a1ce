package presence

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/launcher/internal/backend"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/config"
	"github.com/GriffinCanCode/launcher/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/launcher/internal/shared/types"
)

// Backend is the slice of the command interface the synchronizer drives
type Backend = backend.Social

// Options controls polling and status timing
type Options struct {
	PollInterval    time.Duration
	ErrorClearAfter time.Duration
	SuccessClose    time.Duration
}

// DefaultOptions returns the stock timing
func DefaultOptions() Options {
	return Options{
		PollInterval:    5000 * time.Millisecond,
		ErrorClearAfter: 3000 * time.Millisecond,
		SuccessClose:    2000 * time.Millisecond,
	}
}

// OptionsFromConfig maps presence configuration onto synchronizer options
func OptionsFromConfig(cfg config.PresenceConfig) Options {
	return Options{
		PollInterval:    cfg.PollInterval,
		ErrorClearAfter: cfg.ErrorClearAfter,
		SuccessClose:    cfg.SuccessClose,
	}
}

// View is a consistent snapshot of the social state
type View struct {
	Friends      []types.Friend        `json:"friends"`
	UpdateKey    uint64                `json:"update_key"`
	Requests     []types.FriendRequest `json:"requests"`
	PendingCount int                   `json:"pending_count"`
	ProcessingID string                `json:"processing_request_id,omitempty"`
	Staged       *types.PendingRemoval `json:"staged_removal,omitempty"`
	Status       *StatusMessage        `json:"status,omitempty"`
	AddPanelOpen bool                  `json:"add_panel_open"`
}

// Synchronizer keeps the friends view of the active account current
type Synchronizer struct {
	backend Backend
	clock   clockwork.Clock
	logger  *zap.Logger
	metrics *monitoring.Metrics
	opts    Options

	group   singleflight.Group
	polling atomic.Bool
	polls   sync.WaitGroup

	// serializes Start and Stop
	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}

	mu           sync.Mutex
	account      *types.Account
	generation   uint64
	registered   map[string]bool
	friends      []types.Friend
	updateKey    uint64
	requests     []types.FriendRequest
	processingID string
	staged       *types.PendingRemoval
	status       *StatusMessage
	statusTimer  clockwork.Timer
	addPanelOpen bool
	onChange     func()
}

// NewSynchronizer creates an idle synchronizer
func NewSynchronizer(backend Backend, clock clockwork.Clock, opts Options, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		backend:    backend,
		clock:      clock,
		logger:     logger,
		opts:       opts,
		registered: make(map[string]bool),
	}
}

// WithMetrics adds metrics tracking to the synchronizer
func (s *Synchronizer) WithMetrics(metrics *monitoring.Metrics) *Synchronizer {
	s.metrics = metrics
	return s
}

// OnChange registers fn to be called after any state change
func (s *Synchronizer) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// HandleSessionChange starts polling for a signed-in account and stops it
// on sign-out.
func (s *Synchronizer) HandleSessionChange(active *types.Account) {
	if active == nil {
		s.Stop()
		return
	}
	s.Start(*active)
}

// Start begins polling for account. Starting for the account already being
// polled is a no-op; starting for another account replaces the session.
func (s *Synchronizer) Start(account types.Account) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	same := s.account != nil && s.account.UUID == account.UUID
	s.mu.Unlock()
	if same && s.cancel != nil {
		return
	}
	s.stopLocked()

	s.mu.Lock()
	acc := account
	s.account = &acc
	s.generation++
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("Presence sync started", zap.String("account", account.UUID))
	go s.run(ctx, s.done)
}

// Stop halts polling and clears all friend state. No backend call is made
// after Stop returns.
func (s *Synchronizer) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopLocked()
}

// Close is an alias for Stop
func (s *Synchronizer) Close() { s.Stop() }

func (s *Synchronizer) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.polls.Wait()
		s.cancel = nil
		s.done = nil
		s.logger.Info("Presence sync stopped")
	}

	s.mu.Lock()
	wasActive := s.account != nil
	s.account = nil
	s.generation++
	s.friends = nil
	s.requests = nil
	s.processingID = ""
	s.staged = nil
	s.clearStatusLocked()
	s.addPanelOpen = false
	s.mu.Unlock()

	s.metrics.SetFriendsOnline(0)
	if wasActive {
		s.changed()
	}
}

func (s *Synchronizer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.ensureRegistered(ctx)
	if err := s.backend.UpdateUserStatus(ctx, types.PresenceOnline, nil); err != nil && ctx.Err() == nil {
		s.logger.Warn("Failed to set presence online", zap.Error(err))
	}

	s.tick(ctx)

	ticker := s.clock.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

// tick starts a poll unless the previous one is still outstanding
func (s *Synchronizer) tick(ctx context.Context) {
	if !s.polling.CompareAndSwap(false, true) {
		s.metrics.RecordPoll("skipped")
		s.logger.Debug("Previous poll still running, skipping tick")
		return
	}

	s.polls.Add(1)
	go func() {
		defer s.polls.Done()
		defer s.polling.Store(false)
		s.poll(ctx)
	}()
}

func (s *Synchronizer) poll(ctx context.Context) {
	s.ensureRegistered(ctx)

	friendsErr := s.ReloadFriends(ctx)
	requestsErr := s.ReloadRequests(ctx)
	if ctx.Err() != nil {
		return
	}

	if friendsErr != nil || requestsErr != nil {
		s.metrics.RecordPoll("error")
		s.logger.Warn("Presence poll failed",
			zap.NamedError("friends", friendsErr),
			zap.NamedError("requests", requestsErr),
		)
		return
	}
	s.metrics.RecordPoll("ok")
}

// ensureRegistered registers the session's account with the friends system
// once. A failure is retried on the next poll.
func (s *Synchronizer) ensureRegistered(ctx context.Context) {
	s.mu.Lock()
	if s.account == nil || s.registered[s.account.UUID] {
		s.mu.Unlock()
		return
	}
	uuid := s.account.UUID
	s.mu.Unlock()

	if err := s.backend.RegisterUserInFriendsSystem(ctx); err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("Friends system registration failed", zap.String("account", uuid), zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	s.registered[uuid] = true
	s.mu.Unlock()
}

// ReloadFriends fetches and re-sorts the friend list. Concurrent reloads
// within one session share one backend call.
func (s *Synchronizer) ReloadFriends(ctx context.Context) error {
	gen, ok := s.session()
	if !ok {
		return ErrNotAuthenticated
	}

	v, err, _ := s.group.Do(fmt.Sprintf("friends/%d", gen), func() (any, error) {
		return s.backend.GetFriends(ctx)
	})
	if err != nil {
		return fmt.Errorf("load friends: %w", err)
	}

	friends := append([]types.Friend(nil), v.([]types.Friend)...)
	sortFriends(friends)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return nil
	}
	s.friends = friends
	s.updateKey++
	s.mu.Unlock()

	s.metrics.SetFriendsOnline(countOnline(friends))
	s.changed()
	return nil
}

// ReloadRequests fetches pending friend requests
func (s *Synchronizer) ReloadRequests(ctx context.Context) error {
	gen, ok := s.session()
	if !ok {
		return ErrNotAuthenticated
	}

	v, err, _ := s.group.Do(fmt.Sprintf("requests/%d", gen), func() (any, error) {
		return s.backend.GetFriendRequests(ctx)
	})
	if err != nil {
		return fmt.Errorf("load friend requests: %w", err)
	}

	all := v.([]types.FriendRequest)
	pending := make([]types.FriendRequest, 0, len(all))
	for _, r := range all {
		if r.Status == "" || r.Status == types.RequestPending {
			pending = append(pending, r)
		}
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return nil
	}
	s.requests = pending
	s.mu.Unlock()

	s.changed()
	return nil
}

// AcceptRequest accepts a friend request, then reloads friends and requests
func (s *Synchronizer) AcceptRequest(ctx context.Context, id string) error {
	return s.processRequest(ctx, id, true)
}

// RejectRequest rejects a friend request, then reloads requests
func (s *Synchronizer) RejectRequest(ctx context.Context, id string) error {
	return s.processRequest(ctx, id, false)
}

// processRequest holds the processing slot for the whole operation,
// reloads included, so no other request can be acted on meanwhile.
func (s *Synchronizer) processRequest(ctx context.Context, id string, accept bool) error {
	if id == "" {
		return ErrEmptyRequestID
	}

	s.mu.Lock()
	if s.account == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	if s.processingID != "" {
		s.mu.Unlock()
		return ErrRequestInFlight
	}
	s.processingID = id
	s.mu.Unlock()
	s.changed()

	defer func() {
		s.mu.Lock()
		s.processingID = ""
		s.mu.Unlock()
		s.changed()
	}()

	var err error
	if accept {
		err = s.backend.AcceptFriendRequest(ctx, id)
	} else {
		err = s.backend.RejectFriendRequest(ctx, id)
	}
	if err != nil {
		s.logger.Warn("Friend request action failed",
			zap.String("request", id),
			zap.Bool("accept", accept),
			zap.Error(err),
		)
		s.showError(backend.Message(err))
		return err
	}

	if accept {
		if err := s.ReloadFriends(ctx); err != nil {
			s.logger.Warn("Friends reload after accept failed", zap.Error(err))
		}
	}
	if err := s.ReloadRequests(ctx); err != nil {
		s.logger.Warn("Requests reload failed", zap.Error(err))
	}
	return nil
}

// SendFriendRequest sends a request to username. Empty input and the active
// account's own name are rejected without a backend call.
func (s *Synchronizer) SendFriendRequest(ctx context.Context, username string) error {
	name := strings.TrimSpace(username)

	s.mu.Lock()
	account := s.account
	s.mu.Unlock()

	if account == nil {
		return ErrNotAuthenticated
	}
	if name == "" {
		s.showError(msgEmptyUsername)
		return &ValidationError{Reason: msgEmptyUsername}
	}
	if strings.EqualFold(name, account.Username) {
		s.showError(msgSelfRequest)
		return &ValidationError{Reason: msgSelfRequest}
	}

	if err := s.backend.SendFriendRequest(ctx, name); err != nil {
		reqErr := Classify(err)
		s.logger.Warn("Friend request failed",
			zap.String("username", name),
			zap.String("category", string(reqErr.Category)),
			zap.Error(err),
		)
		s.showError(reqErr.Message)
		return reqErr
	}

	s.showSuccess(fmt.Sprintf("Friend request sent to %s", name))
	return nil
}

// StageRemoval records a friend pending removal confirmation
func (s *Synchronizer) StageRemoval(candidate types.PendingRemoval) {
	s.mu.Lock()
	c := candidate
	s.staged = &c
	s.mu.Unlock()
	s.changed()
}

// CancelRemoval drops the staged candidate
func (s *Synchronizer) CancelRemoval() {
	s.mu.Lock()
	s.staged = nil
	s.mu.Unlock()
	s.changed()
}

// ConfirmRemoval removes the staged friend. The candidate is cleared before
// the backend call so another removal can be staged while this one runs.
func (s *Synchronizer) ConfirmRemoval(ctx context.Context) error {
	s.mu.Lock()
	if s.staged == nil {
		s.mu.Unlock()
		return ErrNothingStaged
	}
	candidate := *s.staged
	s.staged = nil
	s.mu.Unlock()
	s.changed()

	if err := s.backend.RemoveFriend(ctx, candidate.UUID); err != nil {
		s.logger.Warn("Friend removal failed", zap.String("friend", candidate.UUID), zap.Error(err))
		s.showError(fmt.Sprintf("Failed to remove %s: %s", candidate.Username, backend.Message(err)))
		return err
	}

	if err := s.ReloadFriends(ctx); err != nil {
		s.logger.Warn("Friends reload after removal failed", zap.Error(err))
	}
	return nil
}

// ReportInGame publishes that the active account is playing instance.
// Failures are logged only.
func (s *Synchronizer) ReportInGame(ctx context.Context, instance string) {
	if _, ok := s.session(); !ok {
		return
	}
	if err := s.backend.UpdateUserStatus(ctx, types.PresenceInGame, &instance); err != nil {
		s.logger.Warn("Failed to set presence in-game", zap.String("instance", instance), zap.Error(err))
	}
}

// OpenAddPanel opens the add-friend panel
func (s *Synchronizer) OpenAddPanel() {
	s.mu.Lock()
	s.addPanelOpen = true
	s.mu.Unlock()
	s.changed()
}

// CloseAddPanel closes the add-friend panel and drops its status message
func (s *Synchronizer) CloseAddPanel() {
	s.mu.Lock()
	s.addPanelOpen = false
	s.clearStatusLocked()
	s.mu.Unlock()
	s.changed()
}

func (s *Synchronizer) showError(text string) {
	s.mu.Lock()
	s.setStatusLocked(&StatusMessage{Kind: StatusError, Text: text}, s.opts.ErrorClearAfter, func() {
		s.mu.Lock()
		s.status = nil
		s.mu.Unlock()
	})
	s.mu.Unlock()
	s.changed()
}

func (s *Synchronizer) showSuccess(text string) {
	s.mu.Lock()
	s.setStatusLocked(&StatusMessage{Kind: StatusSuccess, Text: text}, s.opts.SuccessClose, func() {
		s.mu.Lock()
		s.status = nil
		s.addPanelOpen = false
		s.mu.Unlock()
	})
	s.mu.Unlock()
	s.changed()
}

// setStatusLocked replaces the status message and its expiry; must hold mu
func (s *Synchronizer) setStatusLocked(msg *StatusMessage, after time.Duration, expire func()) {
	s.clearStatusLocked()
	s.status = msg

	var timer clockwork.Timer
	timer = s.clock.AfterFunc(after, func() {
		s.mu.Lock()
		current := s.statusTimer == timer
		if current {
			s.statusTimer = nil
		}
		s.mu.Unlock()
		if !current {
			return
		}
		expire()
		s.changed()
	})
	s.statusTimer = timer
}

// clearStatusLocked must hold mu
func (s *Synchronizer) clearStatusLocked() {
	if s.statusTimer != nil {
		s.statusTimer.Stop()
		s.statusTimer = nil
	}
	s.status = nil
}

// session returns the current session generation
func (s *Synchronizer) session() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation, s.account != nil
}

// Running reports whether a session is being polled
func (s *Synchronizer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account != nil
}

// Friends returns the sorted friend list
func (s *Synchronizer) Friends() []types.Friend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Friend(nil), s.friends...)
}

// UpdateKey returns the friend list revision
func (s *Synchronizer) UpdateKey() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateKey
}

// ProcessingID returns the request being processed, if any
func (s *Synchronizer) ProcessingID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processingID
}

// Staged returns the friend awaiting removal confirmation
func (s *Synchronizer) Staged() (types.PendingRemoval, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		return types.PendingRemoval{}, false
	}
	return *s.staged, true
}

// View returns a snapshot of the social state
func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Friends:      append([]types.Friend(nil), s.friends...),
		UpdateKey:    s.updateKey,
		Requests:     append([]types.FriendRequest(nil), s.requests...),
		PendingCount: len(s.requests),
		ProcessingID: s.processingID,
		AddPanelOpen: s.addPanelOpen,
	}
	if s.staged != nil {
		staged := *s.staged
		v.Staged = &staged
	}
	if s.status != nil {
		status := *s.status
		v.Status = &status
	}
	return v
}

func (s *Synchronizer) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// sortFriends orders by presence rank, keeping arrival order within a rank
func sortFriends(friends []types.Friend) {
	sort.SliceStable(friends, func(i, j int) bool {
		return friends[i].Status.Rank() < friends[j].Status.Rank()
	})
}

func countOnline(friends []types.Friend) int {
	n := 0
	for _, f := range friends {
		if f.Status != types.PresenceOffline {
			n++
		}
	}
	return n
}
