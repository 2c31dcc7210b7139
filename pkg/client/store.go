package client

import (
	"sync"

	"stagesync/pkg/types"
)

// State is the client's view of the room. Every field is derived by
// Reduce; nothing mutates it from outside the store.
type State struct {
	CurrentEvent     string
	Queue            []types.QueueItem
	Tournaments      []types.Tournament
	ConnectedUsers   map[string]types.User
	ConnectedCount   int
	CurrentlyPlaying *types.QueueItem
	Notifications    []types.Notification
	IsConnected      bool
}

// Action is a state transition. Each concrete action carries exactly
// the data its transition needs.
type Action interface {
	isAction()
}

type SetConnected struct{ Connected bool }

type ApplyInitialState struct{ Snapshot types.InitialStatePayload }

type ReplaceQueue struct{ Queue []types.QueueItem }

type AppendQueueItem struct{ Item types.QueueItem }

type UserJoined struct {
	User           types.User
	ConnectedCount int
}

type UserLeft struct {
	User           types.User
	ConnectedCount int
}

type AddNotification struct{ Notification types.Notification }

type RemoveNotification struct{ ID string }

type ReplaceTournaments struct{ Tournaments []types.Tournament }

func (SetConnected) isAction()       {}
func (ApplyInitialState) isAction()  {}
func (ReplaceQueue) isAction()       {}
func (AppendQueueItem) isAction()    {}
func (UserJoined) isAction()         {}
func (UserLeft) isAction()           {}
func (AddNotification) isAction()    {}
func (RemoveNotification) isAction() {}
func (ReplaceTournaments) isAction() {}

// Reduce applies one action and returns the next state. Pure: the
// input state is never mutated, slices are copied before changing.
func Reduce(state State, action Action) State {
	switch a := action.(type) {
	case SetConnected:
		state.IsConnected = a.Connected

	case ApplyInitialState:
		state.CurrentEvent = a.Snapshot.Event
		state.Queue = copyQueue(a.Snapshot.Queue)
		state.Notifications = copyNotifications(a.Snapshot.Notifications)
		state.ConnectedCount = a.Snapshot.ConnectedUsers
		state.ConnectedUsers = usersByName(a.Snapshot.Users)
		state.CurrentlyPlaying = firstPlaying(state.Queue)

	case ReplaceQueue:
		state.Queue = copyQueue(a.Queue)
		state.CurrentlyPlaying = firstPlaying(state.Queue)

	case AppendQueueItem:
		queue := copyQueue(state.Queue)
		state.Queue = append(queue, a.Item)
		state.CurrentlyPlaying = firstPlaying(state.Queue)

	case UserJoined:
		users := copyUsers(state.ConnectedUsers)
		users[a.User.Name] = a.User
		state.ConnectedUsers = users
		state.ConnectedCount = a.ConnectedCount

	case UserLeft:
		users := copyUsers(state.ConnectedUsers)
		delete(users, a.User.Name)
		state.ConnectedUsers = users
		state.ConnectedCount = a.ConnectedCount

	case AddNotification:
		state.Notifications = append(copyNotifications(state.Notifications), a.Notification)

	case RemoveNotification:
		kept := make([]types.Notification, 0, len(state.Notifications))
		for _, n := range state.Notifications {
			if n.ID != a.ID {
				kept = append(kept, n)
			}
		}
		state.Notifications = kept

	case ReplaceTournaments:
		state.Tournaments = append([]types.Tournament(nil), a.Tournaments...)
	}
	return state
}

// ActionsFromEnvelope maps a server envelope to store actions. Types
// the reducer does not model yield nothing; listeners still see them.
func ActionsFromEnvelope(env *types.Envelope) []Action {
	switch env.Type {
	case types.MessageTypeInitialState:
		var snapshot types.InitialStatePayload
		if err := env.Decode(&snapshot); err != nil {
			return nil
		}
		return []Action{ApplyInitialState{Snapshot: snapshot}}

	case types.MessageTypeUserJoined:
		var presence types.UserPresencePayload
		if err := env.Decode(&presence); err != nil {
			return nil
		}
		return []Action{UserJoined{User: presence.User, ConnectedCount: presence.ConnectedUsers}}

	case types.MessageTypeUserLeft:
		var presence types.UserPresencePayload
		if err := env.Decode(&presence); err != nil {
			return nil
		}
		return []Action{UserLeft{User: presence.User, ConnectedCount: presence.ConnectedUsers}}

	case types.MessageTypeQueueUpdated:
		var payload types.QueueUpdatedPayload
		if err := env.Decode(&payload); err != nil {
			return nil
		}
		return []Action{ReplaceQueue{Queue: payload.Queue}}

	case types.MessageTypeQueueItemAdded:
		var payload types.QueueItemAddedPayload
		if err := env.Decode(&payload); err != nil {
			return nil
		}
		return []Action{AppendQueueItem{Item: payload.Item}}

	case types.MessageTypeNotification:
		var notification types.Notification
		if err := env.Decode(&notification); err != nil {
			return nil
		}
		return []Action{AddNotification{Notification: notification}}

	case types.MessageTypeStaffUpdate:
		var payload types.StaffUpdatePayload
		if err := env.Decode(&payload); err != nil {
			return nil
		}
		if len(payload.Tournaments) == 0 {
			return nil
		}
		return []Action{ReplaceTournaments{Tournaments: payload.Tournaments}}
	}
	return nil
}

// Store holds the reduced state behind a lock. Dispatch is the only
// writer.
type Store struct {
	mu    sync.RWMutex
	state State
}

func NewStore() *Store {
	return &Store{
		state: State{
			ConnectedUsers: make(map[string]types.User),
		},
	}
}

// Dispatch runs one action through the reducer.
func (s *Store) Dispatch(action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, action)
}

// Apply maps an envelope to actions and dispatches each.
func (s *Store) Apply(env *types.Envelope) {
	for _, action := range ActionsFromEnvelope(env) {
		s.Dispatch(action)
	}
}

// Snapshot returns a copy safe to read without racing Dispatch.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state
	snapshot.Queue = copyQueue(s.state.Queue)
	snapshot.Notifications = copyNotifications(s.state.Notifications)
	snapshot.ConnectedUsers = copyUsers(s.state.ConnectedUsers)
	snapshot.Tournaments = append([]types.Tournament(nil), s.state.Tournaments...)
	return snapshot
}

func copyQueue(queue []types.QueueItem) []types.QueueItem {
	return append([]types.QueueItem(nil), queue...)
}

func copyNotifications(notifications []types.Notification) []types.Notification {
	return append([]types.Notification(nil), notifications...)
}

func copyUsers(users map[string]types.User) map[string]types.User {
	out := make(map[string]types.User, len(users))
	for name, user := range users {
		out[name] = user
	}
	return out
}

func usersByName(users []types.User) map[string]types.User {
	out := make(map[string]types.User, len(users))
	for _, user := range users {
		out[user.Name] = user
	}
	return out
}

func firstPlaying(queue []types.QueueItem) *types.QueueItem {
	for i := range queue {
		if queue[i].Status == types.StatusPlaying {
			item := queue[i]
			return &item
		}
	}
	return nil
}
