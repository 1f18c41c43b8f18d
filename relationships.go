package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// PairState is the friend-request status between two accounts, projected
// from one side's record. The symmetry invariant makes the other side's
// projection the mirror image.
type PairState string

const (
	// PairStateStranger means no request or friendship exists.
	PairStateStranger PairState = "stranger"
	// PairStateRequestedByMe means this side sent a pending request.
	PairStateRequestedByMe PairState = "requested_by_me"
	// PairStateRequestedByThem means the peer sent a pending request.
	PairStateRequestedByThem PairState = "requested_by_them"
	// PairStateFriends is a confirmed bidirectional relationship.
	PairStateFriends PairState = "friends"
)

// RequestOutcome tells a caller what SendRequest actually did.
type RequestOutcome string

const (
	// OutcomeRequested means a new pending request was created.
	OutcomeRequested RequestOutcome = "requested"
	// OutcomeAccepted means crossed requests resolved into a friendship.
	OutcomeAccepted RequestOutcome = "accepted"
)

// ErrSelfReference is returned when an account targets itself.
var ErrSelfReference = goerrors.New("cannot send a friend request to yourself", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// maxPairRetries bounds how often a lost-update race is retried before it
// surfaces to the caller.
var maxPairRetries = 3

// RelationshipManager drives the friend-request state machine over the
// credential store's relationship sets.
type RelationshipManager struct {
	users  CredentialStore
	logger Logger
}

// NewRelationshipManager creates a manager with sane defaults.
func NewRelationshipManager(users CredentialStore) *RelationshipManager {
	return &RelationshipManager{
		users:  users,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the manager.
func (m *RelationshipManager) WithLogger(logger Logger) *RelationshipManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// PairStateOf projects the relationship status between current and peer
// from current's record.
func (m *RelationshipManager) PairStateOf(ctx context.Context, currentID, peerID uuid.UUID) (PairState, error) {
	current, err := m.users.GetByID(ctx, currentID)
	if err != nil {
		if IsNotFound(err) {
			return "", newNotFoundError("could not find user", TextCodeAccountNotFound)
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}
	return projectPairState(current, peerID), nil
}

// SendRequest asks for friendship with peer. Crossed requests
// auto-accept: the side that asks second implicitly accepts instead of
// creating a duplicate, which is what keeps the relationship symmetric
// without a separate accept endpoint.
func (m *RelationshipManager) SendRequest(ctx context.Context, currentID, peerID uuid.UUID) (RequestOutcome, error) {
	select {
	case <-ctx.Done():
		return "", goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during friend request")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	if currentID == peerID {
		return "", ErrSelfReference
	}

	var outcome RequestOutcome

	err := m.withPairRetry(ctx, func(ctx context.Context) error {
		current, peer, err := m.loadPair(ctx, currentID, peerID)
		if err != nil {
			return err
		}

		switch projectPairState(current, peerID) {
		case PairStateFriends:
			return newConflictError("you are both friends already", TextCodeAlreadyFriends)

		case PairStateRequestedByMe:
			return newConflictError("friend request already sent to the user", TextCodeRequestPending)

		case PairStateRequestedByThem:
			current.Friends = appendID(current.Friends, peerID)
			current.IncomingRequests = removeID(current.IncomingRequests, peerID)
			peer.Friends = appendID(peer.Friends, currentID)
			peer.OutgoingRequests = removeID(peer.OutgoingRequests, currentID)
			outcome = OutcomeAccepted

		default:
			current.OutgoingRequests = appendID(current.OutgoingRequests, peerID)
			peer.IncomingRequests = appendID(peer.IncomingRequests, currentID)
			outcome = OutcomeRequested
		}

		return m.users.SavePair(ctx, current, peer)
	})

	if err != nil {
		return "", err
	}

	return outcome, nil
}

// DeleteRequest declines an incoming request from peer. It is only valid
// while the request is pending from the peer's side; there is no
// unfriend and no cancel-sent-request.
func (m *RelationshipManager) DeleteRequest(ctx context.Context, currentID, peerID uuid.UUID) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during friend request removal")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	if currentID == peerID {
		return ErrSelfReference
	}

	return m.withPairRetry(ctx, func(ctx context.Context) error {
		current, peer, err := m.loadPair(ctx, currentID, peerID)
		if err != nil {
			return err
		}

		if projectPairState(current, peerID) != PairStateRequestedByThem {
			return newNotFoundError("this user did not send a friend request to you", TextCodeRequestNotFound)
		}

		current.IncomingRequests = removeID(current.IncomingRequests, peerID)
		peer.OutgoingRequests = removeID(peer.OutgoingRequests, currentID)

		return m.users.SavePair(ctx, current, peer)
	})
}

// ListIncoming returns the profiles of accounts that requested friendship
// with the given account.
func (m *RelationshipManager) ListIncoming(ctx context.Context, id uuid.UUID) ([]*PublicProfile, error) {
	return m.listSet(ctx, id, func(u *User) []uuid.UUID { return u.IncomingRequests })
}

// ListOutgoing returns the profiles of accounts the given account
// requested friendship with.
func (m *RelationshipManager) ListOutgoing(ctx context.Context, id uuid.UUID) ([]*PublicProfile, error) {
	return m.listSet(ctx, id, func(u *User) []uuid.UUID { return u.OutgoingRequests })
}

// ListFriends returns the profiles of confirmed friends.
func (m *RelationshipManager) ListFriends(ctx context.Context, id uuid.UUID) ([]*PublicProfile, error) {
	return m.listSet(ctx, id, func(u *User) []uuid.UUID { return u.Friends })
}

func (m *RelationshipManager) listSet(ctx context.Context, id uuid.UUID, project func(*User) []uuid.UUID) ([]*PublicProfile, error) {
	user, err := m.users.GetByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, newNotFoundError("could not find user", TextCodeAccountNotFound)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}

	profiles, err := m.users.ListProfiles(ctx, project(user))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve profiles")
	}

	return profiles, nil
}

func (m *RelationshipManager) loadPair(ctx context.Context, currentID, peerID uuid.UUID) (*User, *User, error) {
	current, err := m.users.GetByID(ctx, currentID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil, newNotFoundError("could not find user", TextCodeAccountNotFound)
		}
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}

	peer, err := m.users.GetByID(ctx, peerID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil, newNotFoundError("could not find user", TextCodeAccountNotFound)
		}
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}

	return current, peer, nil
}

// withPairRetry re-runs fn while it loses optimistic-concurrency races,
// re-reading fresh records each attempt. After maxPairRetries the
// conflict surfaces to the caller.
func (m *RelationshipManager) withPairRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxPairRetries; attempt++ {
		err = fn(ctx)
		if err == nil || !hasTextCode(err, TextCodeStaleRecord) {
			return err
		}
		m.logger.Debug("pair update lost a race, retrying", "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled while retrying pair update")
		case <-time.After(time.Duration(attempt+1) * 5 * time.Millisecond):
		}
	}

	return newConflictError("relationship changed concurrently, please retry", TextCodeStaleRecord)
}

func projectPairState(current *User, peerID uuid.UUID) PairState {
	switch {
	case containsID(current.Friends, peerID):
		return PairStateFriends
	case containsID(current.OutgoingRequests, peerID):
		return PairStateRequestedByMe
	case containsID(current.IncomingRequests, peerID):
		return PairStateRequestedByThem
	default:
		return PairStateStranger
	}
}
