// Package platform holds the collaborators owned by the host system: the shared
// message store and the default-handler role.
package platform

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/mixelka/smsfirewall/pkg/models"
)

// ErrPermissionDenied is returned when the app does not hold the default-handler role
var ErrPermissionDenied = errors.New("permission denied: not the default SMS handler")

// ErrNotFound is returned when a message id does not exist in the store
var ErrNotFound = errors.New("message not found")

// MessageStore is the typed view of the shared platform message store.
// Mutation methods report the number of affected rows; zero means the
// platform ignored the write.
type MessageStore interface {
	List(ctx context.Context) ([]models.Message, error)
	FindByID(ctx context.Context, id int64) (*models.Message, error)
	FindByThread(ctx context.Context, threadID int64) ([]models.Message, error)
	FindByAddress(ctx context.Context, address string) ([]models.Message, error)

	// Insert writes msg into box and returns the new id, 0 when nothing was written
	Insert(ctx context.Context, box models.Box, msg models.Message) (int64, error)
	DeleteByID(ctx context.Context, id int64) (int64, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	DeleteByThread(ctx context.Context, threadID int64) (int64, error)
	MarkThreadRead(ctx context.Context, threadID int64) (int64, error)

	// Subscribe registers a change listener and returns its unsubscribe func
	Subscribe(listener func()) func()
}

// RoleChecker reports whether the app is the default SMS handler
type RoleChecker interface {
	IsDefaultHandler(ctx context.Context) bool
}

// StaticRole is a RoleChecker the host flips when the role is granted or revoked
type StaticRole struct {
	granted atomic.Bool
}

// NewStaticRole creates a role holder with an initial state
func NewStaticRole(granted bool) *StaticRole {
	r := &StaticRole{}
	r.granted.Store(granted)
	return r
}

// IsDefaultHandler implements RoleChecker
func (r *StaticRole) IsDefaultHandler(ctx context.Context) bool {
	return r.granted.Load()
}

// Set updates the role state
func (r *StaticRole) Set(granted bool) {
	r.granted.Store(granted)
}

// RequireDefaultHandler returns ErrPermissionDenied unless the role is held
func RequireDefaultHandler(ctx context.Context, roles RoleChecker) error {
	if roles == nil || !roles.IsDefaultHandler(ctx) {
		return ErrPermissionDenied
	}
	return nil
}
