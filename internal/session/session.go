// ABOUTME: Explicit per-owner session passed to every client-side store operation.
// ABOUTME: Replaces any process-wide "current owner" with a value the caller owns.
package session

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/oklog/ulid/v2"
)

// Session identifies who is acting and from which device.
type Session struct {
	OwnerID  int64
	DeviceID string
}

// New returns a session for owner. An empty deviceID gets a fresh one.
func New(owner int64, deviceID string) (Session, error) {
	if owner <= 0 {
		return Session{}, errs.Validation("owner id must be positive, got %d", owner)
	}
	if deviceID == "" {
		deviceID = NewDeviceID()
	}
	return Session{OwnerID: owner, DeviceID: deviceID}, nil
}

// OwnerKey is the owner id in the form used for storage key prefixes.
func (s Session) OwnerKey() string {
	return strconv.FormatInt(s.OwnerID, 10)
}

func (s Session) String() string {
	return fmt.Sprintf("owner=%d device=%s", s.OwnerID, s.DeviceID)
}

// NewDeviceID generates a lowercase ULID for a new device.
func NewDeviceID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return fmt.Sprintf("dev-%d", time.Now().UnixNano())
	}
	return "dev-" + strings.ToLower(id.String())
}
