package ws

import (
	"time"

	"github.com/google/uuid"
)

type ConnInfo struct {
	ConnID      string
	Scope       Scope
	UserID      int
	Attempt     int
	ConnectedAt time.Time
}

func newConnID() string {
	return uuid.NewString()
}
