package part

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Part is the batch aggregate root. Quantity is a denormalized sum of the
// current event's product totals, recomputed after every relevant change.
type Part struct {
	ID       string    `json:"id" bson:"_id"`
	EventID  string    `json:"event" bson:"event_id"`
	Quantity int       `json:"quantity" bson:"quantity"`
	Number   string    `json:"number" bson:"number"`
	Created  time.Time `json:"created" bson:"created"`
}

// New allocates a batch numbered from now.
func New(now time.Time) *Part {
	return &Part{
		ID:      uuid.NewString(),
		Number:  Number(now),
		Created: now.UTC(),
	}
}

// Number formats centiseconds since the epoch in dot separated groups of three.
func Number(now time.Time) string {
	digits := strconv.FormatInt(now.UnixNano()/int64(10*time.Millisecond), 10)
	var sb strings.Builder
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	sb.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		sb.WriteByte('.')
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}

// Snapshot pairs a batch with its current event.
type Snapshot struct {
	Part  *Part
	Event *Event
}
