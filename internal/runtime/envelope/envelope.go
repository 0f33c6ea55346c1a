// Package envelope builds the canonical message unit published to the stream.
package envelope

import (
	"time"

	idspkg "github.com/drblury/chatflow/internal/runtime/ids"
)

// TimestampLayout renders UTC instants with millisecond precision, the same
// ISO-8601 shape JavaScript's Date.toISOString produces.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Envelope is the unit published to the stream.
type Envelope struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
}

// Time parses Timestamp back into a time.Time.
func (e Envelope) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Timestamp)
}

// Builder creates envelopes. The zero value is not usable; use NewBuilder.
type Builder struct {
	newID idspkg.Generator
	now   func() time.Time
}

// Option customises a Builder.
type Option func(*Builder)

// WithIDGenerator replaces the default UUID generator.
func WithIDGenerator(gen idspkg.Generator) Option {
	return func(b *Builder) {
		if gen != nil {
			b.newID = gen
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		newID: idspkg.CreateUUID,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assigns a fresh id and the current timestamp. Inputs are expected to
// be validated by the caller.
func (b *Builder) Build(sender, message string) Envelope {
	return Envelope{
		ID:        b.newID(),
		Timestamp: FormatTimestamp(b.now()),
		Sender:    sender,
		Message:   message,
	}
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

var defaultBuilder = NewBuilder()

// New builds an envelope with the default UUID generator and wall clock.
func New(sender, message string) Envelope {
	return defaultBuilder.Build(sender, message)
}
