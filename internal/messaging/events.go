package messaging

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/turbopool/turbo-ledger/internal/ledger"
)

// EventPayload is the JSON body published on turbo.event.* subjects.
// Wei amounts travel as decimal strings to survive any JSON number
// precision limits downstream.
type EventPayload struct {
	EventID  string `json:"event_id"`
	Kind     string `json:"kind"`
	Identity string `json:"identity,omitempty"`
	Tier     uint8  `json:"tier,omitempty"`
	Wei      string `json:"wei,omitempty"`
	Tick     uint64 `json:"tick,omitempty"`
	Setting  string `json:"setting,omitempty"`
	Value    uint64 `json:"value,omitempty"`
	EmittedAt int64 `json:"emitted_at"` // unix timestamp
}

// eventSubjects maps ledger event kinds to their NATS subjects.
var eventSubjects = map[string]string{
	ledger.EventEngaged:        SubjectEngaged,
	ledger.EventDisengaged:     SubjectDisengaged,
	ledger.EventRewardCredited: SubjectRewardCredited,
	ledger.EventRewardClaimed:  SubjectRewardClaimed,
	ledger.EventPoolFunded:     SubjectPoolFunded,
	ledger.EventFeesWithdrawn:  SubjectFeesWithdrawn,
	ledger.EventConfigUpdated:  SubjectConfigUpdated,
}

// EventPublisher forwards ledger events to NATS. It implements
// ledger.Notifier. Publishing is best effort: failures are logged, never
// surfaced, so a flaky broker cannot fail a settled ledger operation.
type EventPublisher struct {
	nats *NATSClient
}

// NewEventPublisher returns a publisher on the given client.
func NewEventPublisher(nats *NATSClient) *EventPublisher {
	return &EventPublisher{nats: nats}
}

// Emit implements ledger.Notifier.
func (p *EventPublisher) Emit(e ledger.Event) {
	subject, ok := eventSubjects[e.Kind]
	if !ok {
		log.Printf("[events] unknown event kind %q dropped", e.Kind)
		return
	}

	payload := EventPayload{
		EventID:   uuid.New().String(),
		Kind:      e.Kind,
		Identity:  e.Identity,
		Tier:      e.Tier,
		Tick:      e.Tick,
		Setting:   e.Setting,
		Value:     e.Value,
		EmittedAt: time.Now().Unix(),
	}
	if e.Wei != nil {
		payload.Wei = e.Wei.String()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[events] marshal %s: %v", e.Kind, err)
		return
	}
	if err := p.nats.Publish(subject, data); err != nil {
		log.Printf("[events] publish %s: %v", subject, err)
	}
}
