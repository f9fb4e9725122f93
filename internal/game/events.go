package game

import (
	"encoding/json"
	"fmt"
)

// EventType tags the closed set of protocol events exchanged over a room's
// channel.
type EventType string

const (
	EventPlayerJoined    EventType = "player_joined"
	EventPlayerLeft      EventType = "player_left"
	EventRoleClaimed     EventType = "role_claimed"
	EventRoleReleased    EventType = "role_released"
	EventCountdownTick   EventType = "countdown_tick"
	EventCountdownCancel EventType = "countdown_cancel"
	EventTargetConfirmed EventType = "target_confirmed"
	EventGuessMade       EventType = "guess_made"
	EventGameOver        EventType = "game_over"
	EventReturnToLobby   EventType = "return_to_lobby"
	EventStateSync       EventType = "state_sync"
)

// Event is the envelope for one protocol event: a type tag plus the
// type-specific payload. Events carrying no data leave Data empty.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EnvelopeType is the outer message type every room publish carries.
const EnvelopeType = "game_event"

// Envelope is the wire shape published on a room's channel.
type Envelope struct {
	Type    string `json:"type"`
	Payload Event  `json:"payload"`
}

// Wrap wraps an event for publishing.
func Wrap(ev Event) Envelope {
	return Envelope{Type: EnvelopeType, Payload: ev}
}

// PlayerJoinedPayload announces a new roster entry.
type PlayerJoinedPayload struct {
	Nickname string `json:"nickname"`
}

// PlayerLeftPayload announces a departure.
type PlayerLeftPayload struct {
	Nickname string `json:"nickname"`
}

// RoleClaimedPayload is an optimistic claim on a principal role.
type RoleClaimedPayload struct {
	Nickname string `json:"nickname"`
	Role     Role   `json:"role"`
}

// RoleReleasedPayload reverts the named player to spectator.
type RoleReleasedPayload struct {
	Nickname string `json:"nickname"`
}

// CountdownTickPayload carries the authority's remaining-seconds broadcast.
type CountdownTickPayload struct {
	Seconds int `json:"seconds"`
}

// GuessMadePayload carries one guess.
type GuessMadePayload struct {
	Guess Guess `json:"guess"`
}

// GameOverPayload carries the clue maker's unilateral round resolution.
type GameOverPayload struct {
	Result RoundResult `json:"result"`
}

// StateSyncPayload carries the authority's full-state snapshot.
type StateSyncPayload struct {
	State State `json:"state"`
}

func mustEvent(t EventType, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payload structs contain only marshalable fields.
		panic(fmt.Sprintf("marshal %s payload: %v", t, err))
	}
	return Event{Type: t, Data: data}
}

// PlayerJoined builds a player_joined event.
func PlayerJoined(nickname string) Event {
	return mustEvent(EventPlayerJoined, PlayerJoinedPayload{Nickname: nickname})
}

// PlayerLeft builds a player_left event.
func PlayerLeft(nickname string) Event {
	return mustEvent(EventPlayerLeft, PlayerLeftPayload{Nickname: nickname})
}

// RoleClaimed builds a role_claimed event.
func RoleClaimed(nickname string, role Role) Event {
	return mustEvent(EventRoleClaimed, RoleClaimedPayload{Nickname: nickname, Role: role})
}

// RoleReleased builds a role_released event.
func RoleReleased(nickname string) Event {
	return mustEvent(EventRoleReleased, RoleReleasedPayload{Nickname: nickname})
}

// CountdownTick builds a countdown_tick event.
func CountdownTick(seconds int) Event {
	return mustEvent(EventCountdownTick, CountdownTickPayload{Seconds: seconds})
}

// CountdownCancel builds a countdown_cancel event.
func CountdownCancel() Event {
	return Event{Type: EventCountdownCancel}
}

// TargetConfirmed builds a target_confirmed event. The target cell itself is
// never transmitted.
func TargetConfirmed() Event {
	return Event{Type: EventTargetConfirmed}
}

// GuessMade builds a guess_made event.
func GuessMade(g Guess) Event {
	return mustEvent(EventGuessMade, GuessMadePayload{Guess: g})
}

// GameOver builds a game_over event.
func GameOver(result RoundResult) Event {
	return mustEvent(EventGameOver, GameOverPayload{Result: result})
}

// ReturnToLobby builds a return_to_lobby event.
func ReturnToLobby() Event {
	return Event{Type: EventReturnToLobby}
}

// StateSync builds a state_sync event from an authoritative snapshot.
func StateSync(state State) Event {
	return mustEvent(EventStateSync, StateSyncPayload{State: state})
}

// ParsePayload decodes the event's data into its typed payload struct.
// Events without payloads return nil. Unknown event types are an error so a
// missing case in the reducer cannot pass silently.
func ParsePayload(ev Event) (any, error) {
	switch ev.Type {
	case EventPlayerJoined:
		var p PlayerJoinedPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return p, nil

	case EventPlayerLeft:
		var p PlayerLeftPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return p, nil

	case EventRoleClaimed:
		var p RoleClaimedPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return p, nil

	case EventRoleReleased:
		var p RoleReleasedPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return p, nil

	case EventCountdownTick:
		var p CountdownTickPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return p, nil

	case EventGuessMade:
		var p GuessMadePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return p, nil

	case EventGameOver:
		var p GameOverPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return p, nil

	case EventStateSync:
		var p StateSyncPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		return p, nil

	case EventCountdownCancel, EventTargetConfirmed, EventReturnToLobby:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
}
