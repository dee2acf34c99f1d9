package eventsourcing

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
)

// DefaultMaxMessagesPerBatch is the max_messages_per_batch value used when
// a binding does not set a usable one. Typed consumers apply it as the
// durable consumer's MaxAckPending cap, not as the per-Fetch batch size.
const DefaultMaxMessagesPerBatch = 200

const (
	keyRole      = "role"
	keyInterest  = "interest"
	keyName      = "name"
	keyKeyField  = "key"
	keyMaxBatch  = "max_messages_per_batch"
	keyConfigB64 = "config_b64"
)

var requiredKeys = []string{keyRole, keyInterest, keyName}

// Binding models a participant binding as presented by the host: a
// reference to the participant plus an opaque bag of string values.
type Binding struct {
	ParticipantID       string
	TargetID            string
	LinkName            string
	ContractID          string
	Values              map[string]string
	MaxMessagesPerBatch int
}

// rawConfig is the parsed shape of a binding's recognised keys, whether
// they arrived as individual values or as a config_b64 override.
type rawConfig struct {
	Role     string `json:"role"`
	Interest string `json:"interest"`
	Name     string `json:"name"`
	KeyField string `json:"key_field"`
}

// lowercaseKeys returns a copy of values with every key lowercased and
// trimmed, so binding option lookups are case-insensitive.
func lowercaseKeys(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// parseRawConfig extracts the recognised binding keys, preferring a
// config_b64 override (URL-safe base64 of a JSON document) over the
// individual role/interest/name/key keys when present.
func parseRawConfig(values map[string]string) (rawConfig, bool) {
	if b64, ok := values[keyConfigB64]; ok {
		decoded, err := base64.RawURLEncoding.DecodeString(b64)
		if err != nil {
			return rawConfig{}, false
		}
		var cfg rawConfig
		if err := json.Unmarshal(decoded, &cfg); err != nil {
			return rawConfig{}, false
		}
		return cfg, true
	}

	for _, k := range requiredKeys {
		if _, ok := values[k]; !ok {
			return rawConfig{}, false
		}
	}
	return rawConfig{
		Role:     strings.ToLower(values[keyRole]),
		Interest: values[keyInterest],
		Name:     values[keyName],
		KeyField: values[keyKeyField],
	}, true
}

// extractMaxMessagesPerBatch parses max_messages_per_batch, falling back
// to DefaultMaxMessagesPerBatch if absent or unparsable.
func extractMaxMessagesPerBatch(values map[string]string) int {
	raw, ok := values[keyMaxBatch]
	if !ok {
		return DefaultMaxMessagesPerBatch
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return DefaultMaxMessagesPerBatch
	}
	return n
}

// FromBinding parses a participant binding into its interest declarations.
// A binding whose role is aggregate expands to exactly two declarations,
// Commands then Events in that order; every other recognised role expands
// to exactly one. Unknown roles, missing required keys, or an unparsable
// process-manager interest document reject the whole binding.
func FromBinding(b Binding) ([]InterestDeclaration, error) {
	values := lowercaseKeys(b.Values)
	b.Values = values
	b.MaxMessagesPerBatch = extractMaxMessagesPerBatch(values)

	cfg, ok := parseRawConfig(values)
	if !ok {
		return nil, fmt.Errorf("eventsourcing: failed to parse a valid interest declaration from binding %+v", b)
	}

	role := parseActorRole(strings.ToLower(strings.TrimSpace(cfg.Role)))
	if role == RoleUnknown {
		return nil, fmt.Errorf("eventsourcing: unknown declared role %q for participant %s", cfg.Role, b.ParticipantID)
	}

	if role == RoleAggregate {
		entity := strcase.ToSnake(cfg.Name)
		return []InterestDeclaration{
			aggregateForCommands(entity, cfg.KeyField, b),
			aggregateForEvents(entity, cfg.KeyField, b),
		}, nil
	}

	interest, err := parseActorInterest(cfg.Interest, role)
	if err != nil {
		return nil, err
	}
	entity := strcase.ToSnake(cfg.Name)
	return []InterestDeclaration{
		newInterestDeclaration(entity, role, cfg.KeyField, interest, b),
	}, nil
}

// parseActorInterest interprets a binding's interest value per the target
// role: a stream name for aggregates, a comma-separated event list for
// projectors/notifiers, or a JSON lifetime document for process managers.
func parseActorInterest(input string, role ActorRole) (ActorInterest, error) {
	switch role {
	case RoleAggregate:
		return ActorInterest{Kind: InterestAggregateStream, AggregateStream: strcase.ToSnake(input)}, nil
	case RoleProjector, RoleNotifier:
		return ActorInterest{Kind: InterestEventList, EventList: toSnakeList(input)}, nil
	case RoleProcessManager:
		lifetime, err := parseProcessManagerLifetime(input)
		if err != nil {
			return ActorInterest{}, err
		}
		return ActorInterest{Kind: InterestProcessManager, ProcessManager: lifetime}, nil
	default:
		return ActorInterest{Kind: InterestNone}, nil
	}
}

func parseProcessManagerLifetime(input string) (ProcessManagerLifetime, error) {
	var raw ProcessManagerLifetime
	if err := json.Unmarshal([]byte(input), &raw); err != nil {
		return ProcessManagerLifetime{}, fmt.Errorf("eventsourcing: invalid process manager lifetime %q: %w", input, err)
	}
	advance := make([]string, len(raw.Advance))
	for i, s := range raw.Advance {
		advance[i] = strcase.ToSnake(s)
	}
	stop := make([]string, len(raw.Stop))
	for i, s := range raw.Stop {
		stop[i] = strcase.ToSnake(s)
	}
	return ProcessManagerLifetime{
		Start:   strcase.ToSnake(raw.Start),
		Advance: advance,
		Stop:    stop,
	}, nil
}

func toSnakeList(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		out = append(out, strcase.ToSnake(trimmed))
	}
	return out
}
