package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// currentKey is the reserved key holding the active state in the encoded map.
// Every other key is a decimal sequence number.
const currentKey = "current"

// HistoryEntry is one immutable record of the audit log: the state a field
// moved to and who caused it (empty when unattributed).
type HistoryEntry struct {
	State  State
	Author string
}

// StateValue is the persisted form of a state-machine field.
//
// Invariants once set: History is non-empty, sequence numbers start at 1, and
// Current equals the state of the highest-numbered entry. Values are treated as
// immutable; With returns a new value.
type StateValue struct {
	Current State
	History map[int]HistoryEntry
}

// NewStateValue promotes a bare state token to a StateValue with a single,
// unattributed history entry. An empty token yields the zero value.
func NewStateValue(s State) StateValue {
	if s == "" {
		return StateValue{}
	}
	return StateValue{
		Current: s,
		History: map[int]HistoryEntry{1: {State: s}},
	}
}

// IsZero reports whether the field was never assigned.
func (v StateValue) IsZero() bool {
	return v.Current == "" && len(v.History) == 0
}

// LastSeq returns the highest sequence number, or 0 for an unset value.
func (v StateValue) LastSeq() int {
	last := 0
	for seq := range v.History {
		if seq > last {
			last = seq
		}
	}
	return last
}

// Seqs returns the sequence numbers in ascending order.
func (v StateValue) Seqs() []int {
	return slices.Sorted(maps.Keys(v.History))
}

// Entry returns the history entry stored at seq.
func (v StateValue) Entry(seq int) (HistoryEntry, bool) {
	e, ok := v.History[seq]
	return e, ok
}

// With returns a copy of v with next appended at LastSeq()+1 and made current.
func (v StateValue) With(next State, author string) StateValue {
	history := make(map[int]HistoryEntry, len(v.History)+1)
	maps.Copy(history, v.History)
	history[v.LastSeq()+1] = HistoryEntry{State: next, Author: author}
	return StateValue{Current: next, History: history}
}

// Equal reports whether both values hold the same current state and history.
func (v StateValue) Equal(other StateValue) bool {
	return v.Current == other.Current && maps.Equal(v.History, other.History)
}

// Encode flattens v into the storage map: "current" holds the active state and
// each sequence number maps to a JSON array `[state, author]`.
func (v StateValue) Encode() map[string]string {
	out := make(map[string]string, len(v.History)+1)
	out[currentKey] = string(v.Current)
	for seq, e := range v.History {
		raw, _ := json.Marshal([2]string{string(e.State), e.Author})
		out[strconv.Itoa(seq)] = string(raw)
	}
	return out
}

// DecodeState turns any stored or assigned representation into a StateValue.
// It accepts a StateValue, a bare token, the flat encoded map (string or
// already-decoded JSON values, with entries as JSON-array strings, arrays, or
// {"state","author"} objects). It never fails: unknown shapes are treated as a
// bare token.
func DecodeState(raw any) StateValue {
	switch v := raw.(type) {
	case nil:
		return StateValue{}
	case StateValue:
		return v
	case *StateValue:
		if v == nil {
			return StateValue{}
		}
		return *v
	case State:
		return NewStateValue(v)
	case string:
		return NewStateValue(State(v))
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[k] = val
		}
		return decodeMap(m)
	case map[string]any:
		return decodeMap(v)
	default:
		return NewStateValue(State(fmt.Sprint(v)))
	}
}

func decodeMap(m map[string]any) StateValue {
	out := StateValue{History: make(map[int]HistoryEntry)}
	for k, val := range m {
		if k == currentKey {
			out.Current = State(stringify(val))
			continue
		}
		seq, err := strconv.Atoi(k)
		if err != nil || seq < 1 {
			continue
		}
		out.History[seq] = decodeEntry(val)
	}

	switch {
	case out.Current == "" && len(out.History) == 0:
		return StateValue{}
	case len(out.History) == 0:
		return NewStateValue(out.Current)
	case out.Current == "":
		out.Current = out.History[out.LastSeq()].State
	}
	return out
}

func decodeEntry(val any) HistoryEntry {
	switch v := val.(type) {
	case string:
		var pair []any
		if err := json.Unmarshal([]byte(v), &pair); err == nil {
			return entryFromSlice(pair)
		}
		return HistoryEntry{State: State(v)}
	case []string:
		pair := make([]any, len(v))
		for i, s := range v {
			pair[i] = s
		}
		return entryFromSlice(pair)
	case []any:
		return entryFromSlice(v)
	case map[string]any:
		return HistoryEntry{State: State(stringify(v["state"])), Author: stringify(v["author"])}
	default:
		return HistoryEntry{State: State(stringify(v))}
	}
}

func entryFromSlice(pair []any) HistoryEntry {
	var e HistoryEntry
	if len(pair) > 0 {
		e.State = State(stringify(pair[0]))
	}
	if len(pair) > 1 {
		e.Author = stringify(pair[1])
	}
	return e
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

// Value stores the encoded map as a JSON object in a single column.
func (v StateValue) Value() (driver.Value, error) {
	if v.IsZero() {
		return nil, nil
	}
	raw, err := json.Marshal(v.Encode())
	if err != nil {
		return nil, fmt.Errorf("encoding state value: %w", err)
	}
	return string(raw), nil
}

// Scan reads a column written by Value. Legacy rows holding a bare token or a
// JSON string are promoted as on first assignment.
func (v *StateValue) Scan(src any) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*v = StateValue{}
		return nil
	case string:
		raw = []byte(s)
	case []byte:
		raw = s
	default:
		*v = DecodeState(s)
		return nil
	}

	trimmed := bytes.TrimSpace(raw)
	var decoded any
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '"') && json.Unmarshal(trimmed, &decoded) == nil {
		*v = DecodeState(decoded)
		return nil
	}
	*v = DecodeState(string(trimmed))
	return nil
}
