package repository

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/okian/matchpulse/internal/domain/model"
	"github.com/okian/matchpulse/internal/domain/types"
)

// Durable stores persist the wire forms from the types package so that a
// stored record and an API response share one schema.

func encodeMatch(m model.Match) ([]byte, error) {
	b, err := json.Marshal(types.FromMatch(m))
	if err != nil {
		return nil, fmt.Errorf("encode match %s: %w", m.MatchID, err)
	}
	return b, nil
}

func decodeMatch(b []byte) (model.Match, error) {
	var dto types.MatchState
	if err := json.Unmarshal(b, &dto); err != nil {
		return model.Match{}, fmt.Errorf("decode match: %w", err)
	}
	return dto.ToModel()
}

func encodeEvent(e model.Event) ([]byte, error) {
	b, err := json.Marshal(types.FromEvent(e))
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.EventID, err)
	}
	return b, nil
}

func decodeEvent(b []byte) (model.Event, error) {
	var dto types.Event
	if err := json.Unmarshal(b, &dto); err != nil {
		return model.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return dto.ToModel()
}

func encodePayload(p map[string]any) ([]byte, error) {
	if len(p) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}

func decodePayload(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var p map[string]any
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

func encodeSnapshot(s model.AnalyticsSnapshot) ([]byte, error) {
	b, err := json.Marshal(types.FromSnapshot(s))
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", s.SnapshotID, err)
	}
	return b, nil
}

func decodeSnapshot(b []byte) (model.AnalyticsSnapshot, error) {
	var dto types.Snapshot
	if err := json.Unmarshal(b, &dto); err != nil {
		return model.AnalyticsSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return dto.ToModel()
}
