/*
service.go - Seeding, ingest and read operations over a Store

PURPOSE:
  Service is what the HTTP layer and the leave workflow call. It owns the
  rules; the Store only owns persistence.

INGEST FLOW:
  1. Resolve every incoming key through the registry (unknown/null: skip)
  2. Convert every recognized value to its typed Value (bad value: reject
     the whole batch before anything is written)
  3. EnsureSeeded, so a brand-new user ends up with defaults + overrides
  4. Upsert each field

PARTIAL FAILURE:
  Each upsert is atomic on its own; the batch is not. A storage failure on
  the third field leaves the first two committed. The returned count says
  how many were written.
*/
package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Service implements the fact operations on top of a Store.
type Service struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

// NewService creates a Service. A nil logger disables logging.
func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Store() Store { return s.store }

// EnsureSeeded inserts the default fact set for a user with no facts.
// Once any fact exists for the user it never reseeds.
func (s *Service) EnsureSeeded(ctx context.Context, userID string) (bool, error) {
	if err := requireUser(userID); err != nil {
		return false, err
	}
	defaults := Defaults(userID, s.now().UTC())
	seeded, err := s.store.SeedIfEmpty(ctx, userID, defaults)
	if err != nil {
		return false, Storage("seed", err)
	}
	if seeded {
		s.log.Info("seeded default facts", zap.String("user_id", userID), zap.Int("count", len(defaults)))
	}
	return seeded, nil
}

type fieldWrite struct {
	def   FieldDefinition
	value Value
}

// Ingest applies an extracted field batch and returns how many fields were
// written. Unknown keys and null values are skipped and not counted.
func (s *Service) Ingest(ctx context.Context, userID string, fields map[string]any) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	writes := make([]fieldWrite, 0, len(keys))
	for _, k := range keys {
		raw := fields[k]
		def, ok := Resolve(k)
		if !ok || raw == nil {
			continue
		}
		v, err := ParseValue(def, raw)
		if err != nil {
			return 0, err
		}
		writes = append(writes, fieldWrite{def: def, value: v})
	}

	if _, err := s.EnsureSeeded(ctx, userID); err != nil {
		return 0, err
	}
	return s.write(ctx, userID, writes)
}

func (s *Service) write(ctx context.Context, userID string, writes []fieldWrite) (int, error) {
	written := 0
	for _, w := range writes {
		now := s.now().UTC()
		rec := Record{
			UserID:      userID,
			DataType:    w.def.DataType,
			Value:       w.value,
			Unit:        w.def.Unit,
			Description: w.def.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.Upsert(ctx, rec); err != nil {
			s.log.Error("fact upsert failed",
				zap.String("user_id", userID),
				zap.String("data_type", w.def.DataType),
				zap.Int("written", written),
				zap.Error(err))
			return written, Storage("upsert "+w.def.DataType, err)
		}
		written++
	}
	if written > 0 {
		s.log.Debug("facts written", zap.String("user_id", userID), zap.Int("count", written))
	}
	return written, nil
}

// Latest returns the record for one data type.
func (s *Service) Latest(ctx context.Context, userID, dataType string) (Record, error) {
	if err := requireUser(userID); err != nil {
		return Record{}, err
	}
	rec, err := s.store.Get(ctx, userID, dataType)
	if err != nil {
		return Record{}, Storage("get", err)
	}
	return rec, nil
}

// All returns one record per data type, ordered by data type. A user with
// no facts yields an empty slice.
func (s *Service) All(ctx context.Context, userID string) ([]Record, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	recs, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, Storage("list", err)
	}
	return recs, nil
}

// Summary returns the fixed-shape aggregate for a user with at least one
// fact.
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	recs, err := s.All(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	if len(recs) == 0 {
		return Summary{}, &NotFoundError{Kind: "user", ID: userID}
	}
	return NewSummary(recs), nil
}

// LeaveBalance returns the stored leave balance, 0 when absent.
func (s *Service) LeaveBalance(ctx context.Context, userID string) (float64, error) {
	rec, err := s.Latest(ctx, userID, DataTypeLeave)
	if IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Value.Number, nil
}

// SetLeaveBalance writes the leave balance through the normal ingest path.
func (s *Service) SetLeaveBalance(ctx context.Context, userID string, days float64) error {
	if _, err := s.EnsureSeeded(ctx, userID); err != nil {
		return err
	}
	_, err := s.write(ctx, userID, []fieldWrite{{def: FieldLeaveDays.Definition(), value: NumberValue(days)}})
	return err
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return Storage("ping", s.store.Ping(ctx))
}

// =============================================================================
// VALUE PARSING
// =============================================================================

// ParseValue converts a raw decoded JSON value into the typed Value the
// field expects.
func ParseValue(def FieldDefinition, raw any) (Value, error) {
	switch def.ValueKind {
	case KindDate:
		d, err := parseDate(raw)
		if err != nil {
			return Value{}, &ValidationError{Field: def.ExternalKey, Reason: err.Error()}
		}
		return DateValue(d), nil
	default:
		n, err := parseNumber(raw)
		if err != nil {
			return Value{}, &ValidationError{Field: def.ExternalKey, Reason: err.Error()}
		}
		return NumberValue(n), nil
	}
}

// parseNumber accepts finite numbers only; NaN and infinities cannot be
// stored or rendered as JSON.
func parseNumber(raw any) (float64, error) {
	n, err := toFloat(raw)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("expected a finite number, got %v", n)
	}
	return n, nil
}

func toFloat(raw any) (float64, error) {
	switch x := raw.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", x.String())
		}
		return n, nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", raw)
	}
}

func parseDate(raw any) (string, error) {
	switch x := raw.(type) {
	case time.Time:
		return x.Format(DateLayout), nil
	case string:
		x = strings.TrimSpace(x)
		if t, err := time.Parse(DateLayout, x); err == nil {
			return t.Format(DateLayout), nil
		}
		if t, err := time.Parse(time.RFC3339, x); err == nil {
			return t.Format(DateLayout), nil
		}
		return "", fmt.Errorf("expected a YYYY-MM-DD date, got %q", x)
	default:
		return "", fmt.Errorf("expected a YYYY-MM-DD date, got %T", raw)
	}
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return &ValidationError{Field: "user_id", Reason: "required"}
	}
	return nil
}
