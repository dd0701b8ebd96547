package parsers

import (
	"encoding/json"
	"fmt"

	logx "github.com/wiresense/server/pkg/logger"
)

// Outcome is the result of coercing model text into T: either Parsed with a
// value, or Unparsable carrying the reason. Callers decide how to degrade;
// nothing here returns an error.
type Outcome[T any] struct {
	value  T
	reason string
	parsed bool
}

// Parsed wraps a successfully decoded value.
func Parsed[T any](value T) Outcome[T] {
	return Outcome[T]{value: value, parsed: true}
}

// Unparsable records a failed decode.
func Unparsable[T any](reason string) Outcome[T] {
	return Outcome[T]{reason: reason}
}

// Get returns the value and whether the outcome is Parsed.
func (o Outcome[T]) Get() (T, bool) { return o.value, o.parsed }

// Reason explains an Unparsable outcome; empty when Parsed.
func (o Outcome[T]) Reason() string { return o.reason }

// DecodeArray finds the first JSON array in raw and decodes it into []T.
func DecodeArray[T any](component, raw string) Outcome[[]T] {
	return decode[[]T](component, raw, FirstJSONArray)
}

// DecodeObject finds the first JSON object in raw and decodes it into T.
func DecodeObject[T any](component, raw string) Outcome[T] {
	return decode[T](component, raw, FirstJSONObject)
}

func decode[T any](component, raw string, locate func(string) (string, bool)) (out Outcome[T]) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", component).Msgf("panic recovered: %v", r)
			out = Unparsable[T](fmt.Sprintf("panic: %v", r))
		}
	}()

	fragment, ok := locate(raw)
	if !ok {
		logx.Debug().
			Str("component", component).
			Str("snippet", safeSnippet(raw)).
			Msg("no JSON found in model output")
		return Unparsable[T]("no JSON found")
	}
	var v T
	if err := json.Unmarshal([]byte(fragment), &v); err != nil {
		logx.Debug().
			Err(err).
			Str("component", component).
			Str("snippet", safeSnippet(fragment)).
			Msg("model JSON did not match expected shape")
		return Unparsable[T](err.Error())
	}
	return Parsed(v)
}
