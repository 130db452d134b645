// Package schedule assembles multi-day irrigation plans and renders the
// controller command tokens the actuator runtime consumes.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"irricast/internal/types"
)

// CommandToken is the compact line emitted to the irrigation controller.
// Rendered form:
//
//	CMD=IRRIGATE CONF=0.80 SM=25.0 T=28.0 TS=2026-08-26T00:00:00Z
//
// The line is both human-readable and machine-parseable; field order is
// fixed and every field is always present.
type CommandToken struct {
	Command      types.Command
	Confidence   float64
	SoilMoisture float64
	TemperatureC float64
	Timestamp    time.Time
}

// Encode renders the token line.
func (t CommandToken) Encode() string {
	return fmt.Sprintf("CMD=%s CONF=%.2f SM=%.1f T=%.1f TS=%s",
		t.Command,
		types.ClampConfidence(t.Confidence),
		t.SoilMoisture,
		t.TemperatureC,
		t.Timestamp.UTC().Format(time.RFC3339),
	)
}

// ParseToken parses a rendered token line back into its fields. Used by
// round-trip checks; the controller runtime carries its own parser.
func ParseToken(line string) (CommandToken, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return CommandToken{}, fmt.Errorf("command token: expected 5 fields, got %d", len(fields))
	}

	var tok CommandToken
	for i, prefix := range []string{"CMD=", "CONF=", "SM=", "T=", "TS="} {
		if !strings.HasPrefix(fields[i], prefix) {
			return CommandToken{}, fmt.Errorf("command token: field %d missing %q prefix", i, prefix)
		}
		value := fields[i][len(prefix):]

		var err error
		switch prefix {
		case "CMD=":
			tok.Command = types.Command(value)
			if !tok.Command.Valid() {
				return CommandToken{}, fmt.Errorf("command token: unknown command %q", value)
			}
		case "CONF=":
			tok.Confidence, err = strconv.ParseFloat(value, 64)
		case "SM=":
			tok.SoilMoisture, err = strconv.ParseFloat(value, 64)
		case "T=":
			tok.TemperatureC, err = strconv.ParseFloat(value, 64)
		case "TS=":
			tok.Timestamp, err = time.Parse(time.RFC3339, value)
		}
		if err != nil {
			return CommandToken{}, fmt.Errorf("command token: parsing %s%s: %w", prefix, value, err)
		}
	}

	if tok.Confidence < 0 || tok.Confidence > 1 {
		return CommandToken{}, fmt.Errorf("command token: confidence %.2f out of range", tok.Confidence)
	}
	return tok, nil
}

// tokenFor renders the controller token for one decision. tempC is the
// forecast mean temperature, or the last observed temperature when the day
// had no forecast.
func tokenFor(d types.IrrigationDecision, tempC float64) string {
	return CommandToken{
		Command:      d.Command,
		Confidence:   d.Confidence,
		SoilMoisture: d.PredictedMoisture,
		TemperatureC: tempC,
		Timestamp:    d.Date,
	}.Encode()
}
