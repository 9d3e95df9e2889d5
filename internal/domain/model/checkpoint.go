package model

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Checkpoint is a runner's passage at one timing point.
type Checkpoint struct {
	Point         string  `json:"point" validate:"required"`
	Kilometer     float64 `json:"kilometer" validate:"gte=0"`
	PassageTime   string  `json:"passage_time"`
	RaceTime      string  `json:"race_time"`
	Speed         string  `json:"speed"`
	EffortSpeed   string  `json:"effort_speed"`
	ElevationGain int     `json:"elevation_gain" validate:"gte=0"`
	ElevationLoss int     `json:"elevation_loss" validate:"gte=0"`
	Rank          *int    `json:"rank"`
	RankEvolution *int    `json:"rank_evolution"`
}

var (
	signedIntRe = regexp.MustCompile(`[+-]?\d+`)
	decimalRe   = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// FirstInt returns the first signed integer found in s.
func FirstInt(s string) (int, bool) {
	m := signedIntRe.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FirstFloat returns the first decimal number found in s; a comma is read as the decimal point.
func FirstFloat(s string) (float64, bool) {
	m := decimalRe.FindString(strings.ReplaceAll(s, ",", "."))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseDuration reads "H:MM:SS" (or "H:MM") as accumulated seconds. Hours are unbounded.
func ParseDuration(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	mult := []int{3600, 60, 1}
	total := 0
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, false
		}
		if i > 0 && n > 59 {
			return 0, false
		}
		total += n * mult[i]
	}
	return total, true
}

// ParseSpeed reads "7.5 km/h" style values.
func ParseSpeed(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == Sentinel || s == NotApplicable {
		return 0, false
	}
	v, ok := FirstFloat(s)
	if !ok || v < 0 {
		return 0, false
	}
	return v, true
}

// FormatSpeed renders v the way speeds are persisted.
func FormatSpeed(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " km/h"
}

// RaceSeconds returns the elapsed race time at this checkpoint in seconds.
func (c *Checkpoint) RaceSeconds() (int, bool) { return ParseDuration(c.RaceTime) }

// SpeedKmh returns the reported speed.
func (c *Checkpoint) SpeedKmh() (float64, bool) { return ParseSpeed(c.Speed) }

// EffortSpeedKmh returns the reported effort speed.
func (c *Checkpoint) EffortSpeedKmh() (float64, bool) { return ParseSpeed(c.EffortSpeed) }

// UnmarshalJSON accepts ranks stored as numbers, numeric strings or null.
func (c *Checkpoint) UnmarshalJSON(b []byte) error {
	type plain Checkpoint
	aux := struct {
		*plain
		Rank          json.RawMessage `json:"rank"`
		RankEvolution json.RawMessage `json:"rank_evolution"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	c.Rank = flexInt(aux.Rank)
	c.RankEvolution = flexInt(aux.RankEvolution)
	return nil
}

func flexInt(raw json.RawMessage) *int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
	} else {
		s = string(raw)
	}
	n, ok := FirstInt(strings.Trim(s, "()"))
	if !ok {
		return nil
	}
	return &n
}
