// Package alpha imports Alpha Progression CSV exports as completed workouts.
package alpha

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// "Session Name";"2026-02-19 4:54 h";"1:02 hr"
	sessionHeaderRe = regexp.MustCompile(`^"(.+)";"(\d{4}-\d{2}-\d{2}\s+\d+:\d+)\s+h";"(.+)"$`)

	// "1. Exercise Name · Equipment · 8 reps[· modifiers]"[;"warmup info"]
	exerciseHeaderRe = regexp.MustCompile(`^"(\d+)\.\s+(.+?)(?:\s+·\s+(\S.*?))?\s+·\s+(\d+)\s+reps(.*?)"(?:;"(.+)")?$`)

	// 1;115;8;1
	setRowRe = regexp.MustCompile(`^(\d+);(.+);(\d+);(.*)$`)

	// WU1 · 37,5 kg · 9 reps
	warmupRe = regexp.MustCompile(`WU(\d+)\s+·\s+(.+?)\s+kg\s+·\s+(\d+)\s+reps`)

	columnHeaderRe = regexp.MustCompile(`^#;KG;REPS;RIR$`)
)

// Session is one exported training session.
type Session struct {
	Name      string
	Date      time.Time
	Duration  string
	Exercises []Exercise
}

// Exercise is one numbered exercise within a session.
type Exercise struct {
	Number     int
	Name       string
	Equipment  string
	TargetReps int
	Sets       []Set
}

// Set is a working or warmup set. RIRTracked is false when the RIR column
// was left empty.
type Set struct {
	Number         int
	WeightKg       float64
	BodyweightPlus bool
	Reps           int
	RIR            float64
	RIRTracked     bool
	Warmup         bool
}

// parser accumulates sessions line by line. A blank line or a new session
// header closes the open session.
type parser struct {
	sessions []Session
	session  *Session
	exercise *Exercise
}

func (p *parser) closeExercise() {
	if p.exercise != nil && p.session != nil {
		p.session.Exercises = append(p.session.Exercises, *p.exercise)
	}
	p.exercise = nil
}

func (p *parser) closeSession() {
	p.closeExercise()
	if p.session != nil {
		p.sessions = append(p.sessions, *p.session)
	}
	p.session = nil
}

func (p *parser) line(line string) error {
	switch {
	case line == "":
		p.closeSession()
	case columnHeaderRe.MatchString(line):
	default:
		if m := sessionHeaderRe.FindStringSubmatch(line); m != nil {
			p.closeSession()
			date, err := parseSessionDate(m[2])
			if err != nil {
				return err
			}
			p.session = &Session{Name: m[1], Date: date, Duration: m[3]}
			return nil
		}
		if m := exerciseHeaderRe.FindStringSubmatch(line); m != nil {
			if p.session == nil {
				return fmt.Errorf("exercise without session: %q", line)
			}
			p.closeExercise()
			num, _ := strconv.Atoi(m[1])
			target, _ := strconv.Atoi(m[4])
			p.exercise = &Exercise{
				Number:     num,
				Name:       strings.TrimSpace(m[2]),
				Equipment:  strings.TrimSpace(m[3]),
				TargetReps: target,
				Sets:       parseWarmups(m[6]),
			}
			return nil
		}
		if m := setRowRe.FindStringSubmatch(line); m != nil {
			if p.exercise == nil {
				return fmt.Errorf("set data without exercise: %q", line)
			}
			num, _ := strconv.Atoi(m[1])
			weight, bw := parseWeight(m[2])
			reps, _ := strconv.Atoi(m[3])
			rir, tracked := parseDecimal(m[4])
			p.exercise.Sets = append(p.exercise.Sets, Set{
				Number:         num,
				WeightKg:       weight,
				BodyweightPlus: bw,
				Reps:           reps,
				RIR:            rir,
				RIRTracked:     tracked,
			})
		}
		// anything else is free-text metadata
	}
	return nil
}

// Parse reads an Alpha Progression CSV export.
func Parse(r io.Reader) ([]Session, error) {
	var p parser
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := p.line(strings.TrimSpace(scanner.Text())); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	p.closeSession()
	return p.sessions, nil
}

// parseSessionDate accepts both "2026-02-19 4:54" and "2026-02-19 16:54".
func parseSessionDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 3:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing session date %q", s)
}

// parseWarmups reads "WU1 · 37,5 kg · 9 reps<br>WU2 · 72,5 kg · 7 reps".
func parseWarmups(s string) []Set {
	if s == "" {
		return nil
	}
	var sets []Set
	for _, part := range strings.Split(s, "<br>") {
		m := warmupRe.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		weight, bw := parseWeight(m[2])
		reps, _ := strconv.Atoi(m[3])
		sets = append(sets, Set{Number: num, WeightKg: weight, BodyweightPlus: bw, Reps: reps, Warmup: true})
	}
	return sets
}

// parseWeight handles decimal commas and bodyweight-plus notation:
// "+35" is (35, true), "102,5" is (102.5, false).
func parseWeight(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		w, _ := parseDecimal(rest)
		return w, true
	}
	w, _ := parseDecimal(s)
	return w, false
}

// parseDecimal reads a number written with a decimal comma.
func parseDecimal(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseDurationMinutes reads the "1:02 hr" session length as minutes.
func parseDurationMinutes(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "hr"))
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, false
	}
	hours, err1 := strconv.Atoi(strings.TrimSpace(h))
	mins, err2 := strconv.Atoi(strings.TrimSpace(m))
	if err1 != nil || err2 != nil {
		return 0, false
	}
	return float64(hours*60 + mins), true
}
