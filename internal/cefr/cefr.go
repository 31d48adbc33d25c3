// Package cefr holds the level ladder (A1..C2) and the three exam steps that
// each target two adjacent levels.
package cefr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Level string

const (
	None Level = ""
	A1   Level = "A1"
	A2   Level = "A2"
	B1   Level = "B1"
	B2   Level = "B2"
	C1   Level = "C1"
	C2   Level = "C2"
)

// Ordered lists every level from lowest to highest.
var Ordered = []Level{A1, A2, B1, B2, C1, C2}

func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if l == None || l.Valid() {
		return l, nil
	}
	return None, fmt.Errorf("unknown level %q", s)
}

func (l Level) Valid() bool { return l.Rank() > 0 }

// Rank is 1..6 for A1..C2 and 0 for None or anything unknown.
func (l Level) Rank() int {
	for i, o := range Ordered {
		if o == l {
			return i + 1
		}
	}
	return 0
}

// Max returns the higher of two levels; None loses to any real level.
func Max(a, b Level) Level {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// MarshalJSON encodes None as null.
func (l Level) MarshalJSON() ([]byte, error) {
	if l == None {
		return []byte("null"), nil
	}
	return json.Marshal(string(l))
}

func (l *Level) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*l = None
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

type Step int

const (
	Step1 Step = 1
	Step2 Step = 2
	Step3 Step = 3
)

var levelsByStep = map[Step][]Level{
	Step1: {A1, A2},
	Step2: {B1, B2},
	Step3: {C1, C2},
}

func ParseStep(s string) (Step, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid step %q", s)
	}
	st := Step(n)
	if !st.Valid() {
		return 0, fmt.Errorf("step %d out of range", n)
	}
	return st, nil
}

func (s Step) Valid() bool { return s >= Step1 && s <= Step3 }

// Levels returns a fresh copy of the two levels targeted by the step.
func (s Step) Levels() []Level {
	ls := levelsByStep[s]
	out := make([]Level, len(ls))
	copy(out, ls)
	return out
}

// Owns reports whether l is one of the step's two levels.
func (s Step) Owns(l Level) bool {
	for _, o := range levelsByStep[s] {
		if o == l {
			return true
		}
	}
	return false
}
