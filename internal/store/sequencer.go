package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/atomic"
)

const DefaultLabelFormat = "{dept}-{number:03d}"

var labelPlaceholder = regexp.MustCompile(`\{(dept|number)(?::0(\d+)d)?\}`)

// LabelFormat renders display labels such as "A-007" from a template with
// {dept} and {number} or {number:0Nd} placeholders.
type LabelFormat struct {
	template string
}

func ParseLabelFormat(template string) (LabelFormat, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		template = DefaultLabelFormat
	}
	hasNumber := false
	for _, match := range labelPlaceholder.FindAllStringSubmatch(template, -1) {
		if match[1] == "number" {
			hasNumber = true
		}
	}
	if !hasNumber {
		return LabelFormat{}, fmt.Errorf("%w: label format %q has no {number} placeholder", ErrInvalidInput, template)
	}
	return LabelFormat{template: template}, nil
}

func (f LabelFormat) Render(department string, number int64) string {
	template := f.template
	if template == "" {
		template = DefaultLabelFormat
	}
	return labelPlaceholder.ReplaceAllStringFunc(template, func(placeholder string) string {
		match := labelPlaceholder.FindStringSubmatch(placeholder)
		if match[1] == "dept" {
			return department
		}
		if match[2] == "" {
			return strconv.FormatInt(number, 10)
		}
		width, _ := strconv.Atoi(match[2])
		return fmt.Sprintf("%0*d", width, number)
	})
}

func (f LabelFormat) String() string {
	if f.template == "" {
		return DefaultLabelFormat
	}
	return f.template
}

// Sequencer hands out per-department sequence numbers starting at 1.
// The department set is fixed at construction, so the map is never written
// after NewSequencer returns and only the counters themselves change.
type Sequencer struct {
	counters map[string]*atomic.Int64
	format   LabelFormat
}

func NewSequencer(departments []string, format LabelFormat) *Sequencer {
	counters := make(map[string]*atomic.Int64, len(departments))
	for _, code := range departments {
		counters[code] = atomic.NewInt64(0)
	}
	return &Sequencer{counters: counters, format: format}
}

func (s *Sequencer) Next(department string) (int64, error) {
	counter, ok := s.counters[department]
	if !ok {
		return 0, fmt.Errorf("%w: unknown department %q", ErrInvalidInput, department)
	}
	return counter.Inc(), nil
}

// Current returns the last number issued for the department, 0 if none.
func (s *Sequencer) Current(department string) int64 {
	counter, ok := s.counters[department]
	if !ok {
		return 0
	}
	return counter.Load()
}

func (s *Sequencer) Known(department string) bool {
	_, ok := s.counters[department]
	return ok
}

func (s *Sequencer) Label(department string, number int64) string {
	return s.format.Render(department, number)
}
