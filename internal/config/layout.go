package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"qms/token-queue/internal/models"
)

// Layout is the fixed shape of a site: which departments exist and which
// counter serves which department.
type Layout struct {
	Departments []DepartmentSpec `yaml:"departments"`
	Counters    []CounterSpec    `yaml:"counters"`
}

type DepartmentSpec struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type CounterSpec struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Department string `yaml:"department"`
	Active     *bool  `yaml:"active"`
}

func DefaultLayout() Layout {
	return Layout{
		Departments: []DepartmentSpec{
			{Code: "A", Name: "General Enquiry", Description: "General questions and information"},
			{Code: "B", Name: "Registration", Description: "New registrations and updates"},
			{Code: "C", Name: "Billing", Description: "Payments and billing enquiries"},
			{Code: "D", Name: "Consultation", Description: "Consultations with specialists"},
		},
		Counters: []CounterSpec{
			{ID: "1", Name: "Counter 1", Department: "A"},
			{ID: "2", Name: "Counter 2", Department: "B"},
			{ID: "3", Name: "Counter 3", Department: "C"},
			{ID: "4", Name: "Counter 4", Department: "D"},
		},
	}
}

// LoadLayout reads a YAML layout file; an empty path yields DefaultLayout.
func LoadLayout(path string) (Layout, error) {
	if path == "" {
		return DefaultLayout(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout: %w", err)
	}
	return ParseLayout(data)
}

func ParseLayout(data []byte) (Layout, error) {
	var layout Layout
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&layout); err != nil {
		return Layout{}, fmt.Errorf("parse layout: %w", err)
	}
	if err := layout.Validate(); err != nil {
		return Layout{}, err
	}
	return layout, nil
}

func (l Layout) Validate() error {
	if len(l.Departments) == 0 {
		return errors.New("layout: at least one department is required")
	}
	codes := make(map[string]bool, len(l.Departments))
	for _, dept := range l.Departments {
		if dept.Code == "" {
			return errors.New("layout: department code is required")
		}
		if codes[dept.Code] {
			return fmt.Errorf("layout: duplicate department %q", dept.Code)
		}
		codes[dept.Code] = true
	}
	ids := make(map[string]bool, len(l.Counters))
	for _, counter := range l.Counters {
		if counter.ID == "" {
			return errors.New("layout: counter id is required")
		}
		if ids[counter.ID] {
			return fmt.Errorf("layout: duplicate counter %q", counter.ID)
		}
		ids[counter.ID] = true
		if !codes[counter.Department] {
			return fmt.Errorf("layout: counter %q bound to unknown department %q", counter.ID, counter.Department)
		}
	}
	return nil
}

func (l Layout) DepartmentModels() []models.Department {
	out := make([]models.Department, 0, len(l.Departments))
	for _, dept := range l.Departments {
		name := dept.Name
		if name == "" {
			name = dept.Code
		}
		out = append(out, models.Department{Code: dept.Code, Name: name, Description: dept.Description})
	}
	return out
}

// CounterModels defaults unnamed counters to "Counter <id>" and unset
// active flags to true.
func (l Layout) CounterModels() []models.Counter {
	out := make([]models.Counter, 0, len(l.Counters))
	for _, counter := range l.Counters {
		name := counter.Name
		if name == "" {
			name = "Counter " + counter.ID
		}
		active := true
		if counter.Active != nil {
			active = *counter.Active
		}
		out = append(out, models.Counter{
			CounterID:   counter.ID,
			DisplayName: name,
			Department:  counter.Department,
			Active:      active,
		})
	}
	return out
}

func (l Layout) Marshal() ([]byte, error) {
	return yaml.Marshal(l)
}
