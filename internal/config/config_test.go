package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "AVERAGE_SERVICE_MINUTES", "LABEL_FORMAT", "SESSION_TTL_MINUTES", "ANNOUNCER"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5, cfg.AverageServiceMinutes)
	assert.Equal(t, "{dept}-{number:03d}", cfg.LabelFormat)
	assert.Equal(t, 8*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "log", cfg.Announcer)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AVERAGE_SERVICE_MINUTES", "7")
	t.Setenv("AUTH_DISABLED", "true")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")
	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 7, cfg.AverageServiceMinutes)
	assert.True(t, cfg.AuthDisabled)
	assert.Equal(t, 30, cfg.RateLimitBurst)
}

func TestDefaultLayout(t *testing.T) {
	layout, err := LoadLayout("")
	require.NoError(t, err)
	require.NoError(t, layout.Validate())

	depts := layout.DepartmentModels()
	require.Len(t, depts, 4)
	assert.Equal(t, "Consultation", depts[3].Name)

	counters := layout.CounterModels()
	require.Len(t, counters, 4)
	assert.Equal(t, "Counter 3", counters[2].DisplayName)
	assert.Equal(t, "C", counters[2].Department)
	assert.True(t, counters[2].Active)
}

func TestLoadLayoutFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	body := `
departments:
  - code: LAB
    name: Laboratory
  - code: PH
counters:
  - id: lab-1
    department: LAB
  - id: ph-1
    name: Pharmacy Window
    department: PH
    active: false
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	layout, err := LoadLayout(path)
	require.NoError(t, err)
	depts := layout.DepartmentModels()
	assert.Equal(t, "PH", depts[1].Name)
	counters := layout.CounterModels()
	assert.Equal(t, "Counter lab-1", counters[0].DisplayName)
	assert.True(t, counters[0].Active)
	assert.Equal(t, "Pharmacy Window", counters[1].DisplayName)
	assert.False(t, counters[1].Active)
}

func TestParseLayoutRejects(t *testing.T) {
	cases := map[string]string{
		"no departments":     "counters: []\n",
		"unknown field":      "departments:\n  - code: A\n    colour: red\n",
		"duplicate dept":     "departments:\n  - code: A\n  - code: A\n",
		"unknown department": "departments:\n  - code: A\ncounters:\n  - id: \"1\"\n    department: B\n",
		"duplicate counter":  "departments:\n  - code: A\ncounters:\n  - id: \"1\"\n    department: A\n  - id: \"1\"\n    department: A\n",
		"empty counter id":   "departments:\n  - code: A\ncounters:\n  - department: A\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLayout([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestLayoutMarshalRoundTrip(t *testing.T) {
	data, err := DefaultLayout().Marshal()
	require.NoError(t, err)
	layout, err := ParseLayout(data)
	require.NoError(t, err)
	assert.Len(t, layout.Counters, 4)
}
