package hivefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hives.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- name: Main Hive
  location: Hemma
  color: "#F59E0B"
- name: "  North Hive "
  notes: Buckfast, 2025 queen
- name: Södra Kupan
`), 0644))

	hives, err := Load(path)
	require.NoError(t, err)
	require.Len(t, hives, 3)

	assert.Equal(t, "Main Hive", hives[0].Name)
	assert.Equal(t, "Hemma", hives[0].Location)
	assert.Equal(t, "#F59E0B", hives[0].Color)
	assert.Equal(t, "North Hive", hives[1].Name)
	assert.Equal(t, "Buckfast, 2025 queen", hives[1].Notes)
	assert.Equal(t, "Södra Kupan", hives[2].Name)
	assert.Empty(t, hives[2].ID, "ids are assigned by the store")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"not a list", "name: Main Hive", "hivefile: parse"},
		{"missing name", "- location: Hemma", "entry 1 has no name"},
		{"duplicate", "- name: Main Hive\n- name: main hive", `entry 2 repeats the name "main hive" of entry 1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	hives, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, hives)
}
