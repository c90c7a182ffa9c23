// Package hivefile reads a hive registry seed file.
//
// The file is a YAML list:
//
//	- name: Main Hive
//	  location: Hemma
//	  color: "#F59E0B"
//	- name: North Hive
package hivefile

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/beekeep/internal/model"
)

type entry struct {
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
	Notes    string `yaml:"notes"`
	Color    string `yaml:"color"`
}

// Load reads hives from the YAML file at path.
func Load(path string) ([]model.Hive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "hivefile: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a hive list. Every entry needs a name and names must be
// unique, ignoring case.
func Parse(data []byte) ([]model.Hive, error) {
	var entries []entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrap(err, "hivefile: parse")
	}

	seen := make(map[string]int, len(entries))
	hives := make([]model.Hive, 0, len(entries))
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, eris.Errorf("hivefile: entry %d has no name", i+1)
		}
		key := strings.ToLower(name)
		if prev, dup := seen[key]; dup {
			return nil, eris.Errorf("hivefile: entry %d repeats the name %q of entry %d", i+1, name, prev)
		}
		seen[key] = i + 1
		hives = append(hives, model.Hive{
			Name:     name,
			Location: strings.TrimSpace(e.Location),
			Notes:    strings.TrimSpace(e.Notes),
			Color:    strings.TrimSpace(e.Color),
		})
	}
	return hives, nil
}
