package netlist

import (
	"encoding/json"
	"fmt"
	"os"
)

// File is the on-disk netlist format: raw nets plus optional hints.
type File struct {
	Nets  []RawNet `json:"nets"`
	Hints Hints    `json:"hints,omitempty"`
}

// SaveToFile writes the netlist to a JSON file.
func (f *File) SaveToFile(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal netlist: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadFromFile reads a netlist from a JSON file.
func LoadFromFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal netlist: %w", err)
	}

	for _, n := range f.Nets {
		if n.Name == "" {
			return nil, fmt.Errorf("netlist contains a net with no name")
		}
	}
	return &f, nil
}
