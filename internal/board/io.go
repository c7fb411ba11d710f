package board

import (
	"encoding/json"
	"fmt"
	"os"
)

// SaveToFile writes the board to a JSON file.
func (b *Board) SaveToFile(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal board: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadFromFile reads and validates a board from a JSON file.
func LoadFromFile(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var b Board
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal board: %w", err)
	}

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid board: %w", err)
	}

	return &b, nil
}
