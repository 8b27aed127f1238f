package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
)

// KV holds the key/value settings shipped with a snapshot.
type KV struct {
	ContractedHoursUpdatedMonth string `json:"contracted_hours_updated_month"`
}

// ReadKV decodes the JSON side file at path.
func ReadKV(path string) (KV, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return KV{}, fmt.Errorf("read kv file: %w", err)
	}
	return ParseKV(data)
}

// ParseKV decodes KV JSON.
func ParseKV(data []byte) (KV, error) {
	var kv KV
	if err := json.Unmarshal(data, &kv); err != nil {
		return KV{}, fmt.Errorf("decode kv: %w", err)
	}
	return kv, nil
}

// WriteKV writes kv to path as indented JSON.
func WriteKV(path string, kv KV) error {
	data, err := json.MarshalIndent(kv, "", "  ")
	if err != nil {
		return fmt.Errorf("encode kv: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write kv file: %w", err)
	}
	return nil
}
