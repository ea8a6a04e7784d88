package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HeaderSchemaVersion tracks the schema version for journal header documents.
const HeaderSchemaVersion = 1

// TerrainParameters captures the terrain tuning the match was generated with,
// enough to regenerate the identical battlefield from the header alone.
type TerrainParameters map[string]float64

// Clone returns a defensive copy of the terrain parameters map.
func (p TerrainParameters) Clone() TerrainParameters {
	if len(p) == 0 {
		return nil
	}
	clone := make(TerrainParameters, len(p))
	for key, value := range p {
		clone[key] = value
	}
	return clone
}

// Header is the metadata persisted alongside a journal bundle.
type Header struct {
	SchemaVersion int               `json:"schema_version"`
	MatchSeed     string            `json:"match_seed"`
	Rounds        int               `json:"rounds"`
	Difficulty    int               `json:"difficulty"`
	TerrainParams TerrainParameters `json:"terrain_params,omitempty"`
	FilePointer   string            `json:"file_pointer"`
}

// Validate ensures the header carries enough information for catalogue tooling.
func (h Header) Validate() error {
	if h.SchemaVersion <= 0 {
		return fmt.Errorf("schema_version must be positive")
	}
	//1.- The pointer is the only way tooling can locate the bundle contents.
	if strings.TrimSpace(h.FilePointer) == "" {
		return fmt.Errorf("file_pointer must not be empty")
	}
	return nil
}

// WriteHeader persists the supplied header to the provided file path.
func WriteHeader(path string, header Header) error {
	if err := header.Validate(); err != nil {
		return err
	}
	//1.- Indented JSON keeps the header readable for manual inspection.
	payload, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

// ReadHeader loads and validates a journal header from disk.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, err
	}
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, err
	}
	if err := header.Validate(); err != nil {
		return Header{}, err
	}
	return header, nil
}
