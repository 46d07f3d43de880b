package storage

import (
	"encoding/json"
	"fmt"

	"github.com/starford/othala/internal/entity"
)

// ReadAll decodes every stored record. Undecodable files are returned as an
// error with the offending id; the caller decides how tolerant to be.
func ReadAll(p Provider) ([]entity.Record, error) {
	metas, err := p.List()
	if err != nil {
		return nil, err
	}
	out := make([]entity.Record, 0, len(metas))
	for _, m := range metas {
		data, err := p.Read(m.ID)
		if err != nil {
			return nil, err
		}
		var rec entity.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("storage: decode record %s: %w", m.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// WriteRecord persists one record under its entity id.
func WriteRecord(p Provider, rec entity.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode record %s: %w", rec.ID, err)
	}
	return p.Write(rec.ID, data)
}

// DecodeRecord parses one raw record file.
func DecodeRecord(data []byte) (entity.Record, error) {
	var rec entity.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return entity.Record{}, fmt.Errorf("storage: decode record: %w", err)
	}
	return rec, nil
}
