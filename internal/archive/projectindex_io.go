package archive

import "encoding/json"

// LoadProjectIndex decodes data into a ProjectIndex, migrating a legacy
// `files[]` section forward if present (spec.md §9 Open Question (c)).
func LoadProjectIndex(data []byte) (*ProjectIndex, error) {
	var probe struct {
		Version int      `json:"version"`
		Files   []string `json:"files"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	idx := NewProjectIndex()
	if probe.Version == 0 && probe.Files != nil {
		if err := json.Unmarshal(data, &struct {
			*ProjectIndex
		}{idx}); err != nil {
			return nil, err
		}
		idx.MigrateLegacy(legacyProjectIndex{Files: probe.Files})
		return idx, nil
	}

	if err := json.Unmarshal(data, idx); err != nil {
		return nil, err
	}
	if idx.Version == 0 {
		idx.Version = currentIndexVersion
	}
	return idx, nil
}

// Marshal renders the index as indented JSON for on-disk storage.
func (p *ProjectIndex) Marshal() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
