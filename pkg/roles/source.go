package roles

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultsDocument is the on-disk shape of a tenant provisioning defaults
// file. Keys under "roles" must be known role names.
type defaultsDocument struct {
	Roles map[string][]string `yaml:"roles"`
}

// ParseDefaults decodes a YAML defaults document into a DefaultsSet.
// Unknown role names are rejected rather than silently dropped so a typo in
// provisioning config cannot erase a whole tier of grants.
func ParseDefaults(data []byte) (DefaultsSet, error) {
	var doc defaultsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Join(ErrInvalidDefaults, err)
	}
	if len(doc.Roles) == 0 {
		return nil, errors.Join(ErrInvalidDefaults, errors.New("no roles defined"))
	}

	set := make(DefaultsSet, len(doc.Roles))
	for name, actions := range doc.Roles {
		role, err := Parse(name)
		if err != nil {
			return nil, err
		}
		set[role] = actions
	}
	return set, nil
}

// LoadDefaultsFile reads and parses a YAML defaults file.
func LoadDefaultsFile(path string) (DefaultsSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidDefaults, fmt.Errorf("read %s: %w", path, err))
	}
	return ParseDefaults(data)
}
