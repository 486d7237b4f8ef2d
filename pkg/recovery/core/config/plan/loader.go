package plan

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/tigerroll/tidal/pkg/recovery/support/util/configbinder"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"
	logger "github.com/tigerroll/tidal/pkg/recovery/support/util/logger"
)

const moduleName = "plan_loader"

// LoadPlanDefinitionFromBytes loads one plan definition from a YAML byte slice.
// This function is typically used by the application to load an embedded plan file.
func LoadPlanDefinitionFromBytes(data []byte) (*Plan, error) {
	logger.Infof("Starting plan definition loading.")

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, exception.NewRecoveryError(moduleName, "Failed to parse plan file", err, false)
	}

	// Bind each wave's free-form properties to the typed options.
	for i := range p.Waves {
		if err := configbinder.BindProperties(p.Waves[i].Properties, &p.Waves[i].Options); err != nil {
			return nil, exception.NewRecoveryError(moduleName,
				fmt.Sprintf("Failed to bind properties of wave %d in plan '%s'", p.Waves[i].Number, p.ID), err, false)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	logger.Infof("Loaded plan '%s' with %d wave(s).", p.ID, len(p.Waves))
	return &p, nil
}

// Validate checks the structural invariants of a plan definition: identifiers present,
// at least one wave, unique wave numbers, non-empty server lists, and no server assigned
// to more than one wave.
func (p *Plan) Validate() error {
	if p.ID == "" {
		return exception.NewValidationError(moduleName, "'id' is not defined in plan file")
	}
	if p.Name == "" {
		return exception.NewValidationError(moduleName, "plan '%s' does not have 'name' defined", p.ID)
	}
	if len(p.Waves) == 0 {
		return exception.NewValidationError(moduleName, "plan '%s' does not have 'waves' defined", p.ID)
	}

	seenNumbers := make(map[int]bool, len(p.Waves))
	seenServers := make(map[string]int, len(p.Waves))
	for _, w := range p.Waves {
		if seenNumbers[w.Number] {
			return exception.NewValidationError(moduleName, "plan '%s': wave number %d is duplicated", p.ID, w.Number)
		}
		seenNumbers[w.Number] = true

		if len(w.Servers) == 0 {
			return exception.NewValidationError(moduleName, "plan '%s': wave %d has an empty server list", p.ID, w.Number)
		}
		for _, serverID := range w.Servers {
			if owner, dup := seenServers[serverID]; dup {
				return exception.NewValidationError(moduleName,
					"plan '%s': server '%s' appears in both wave %d and wave %d", p.ID, serverID, owner, w.Number)
			}
			seenServers[serverID] = w.Number
		}
	}
	return nil
}
