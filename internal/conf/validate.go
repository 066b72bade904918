// validate.go: validation of loaded settings
package conf

import (
	"github.com/vocalab/vococode-go/internal/errors"
)

// ValidateSettings checks a loaded Settings struct for configurations that
// cannot work. It returns a configuration error describing the first problem.
func ValidateSettings(settings *Settings) error {
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return errors.Newf("only one database output may be enabled at a time").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return errors.Newf("no database output enabled").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return errors.Newf("sqlite output enabled but path is empty").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("field", "output.sqlite.path").
			Build()
	}

	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Database == "" || settings.Output.MySQL.Host == "" {
			return errors.Newf("mysql output enabled but database or host is empty").
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}

	if settings.Sampling.HighVolubilityCount < 0 {
		return errors.Newf("sampling.highvolubilitycount must not be negative, got %d",
			settings.Sampling.HighVolubilityCount).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.Sampling.RandomCount < 0 {
		return errors.Newf("sampling.randomcount must not be negative, got %d",
			settings.Sampling.RandomCount).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.Sampling.CoderCount < 1 {
		return errors.Newf("sampling.codercount must be at least 1, got %d",
			settings.Sampling.CoderCount).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if settings.Consensus.ReferenceCategory == "" {
		return errors.Newf("consensus.referencecategory must not be empty").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return nil
}
