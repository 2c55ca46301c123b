package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/fulmenhq/pbxmend/pkg/schema"
)

// readFile reads one config file and checks it against the embedded config
// schema before any of its values are used.
func readFile(file string) (map[string]interface{}, error) {
	fv := viper.New()
	fv.SetConfigFile(file)
	if err := fv.ReadInConfig(); err != nil {
		return nil, err
	}
	settings := fv.AllSettings()
	res, err := schema.Validate(settings, schema.Config)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		return nil, fmt.Errorf("invalid configuration: %s", res.Summary())
	}
	return settings, nil
}
