package play

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/ledgerline/btcore/pkg/types"
)

// decimalDecodeHook lets mapstructure populate decimal.Decimal fields from
// the plain numbers/strings a YAML or JSON Play file naturally contains.
func decimalDecodeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(decimal.Decimal{}) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	default:
		return data, nil
	}
}

// errorOnUnusedKeys makes the mapstructure decode fail when the document
// carries a key no destination struct field claims — the "actions" key
// is authoritative and any legacy alias or stray key is rejected, per
// spec.md §6 ("Unknown keys are errors").
func errorOnUnusedKeys(c *mapstructure.DecoderConfig) {
	c.ErrorUnused = true
}

// Load reads a Play document from a YAML or JSON file, applying BT_*
// environment variable overrides for the account and risk sections the
// way a deployment pins leverage/risk limits without editing the Play
// file itself.
func Load(path string) (*types.Play, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read play file %s: %w", path, err)
	}

	var p types.Play
	if err := v.Unmarshal(&p, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		decimalDecodeHook,
	)), errorOnUnusedKeys); err != nil {
		return nil, fmt.Errorf("unmarshal play file %s: %w", path, err)
	}
	return &p, nil
}
