package config

import (
	"encoding/json"
	"strconv"

	"merchantpay/internal/apperr"

	"github.com/shopspring/decimal"
)

type SettingKind string

const (
	SettingString     SettingKind = "string"
	SettingNumber     SettingKind = "number"
	SettingBool       SettingKind = "bool"
	SettingStructured SettingKind = "structured"
)

const SettingBankWireCommissionPercent = "bank_wire_commission_percent"

// Setting is a platform setting value. Exactly one of the value fields is
// meaningful, selected by Kind; values are validated when parsed so the
// core never handles untyped settings.
type Setting struct {
	Key        string
	Kind       SettingKind
	str        string
	number     decimal.Decimal
	boolean    bool
	structured map[string]any
}

func ParseSetting(key string, kind SettingKind, raw string) (Setting, error) {
	setting := Setting{Key: key, Kind: kind}
	switch kind {
	case SettingString:
		setting.str = raw
	case SettingNumber:
		number, err := decimal.NewFromString(raw)
		if err != nil {
			return Setting{}, apperr.Validation("invalid_setting", key+" is not a number")
		}
		setting.number = number
	case SettingBool:
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return Setting{}, apperr.Validation("invalid_setting", key+" is not a boolean")
		}
		setting.boolean = value
	case SettingStructured:
		var value map[string]any
		if err := json.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			return Setting{}, apperr.Validation("invalid_setting", key+" is not a JSON object")
		}
		setting.structured = value
	default:
		return Setting{}, apperr.Validation("invalid_setting", "unknown setting kind "+string(kind))
	}
	return setting, nil
}

func (s Setting) mismatch(want SettingKind) error {
	return apperr.Validation("setting_kind_mismatch", s.Key+" is "+string(s.Kind)+", not "+string(want))
}

func (s Setting) AsString() (string, error) {
	if s.Kind != SettingString {
		return "", s.mismatch(SettingString)
	}
	return s.str, nil
}

func (s Setting) AsDecimal() (decimal.Decimal, error) {
	if s.Kind != SettingNumber {
		return decimal.Zero, s.mismatch(SettingNumber)
	}
	return s.number, nil
}

func (s Setting) AsBool() (bool, error) {
	if s.Kind != SettingBool {
		return false, s.mismatch(SettingBool)
	}
	return s.boolean, nil
}

func (s Setting) AsMap() (map[string]any, error) {
	if s.Kind != SettingStructured {
		return nil, s.mismatch(SettingStructured)
	}
	return s.structured, nil
}
