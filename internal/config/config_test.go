package config

import (
	"testing"

	"merchantpay/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("BANK_WIRE_COMMISSION_PERCENT", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, 5, cfg.VerificationMaxAttempts)
	assert.True(t, cfg.BankWireCommissionPercent.Equal(cfg.BankWireCommissionPercent.Round(0)))
}

func TestLoadProductionRequiresEncryptionKey(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("ENCRYPTION_KEY", "short")
	t.Setenv("JWT_SECRET", "prod-secret")
	_, err := Load()
	assert.True(t, apperr.IsKind(err, apperr.KindConfiguration))
}

func TestLoadCommissionPercent(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("BANK_WIRE_COMMISSION_PERCENT", "12.5")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "12.5", cfg.BankWireCommissionPercent.String())

	t.Setenv("BANK_WIRE_COMMISSION_PERCENT", "120")
	_, err = Load()
	assert.True(t, apperr.IsKind(err, apperr.KindConfiguration))
}

func TestParseSetting(t *testing.T) {
	number, err := ParseSetting(SettingBankWireCommissionPercent, SettingNumber, "7.5")
	require.NoError(t, err)
	value, err := number.AsDecimal()
	require.NoError(t, err)
	assert.Equal(t, "7.5", value.String())

	_, err = number.AsBool()
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	flag, err := ParseSetting("maintenance", SettingBool, "true")
	require.NoError(t, err)
	on, err := flag.AsBool()
	require.NoError(t, err)
	assert.True(t, on)

	structured, err := ParseSetting("routing", SettingStructured, `{"bank":"b-1"}`)
	require.NoError(t, err)
	m, err := structured.AsMap()
	require.NoError(t, err)
	assert.Equal(t, "b-1", m["bank"])

	_, err = ParseSetting("routing", SettingStructured, `[1,2]`)
	assert.Error(t, err)
	_, err = ParseSetting("x", SettingNumber, "abc")
	assert.Error(t, err)
	_, err = ParseSetting("x", "blob", "abc")
	assert.Error(t, err)
}
