package app

import (
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/config"
)

func TestNewValidatorUsesJSONNames(t *testing.T) {
	type line struct {
		UnitPriceCents int64 `json:"unitPriceCents" validate:"gte=0"`
	}
	type payload struct {
		Items []line `json:"items" validate:"required,min=1,dive"`
	}

	err := NewValidator().Struct(payload{Items: []line{{UnitPriceCents: -1}}})
	require.Error(t, err)
	verrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok)
	require.Equal(t, "payload.items[0].unitPriceCents", verrs[0].Namespace())
}

func TestTaskRedis(t *testing.T) {
	opt, err := TaskRedis(&config.Config{RedisURL: "redis://:secret@cache:6379/2"})
	require.NoError(t, err)
	require.NotNil(t, opt)

	_, err = TaskRedis(&config.Config{RedisURL: "http://cache"})
	require.Error(t, err)
}
