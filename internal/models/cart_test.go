package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineTotalScalesWithDuration(t *testing.T) {
	item := CartItem{DefaultPrice: 100, Price: 200, Duration: 14, DefaultDuration: 7, Quantity: 3}
	assert.InDelta(t, 600, item.LineTotal(), 1e-9)
}

func TestLineTotalDefaultDurationIsOne(t *testing.T) {
	item := CartItem{DefaultPrice: 40, Duration: 5, Quantity: 2}
	assert.InDelta(t, 400, item.LineTotal(), 1e-9)
}

func TestLineTotalWithoutBasePriceDoesNotRescale(t *testing.T) {
	item := CartItem{Price: 200, Duration: 20, DefaultDuration: 10, Quantity: 1}
	assert.InDelta(t, 200, item.LineTotal(), 1e-9)
}

func TestWithCatalogueSuppliesBasePrice(t *testing.T) {
	entry := &CatalogueEntry{Price: 100, Duration: 10}
	item := CartItem{Price: 200, Duration: 20, Quantity: 1}.WithCatalogue(entry)
	assert.InDelta(t, 200, item.LineTotal(), 1e-9)

	kept := CartItem{DefaultPrice: 50, DefaultDuration: 5, Duration: 10, Quantity: 1}.WithCatalogue(entry)
	assert.InDelta(t, 100, kept.LineTotal(), 1e-9)

	assert.Equal(t, CartItem{Price: 9}, CartItem{Price: 9}.WithCatalogue(nil))
}

func TestCartTotal(t *testing.T) {
	items := []CartItem{
		{DefaultPrice: 100, Price: 200, Duration: 14, DefaultDuration: 7, Quantity: 1},
		{Price: 50, Duration: 3, DefaultDuration: 3, Quantity: 2},
	}
	assert.InDelta(t, 300, CartTotal(items), 1e-9)
	assert.Zero(t, CartTotal(nil))
}

func TestCartItemDecodesStringNumbers(t *testing.T) {
	var item CartItem
	raw := `{"id":"c1","labid":"l1","name":"K8s","quantity":"2","price":"10.5","duration":7,"defaultduration":null}`
	require.NoError(t, json.Unmarshal([]byte(raw), &item))
	assert.Equal(t, Number(2), item.Quantity)
	assert.Equal(t, Number(10.5), item.Price)
	assert.Zero(t, item.DefaultDuration)
}

func TestCartItemPatchEmpty(t *testing.T) {
	assert.True(t, CartItemPatch{}.Empty())
	q := 2.0
	assert.False(t, CartItemPatch{Quantity: &q}.Empty())
}
