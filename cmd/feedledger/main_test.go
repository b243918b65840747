package main

import (
	stdtesting "testing"

	"github.com/stretchr/testify/assert"

	"github.com/yfarmers/feedledger/internal/app"
	_ "github.com/yfarmers/feedledger/testing"
)

func TestMainSkipsStartupInTestMode(t *stdtesting.T) {
	assert.True(t, app.InTestMode())
	assert.NotPanics(t, main)
}
