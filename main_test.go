package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ssotoken/cmd"
)

func TestVersion(t *testing.T) {
	assert.Equal(t, "dev", version)

	original := cmd.GetVersion()
	defer cmd.SetVersion(original)

	cmd.SetVersion(version)
	assert.Equal(t, "dev", cmd.GetVersion())
}
