package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRequestFromFlags(t *testing.T) {
	cmd := newProfileCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--username", "alice", "--bio", ""}))

	req, err := profileRequestFromFlags(cmd)
	require.NoError(t, err)
	require.NotNil(t, req.Username)
	assert.Equal(t, "alice", *req.Username)
	require.NotNil(t, req.Bio)
	assert.Equal(t, "", *req.Bio)
	assert.Nil(t, req.FirstName)
	assert.Nil(t, req.Avatar)
}

func TestProfileRequestFromFlags_Empty(t *testing.T) {
	cmd := newProfileCmd()
	require.NoError(t, cmd.Flags().Parse(nil))

	_, err := profileRequestFromFlags(cmd)
	assert.Error(t, err)
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"login", "logout", "whoami", "profile", "refresh"}, names)
}
