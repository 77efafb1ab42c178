package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompleterListsCommands(t *testing.T) {
	var names []string
	for _, child := range completer().GetChildren() {
		names = append(names, string(child.GetName()))
	}

	assert.Contains(t, names, "deal ")
	assert.Contains(t, names, "surrender ")
	assert.Contains(t, names, "quit ")
	assert.NotContains(t, names, "h ")
}
