package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNames(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Key
	}{
		{"bare topic", "tick", []Key{{Topic: "tick", Namespace: DefaultNamespace}}},
		{"qualified", "tick.pointer", []Key{{Topic: "tick", Namespace: "pointer"}}},
		{"space delimited", "tick resize", []Key{
			{Topic: "tick", Namespace: DefaultNamespace},
			{Topic: "resize", Namespace: DefaultNamespace},
		}},
		{"mixed delimiters", "tick.a, resize/ready.b", []Key{
			{Topic: "tick", Namespace: "a"},
			{Topic: "resize", Namespace: DefaultNamespace},
			{Topic: "ready", Namespace: "b"},
		}},
		{"strips invalid chars", "ti!ck-.po#inter", []Key{{Topic: "tick", Namespace: "pointer"}}},
		{"trailing dot", "tick.", []Key{{Topic: "tick", Namespace: DefaultNamespace}}},
		{"namespace only", ".pointer", []Key{{Topic: "", Namespace: "pointer"}}},
		{"empty", "", []Key{}},
		{"only delimiters", " ,/ ", []Key{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseNames(tt.input))
		})
	}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "tick.pointer", Key{Topic: "tick", Namespace: "pointer"}.String())
}
