package protocol_test

import (
	"testing"

	"golaunch/pkg/protocol"
)

func groupedModel() protocol.ConfigOption {
	return protocol.ConfigOption{
		ID:           "model",
		Name:         "Model",
		CurrentValue: "fast",
		SelectOptions: protocol.SelectOptions{
			Type: protocol.SelectGrouped,
			Groups: []protocol.SelectGroup{
				{Group: "small", Name: "Small", Options: []protocol.SelectOption{{Value: "fast", Name: "Fast"}}},
				{Group: "large", Name: "Large", Options: []protocol.SelectOption{{Value: "smart", Name: "Smart"}, {Value: "max", Name: "Max"}}},
			},
		},
	}
}

func TestSelectOptionsValues(t *testing.T) {
	grouped := groupedModel().SelectOptions
	vals := grouped.Values()
	if len(vals) != 3 || vals[0].Value != "fast" || vals[2].Value != "max" {
		t.Errorf("grouped Values() = %+v", vals)
	}
	if !grouped.Allows("smart") || grouped.Allows("nope") {
		t.Error("Allows disagrees with the grouped set")
	}

	flat := protocol.SelectOptions{Type: protocol.SelectUngrouped, Options: []protocol.SelectOption{{Value: "a"}}}
	if !flat.Allows("a") || len(flat.Values()) != 1 {
		t.Error("ungrouped set mishandled")
	}
}

func TestCloneConfigOptions(t *testing.T) {
	orig := []protocol.ConfigOption{groupedModel()}
	clone := protocol.CloneConfigOptions(orig)

	clone[0].CurrentValue = "smart"
	clone[0].SelectOptions.Groups[0].Options[0].Value = "mutated"

	if orig[0].CurrentValue != "fast" {
		t.Error("clone aliases CurrentValue")
	}
	if orig[0].SelectOptions.Groups[0].Options[0].Value != "fast" {
		t.Error("clone aliases nested group options")
	}
	if protocol.CloneConfigOptions(nil) != nil {
		t.Error("nil should clone to nil")
	}
}
