package bedrock

import "testing"

func TestCompleter_NameAndModels(t *testing.T) {
	c := &Completer{defaultModel: "anthropic.claude-3-sonnet-20240229-v1:0"}
	if c.Name() != "bedrock" {
		t.Errorf("Name() = %q, want bedrock", c.Name())
	}
	if len(c.Models()) == 0 {
		t.Error("Models() should not be empty")
	}
}
