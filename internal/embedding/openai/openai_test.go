package openai

import "testing"

func TestNew(t *testing.T) {
	t.Run("missing API key returns error", func(t *testing.T) {
		if _, err := New(Config{}); err == nil {
			t.Error("expected error for missing API key")
		}
	})

	t.Run("API key provided succeeds", func(t *testing.T) {
		p, err := New(Config{APIKey: "test-key"})
		if err != nil {
			t.Fatalf("New error: %v", err)
		}
		if p.model != "text-embedding-3-small" {
			t.Errorf("model = %q, want %q", p.model, "text-embedding-3-small")
		}
	})

	t.Run("custom model", func(t *testing.T) {
		p, err := New(Config{APIKey: "test-key", Model: "text-embedding-3-large"})
		if err != nil {
			t.Fatalf("New error: %v", err)
		}
		if p.model != "text-embedding-3-large" {
			t.Errorf("model = %q, want %q", p.model, "text-embedding-3-large")
		}
	})
}

func TestProvider_Name(t *testing.T) {
	p, _ := New(Config{APIKey: "test-key"})
	if name := p.Name(); name != "openai" {
		t.Errorf("Name() = %q, want %q", name, "openai")
	}
}

func TestProvider_Dimension(t *testing.T) {
	tests := []struct {
		model    string
		expected int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"unknown-model", 1536},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			p, err := New(Config{APIKey: "test-key", Model: tt.model})
			if err != nil {
				t.Fatalf("New error: %v", err)
			}
			if dim := p.Dimension(); dim != tt.expected {
				t.Errorf("Dimension() = %d, want %d", dim, tt.expected)
			}
		})
	}
}

func TestProvider_MaxBatchSize(t *testing.T) {
	p, _ := New(Config{APIKey: "test-key"})
	if max := p.MaxBatchSize(); max != 2048 {
		t.Errorf("MaxBatchSize() = %d, want %d", max, 2048)
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	p, _ := New(Config{APIKey: "test-key"})
	vectors, err := p.EmbedBatch(nil, nil)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if vectors != nil {
		t.Errorf("EmbedBatch(nil) = %v, want nil", vectors)
	}
}

func TestEmbedBatch_OversizeBatchRejected(t *testing.T) {
	p, _ := New(Config{APIKey: "test-key"})
	p.maxBatchSize = 2
	texts := []string{"a", "b", "c"}
	if _, err := p.EmbedBatch(nil, texts); err == nil {
		t.Error("expected error for oversize batch")
	}
}
