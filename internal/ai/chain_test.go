package ai

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestBuildChainSkipsUnusableProviders(t *testing.T) {
	r := BuildChain(ChainSettings{
		Providers: []string{"gemini", "mystery", "stub"},
		Dim:       8,
	}, zerolog.Nop())

	// gemini has no key and mystery is unknown; only the stub survives.
	if r.Name() != "stub" {
		t.Errorf("active provider = %q, want stub", r.Name())
	}
	if r.Dim() != 8 {
		t.Errorf("Dim() = %d, want 8", r.Dim())
	}
}

func TestBuildChainEmpty(t *testing.T) {
	r := BuildChain(ChainSettings{}, zerolog.Nop())
	if r.Name() != "none" {
		t.Errorf("active provider = %q, want none", r.Name())
	}
}
