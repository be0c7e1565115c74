package registry

import (
	"errors"
	"testing"

	"dsgen/pkg/contract"
)

func TestNewGenClient(t *testing.T) {
	for _, name := range []string{"ollama", "mock"} {
		c, err := NewGenClient(name, nil)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if c == nil {
			t.Fatalf("%s: nil client", name)
		}
	}
	_, err := NewGenClient("nope", nil)
	if !errors.Is(err, contract.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestGenClientNamesSorted(t *testing.T) {
	names := GenClientNames()
	if len(names) != 2 || names[0] != "mock" || names[1] != "ollama" {
		t.Fatalf("names = %v", names)
	}
}
