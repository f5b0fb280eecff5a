package mirror

import (
	"fmt"
	"testing"
)

func TestRingBuffer_EmptyRead(t *testing.T) {
	rb := NewRingBuffer(10)
	chunks := rb.ReadAll()
	if len(chunks) != 0 {
		t.Errorf("expected empty buffer, got %d chunks", len(chunks))
	}
}

func TestRingBuffer_PartialFill(t *testing.T) {
	rb := NewRingBuffer(10)
	for i := 0; i < 5; i++ {
		rb.Write(fmt.Sprintf("chunk-%d", i))
	}

	chunks := rb.ReadAll()
	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		expected := fmt.Sprintf("chunk-%d", i)
		if c != expected {
			t.Errorf("chunk %d: expected %s, got %s", i, expected, c)
		}
	}
}

func TestRingBuffer_Overflow(t *testing.T) {
	rb := NewRingBuffer(5)
	for i := 0; i < 8; i++ {
		rb.Write(fmt.Sprintf("chunk-%d", i))
	}

	chunks := rb.ReadAll()
	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(chunks))
	}

	// Should have chunks 3..7 (oldest dropped).
	for i, c := range chunks {
		expected := fmt.Sprintf("chunk-%d", i+3)
		if c != expected {
			t.Errorf("chunk %d: expected %s, got %s", i, expected, c)
		}
	}
}

func TestRingBuffer_Reset(t *testing.T) {
	rb := NewRingBuffer(5)
	for i := 0; i < 8; i++ {
		rb.Write(fmt.Sprintf("chunk-%d", i))
	}

	rb.Reset()
	if got := rb.ReadAll(); len(got) != 0 {
		t.Fatalf("expected empty buffer after reset, got %d chunks", len(got))
	}

	rb.Write("fresh")
	chunks := rb.ReadAll()
	if len(chunks) != 1 || chunks[0] != "fresh" {
		t.Errorf("expected [fresh] after reset, got %v", chunks)
	}
}
