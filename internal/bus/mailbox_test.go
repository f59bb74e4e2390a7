package bus

import "testing"

func TestMailboxFIFOOrder(t *testing.T) {
	m := NewMailbox[int]("test", 4)
	for i := 1; i <= 3; i++ {
		if err := m.Put(i); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	for i := 1; i <= 3; i++ {
		v, ok := m.TryGet()
		if !ok || v != i {
			t.Fatalf("expected %d, got %d ok=%v", i, v, ok)
		}
	}
}

func TestMailboxFullDropsNotBlocks(t *testing.T) {
	m := NewMailbox[int]("cap", 2)
	if err := m.Put(1); err != nil {
		t.Fatalf("put 1: %v", err)
	}
	if err := m.Put(2); err != nil {
		t.Fatalf("put 2: %v", err)
	}
	if err := m.Put(3); err == nil {
		t.Fatalf("expected ErrBusFull on third put")
	}
	if m.Len() != 2 {
		t.Fatalf("expected len 2, got %d", m.Len())
	}
}
