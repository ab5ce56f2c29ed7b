package partitionfile

import (
	"testing"
	"time"
)

func TestPartitionMapFirstIsOldestInserted(t *testing.T) {
	m := NewPartitionMap[string]()
	m.Put(5, "buf-5")
	m.Put(2, "buf-2")
	m.Put(9, "buf-9")

	p, v, ok := m.First()
	if !ok || p != 5 || v != "buf-5" {
		t.Errorf("First() = (%d, %q, %v), want (5, buf-5, true)", p, v, ok)
	}

	m.Delete(5)
	p, v, ok = m.First()
	if !ok || p != 2 || v != "buf-2" {
		t.Errorf("after delete, First() = (%d, %q, %v), want (2, buf-2, true)", p, v, ok)
	}
}

func TestPartitionMapGetAndLen(t *testing.T) {
	m := NewPartitionMap[int]()
	if m.Len() != 0 {
		t.Fatalf("new map len = %d, want 0", m.Len())
	}
	m.Put(1, 100)
	if v, ok := m.Get(1); !ok || v != 100 {
		t.Errorf("Get(1) = (%d, %v), want (100, true)", v, ok)
	}
	if _, ok := m.Get(2); ok {
		t.Error("Get(2) should be absent")
	}
	if m.Len() != 1 {
		t.Errorf("len = %d, want 1", m.Len())
	}
}

func TestClosingSetWaitEmptyReturnsImmediatelyWhenEmpty(t *testing.T) {
	s := NewClosingSet[int]()
	done := make(chan struct{})
	go func() {
		s.WaitEmpty(time.Hour, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitEmpty on an empty set should return immediately")
	}
}

func TestClosingSetWaitEmptyUnblocksOnRemove(t *testing.T) {
	s := NewClosingSet[int]()
	s.Add(1, 42)

	done := make(chan struct{})
	var ticks int
	go func() {
		s.WaitEmpty(10*time.Millisecond, func(remaining int) { ticks++ })
		close(done)
	}()

	time.Sleep(35 * time.Millisecond)
	s.Remove(1)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitEmpty should unblock once the set drains")
	}
	if ticks == 0 {
		t.Error("expected at least one onTick invocation while waiting")
	}
}
