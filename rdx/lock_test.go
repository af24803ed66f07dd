package rdx

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNormalizeKeys(t *testing.T) {
	got := normalizeKeys([]string{"table:b", "table:a", "table:b"})
	if len(got) != 2 || got[0] != "table:a" || got[1] != "table:b" {
		t.Fatalf("unexpected keys %v", got)
	}
}

func TestLocalLockerMutualExclusion(t *testing.T) {
	l := NewLocalLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys := []string{"t1", "t2"}
			if i%2 == 0 {
				keys = []string{"t2", "t1"}
			}
			unlock, err := l.Lock(context.Background(), keys...)
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}(i)
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected exclusive access, saw %d holders", maxInside)
	}
	if len(l.locks) != 0 {
		t.Fatalf("expected lock table to drain, have %d entries", len(l.locks))
	}
}

func TestLocalLockerDisjointKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker()
	unlockA, err := l.Lock(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	if err != nil {
		t.Fatalf("disjoint key should not block: %v", err)
	}
	unlockB()
}

func TestLocalLockerTimeout(t *testing.T) {
	l := NewLocalLocker()
	unlock, _ := l.Lock(context.Background(), "a")
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "a"); err != ErrLockTimeout {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}
