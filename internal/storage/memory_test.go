package storage

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestMemoryStorage_Contract(t *testing.T) {
	runStorageContract(t, func(t *testing.T) Storage {
		return NewMemoryStorage()
	})
}

func TestMemoryStorage_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	_ = s.Insert(ctx, Link{
		Code:      "aB3_xY9z12",
		TargetURL: "https://example.com",
		CreatedAt: time.Now(),
		ExpiresAt: &expires,
	})

	got, err := s.Get(ctx, "aB3_xY9z12")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	// Изменения копии не должны затрагивать хранилище
	got.TargetURL = "https://evil.example.com"
	got.VisitCount = 100
	*got.ExpiresAt = time.Time{}

	again, _ := s.Get(ctx, "aB3_xY9z12")
	if again.TargetURL != "https://example.com" {
		t.Errorf("TargetURL = %v, want %v", again.TargetURL, "https://example.com")
	}
	if again.VisitCount != 0 {
		t.Errorf("VisitCount = %d, want 0", again.VisitCount)
	}
	if !again.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", again.ExpiresAt, expires)
	}
}

func TestMemoryStorage_CanceledContext(t *testing.T) {
	s := NewMemoryStorage()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Insert(ctx, Link{Code: "canceled", TargetURL: "https://example.com", CreatedAt: time.Now()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Insert() error = %v, want %v", err, context.Canceled)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestMemoryStorage_Concurrent(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	const numGoroutines = 100
	const numOperations = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()

			for j := 0; j < numOperations; j++ {
				code := "code" + strconv.Itoa(id%26) + "_" + strconv.Itoa(j%10)
				_ = s.Insert(ctx, Link{
					Code:      code,
					TargetURL: "https://example.com/" + code,
					CreatedAt: time.Now(),
				})
				_, _ = s.Get(ctx, code)
				_ = s.IncrementVisit(ctx, code)
				_, _ = s.SweepExpired(ctx, time.Now())
			}
		}(i)
	}

	wg.Wait()

	if s.Len() != 26*10 {
		t.Errorf("Len() = %d, want %d", s.Len(), 26*10)
	}
}

// Бенчмарки

func BenchmarkMemoryStorage_Insert(b *testing.B) {
	s := NewMemoryStorage()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = s.Insert(ctx, Link{
			Code:      "code" + strconv.Itoa(i),
			TargetURL: "https://example.com/" + strconv.Itoa(i),
			CreatedAt: time.Now(),
		})
	}
}

func BenchmarkMemoryStorage_Get(b *testing.B) {
	s := NewMemoryStorage()
	ctx := context.Background()

	_ = s.Insert(ctx, Link{
		Code:      "aB3_xY9z12",
		TargetURL: "https://example.com",
		CreatedAt: time.Now(),
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Get(ctx, "aB3_xY9z12")
	}
}

func BenchmarkMemoryStorage_Concurrent(b *testing.B) {
	s := NewMemoryStorage()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		_ = s.Insert(ctx, Link{
			Code:      "code" + strconv.Itoa(i),
			TargetURL: "https://example.com/" + strconv.Itoa(i),
			CreatedAt: time.Now(),
		})
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			code := "code" + strconv.Itoa(i%1000)
			_, _ = s.Get(ctx, code)
			_ = s.IncrementVisit(ctx, code)
			i++
		}
	})
}
