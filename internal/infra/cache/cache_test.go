package cache_test

import (
	"testing"
	"time"

	"github.com/finwise/movements-api-go/internal/domain"
	"github.com/finwise/movements-api-go/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[domain.Report](5 * time.Minute)

	c.Set("report:u1", domain.Report{Balance: 100})
	val, ok := c.Get("report:u1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val.Balance != 100 {
		t.Errorf("expected balance 100, got %v", val.Balance)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[domain.Report](5 * time.Minute)

	_, ok := c.Get("report:missing")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[domain.Report](50 * time.Millisecond)

	c.Set("report:u1", domain.Report{})
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("report:u1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[domain.Report](5 * time.Minute)

	c.Set("report:u1", domain.Report{})
	c.Delete("report:u1")

	_, ok := c.Get("report:u1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}
