package cache

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestCache(t *testing.T) Cache {
	t.Helper()

	c, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewRistrettoCache() error = %v", err)
	}
	t.Cleanup(c.Close)

	return c
}

func TestSetGet(t *testing.T) {
	c := newTestCache(t)

	if !c.Set("nonce:0xabc", uint64(7), time.Minute) {
		t.Fatal("Set() rejected the write")
	}
	c.Wait()

	value, found := c.Get("nonce:0xabc")
	if !found {
		t.Fatal("Get() did not find the stored value")
	}
	if nonce, ok := value.(uint64); !ok || nonce != 7 {
		t.Errorf("Get() = %v, want uint64 7", value)
	}
}

func TestGet_Missing(t *testing.T) {
	c := newTestCache(t)

	if _, found := c.Get("nonce:0xmissing"); found {
		t.Error("Get() found a value that was never stored")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)

	c.Set("nonce:0xabc", uint64(7), 20*time.Millisecond)
	c.Wait()

	time.Sleep(50 * time.Millisecond)

	if _, found := c.Get("nonce:0xabc"); found {
		t.Error("Get() served a value past its TTL")
	}
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)

	c.Set("nonce:0xabc", uint64(7), time.Minute)
	c.Wait()

	c.Delete("nonce:0xabc")
	c.Wait()

	if _, found := c.Get("nonce:0xabc"); found {
		t.Error("Get() found a deleted value")
	}
}

func TestClear(t *testing.T) {
	c := newTestCache(t)

	c.Set("nonce:0xaaa", uint64(1), time.Minute)
	c.Set("nonce:0xbbb", uint64(2), time.Minute)
	c.Wait()

	c.Clear()
	c.Wait()

	if _, found := c.Get("nonce:0xaaa"); found {
		t.Error("Clear() left a value behind")
	}
	if _, found := c.Get("nonce:0xbbb"); found {
		t.Error("Clear() left a value behind")
	}
}

func TestOverwrite(t *testing.T) {
	c := newTestCache(t)

	c.Set("nonce:0xabc", uint64(7), time.Minute)
	c.Wait()
	c.Set("nonce:0xabc", uint64(8), time.Minute)
	c.Wait()

	value, found := c.Get("nonce:0xabc")
	if !found {
		t.Fatal("Get() did not find the overwritten value")
	}
	if nonce := value.(uint64); nonce != 8 {
		t.Errorf("Get() = %d, want the newer 8", nonce)
	}
}
