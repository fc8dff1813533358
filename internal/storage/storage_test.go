package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHandleValidate(t *testing.T) {
	good := ComputeHandle([]byte("ciphertext"))
	if err := good.Validate(); err != nil {
		t.Errorf("Validate(%s) = %v", good, err)
	}

	for _, h := range []Handle{
		"",
		"abc",
		Handle(string(good) + "00"),                // too long
		"zz" + good[2:],                            // not hex
		"../../etc/passwd/0000000000000000000000", // traversal attempt
	} {
		if err := h.Validate(); !errors.Is(err, ErrInvalidHandle) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidHandle", h, err)
		}
	}
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("store and load", func(t *testing.T) {
		s := NewMemoryStorage(1)
		data := []byte("encrypted block payload")

		handle, err := s.Store(ctx, data)
		if err != nil {
			t.Fatalf("Store: %v", err)
		}
		if handle != ComputeHandle(data) {
			t.Error("handle is not the content hash")
		}

		got, err := s.Load(ctx, handle)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Error("loaded data differs")
		}

		// The returned slice is a copy; mutating it must not poison the store.
		got[0] ^= 0xff
		again, err := s.Load(ctx, handle)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !bytes.Equal(again, data) {
			t.Error("caller mutation leaked into the store")
		}
	})

	t.Run("dedup", func(t *testing.T) {
		s := NewMemoryStorage(1)
		data := []byte("same ciphertext twice")

		h1, err := s.Store(ctx, data)
		if err != nil {
			t.Fatalf("Store: %v", err)
		}
		h2, err := s.Store(ctx, data)
		if err != nil {
			t.Fatalf("Store: %v", err)
		}
		if h1 != h2 {
			t.Error("identical data yielded different handles")
		}
		if got := s.Size(); got != int64(len(data)) {
			t.Errorf("Size() = %d, want %d (stored once)", got, len(data))
		}
	})

	t.Run("capacity", func(t *testing.T) {
		s := NewMemoryStorage(0)
		if _, err := s.Store(ctx, []byte("x")); !errors.Is(err, ErrStorageFull) {
			t.Errorf("Store over capacity = %v, want ErrStorageFull", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := NewMemoryStorage(1)
		handle, err := s.Store(ctx, []byte("transient"))
		if err != nil {
			t.Fatalf("Store: %v", err)
		}
		if err := s.Delete(ctx, handle); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := s.Load(ctx, handle); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load after delete = %v, want ErrNotFound", err)
		}
		if got := s.Size(); got != 0 {
			t.Errorf("Size() after delete = %d, want 0", got)
		}
		if err := s.Delete(ctx, handle); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete = %v, want ErrNotFound", err)
		}
	})

	t.Run("rejects malformed handles", func(t *testing.T) {
		s := NewMemoryStorage(1)
		if _, err := s.Load(ctx, "not-a-handle"); !errors.Is(err, ErrInvalidHandle) {
			t.Errorf("Load = %v, want ErrInvalidHandle", err)
		}
		if _, err := s.Exists(ctx, "not-a-handle"); !errors.Is(err, ErrInvalidHandle) {
			t.Errorf("Exists = %v, want ErrInvalidHandle", err)
		}
	})
}

func TestFileStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("roundtrip", func(t *testing.T) {
		s, err := NewFileStorage(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileStorage: %v", err)
		}
		data := []byte("serialized radix ciphertext")

		handle, err := s.Store(ctx, data)
		if err != nil {
			t.Fatalf("Store: %v", err)
		}
		got, err := s.Load(ctx, handle)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Error("loaded data differs")
		}

		ok, err := s.Exists(ctx, handle)
		if err != nil || !ok {
			t.Errorf("Exists = %v, %v, want true, nil", ok, err)
		}
	})

	t.Run("detects corruption", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewFileStorage(dir)
		if err != nil {
			t.Fatalf("NewFileStorage: %v", err)
		}

		handle, err := s.Store(ctx, []byte("pristine"))
		if err != nil {
			t.Fatalf("Store: %v", err)
		}

		h := string(handle)
		path := filepath.Join(dir, h[:2], h)
		if err := os.WriteFile(path, []byte("tampered"), 0600); err != nil {
			t.Fatalf("tamper: %v", err)
		}

		if _, err := s.Load(ctx, handle); !errors.Is(err, ErrCorrupted) {
			t.Errorf("Load of tampered file = %v, want ErrCorrupted", err)
		}
	})

	t.Run("missing handle", func(t *testing.T) {
		s, err := NewFileStorage(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileStorage: %v", err)
		}
		handle := ComputeHandle([]byte("never stored"))
		if _, err := s.Load(ctx, handle); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, handle); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete = %v, want ErrNotFound", err)
		}
	})
}
