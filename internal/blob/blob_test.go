package blob

import (
	"context"
	"io"
	"strings"
	"testing"
)

// storeUnderTest builds each driver against a fresh backing location.
func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	return map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			info, err := store.Put(ctx, "networks/one.json", strings.NewReader("payload"), PutOptions{
				ContentType: "application/json",
				Metadata:    map[string]string{"source": "test"},
			})
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if info.Size != int64(len("payload")) {
				t.Fatalf("size = %d", info.Size)
			}
			if store.Driver() == DriverFilesystem && info.ETag == "" {
				t.Fatal("missing etag")
			}

			got, rc, err := store.Get(ctx, "networks/one.json")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			data, err := io.ReadAll(rc)
			_ = rc.Close()
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(data) != "payload" {
				t.Fatalf("content = %q", data)
			}
			if got.ContentType != "application/json" || got.Metadata["source"] != "test" {
				t.Fatalf("info = %+v", got)
			}
		})
	}
}

func TestPutRefusesExistingKey(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Put(ctx, "key", strings.NewReader("first"), PutOptions{}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if _, err := store.Put(ctx, "key", strings.NewReader("second"), PutOptions{}); err == nil {
				t.Fatal("second Put on same key should fail")
			}
			_, rc, err := store.Get(ctx, "key")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			data, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(data) != "first" {
				t.Fatalf("content overwritten: %q", data)
			}
		})
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Put(ctx, "key", strings.NewReader("x"), PutOptions{}); err != nil {
				t.Fatalf("Put: %v", err)
			}
			existed, err := store.Delete(ctx, "key")
			if err != nil || !existed {
				t.Fatalf("Delete = %v, %v; want true, nil", existed, err)
			}
			existed, err = store.Delete(ctx, "key")
			if err != nil || existed {
				t.Fatalf("second Delete = %v, %v; want false, nil", existed, err)
			}
			if _, _, err := store.Get(ctx, "key"); err == nil {
				t.Fatal("Get after delete should fail")
			}
		})
	}
}

func TestListByPrefix(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, key := range []string{"omics/b", "omics/a", "results/c"} {
				if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err != nil {
					t.Fatalf("Put %s: %v", key, err)
				}
			}
			infos, err := store.List(ctx, "omics/")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(infos) != 2 {
				t.Fatalf("got %d infos", len(infos))
			}
			if infos[0].Key != "omics/a" || infos[1].Key != "omics/b" {
				t.Fatalf("order: %s, %s", infos[0].Key, infos[1].Key)
			}
		})
	}
}

func TestFilesystemRejectsTraversal(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"", "../escape", "/absolute", "a/../../b"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), PutOptions{}); err == nil {
			t.Fatalf("key %q accepted", key)
		}
	}
}

func TestPresignURL(t *testing.T) {
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	ctx := context.Background()
	if _, err := fsStore.Put(ctx, "key", strings.NewReader("x"), PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	url, err := fsStore.PresignURL(ctx, "key", SignedURLOptions{})
	if err != nil {
		t.Fatalf("PresignURL: %v", err)
	}
	if url == "" {
		t.Fatal("empty url")
	}
	if _, err := fsStore.PresignURL(ctx, "key", SignedURLOptions{Method: "PUT"}); err == nil {
		t.Fatal("PUT presign should be unsupported")
	}

	if _, err := NewMemory().PresignURL(ctx, "key", SignedURLOptions{}); err != ErrUnsupported {
		t.Fatalf("memory presign error = %v, want ErrUnsupported", err)
	}
}
