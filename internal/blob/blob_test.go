package blob

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		cfg  Config
		want Driver
	}{
		{name: "default filesystem", cfg: Config{FSRoot: t.TempDir()}, want: DriverFilesystem},
		{name: "explicit filesystem", cfg: Config{Driver: DriverFilesystem, FSRoot: t.TempDir()}, want: DriverFilesystem},
		{name: "memory", cfg: Config{Driver: DriverMemory}, want: DriverMemory},
		{name: "s3", cfg: Config{Driver: DriverS3, S3: S3Config{Bucket: "archive", Region: "eu-west-1", AccessKeyID: "a", SecretAccessKey: "b"}}, want: DriverS3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := Open(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			if store.Driver() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, store.Driver())
			}
		})
	}
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected error without bucket")
	}
}

// Each backend must honour the write-once contract the snapshot exporter relies on.
func TestBackendsShareContract(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	s3Store, err := NewMockS3ForTests(ctx)
	if err != nil {
		t.Fatalf("s3 mock: %v", err)
	}
	for _, store := range []Store{fsStore, NewMemory(), s3Store} {
		t.Run(string(store.Driver()), func(t *testing.T) {
			if _, err := store.Put(ctx, "snapshots/a.json", bytes.NewReader([]byte("{}")), PutOptions{ContentType: "application/json"}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := store.Put(ctx, "snapshots/a.json", bytes.NewReader([]byte("{}")), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			if _, err := store.Head(ctx, "snapshots/missing.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			list, err := store.List(ctx, "snapshots/")
			if err != nil || len(list) != 1 || list[0].Key != "snapshots/a.json" {
				t.Fatalf("unexpected list %+v (%v)", list, err)
			}
		})
	}
}
