package blob

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	s3store, _ := NewS3MockForTests()
	return map[string]Store{
		"memory": NewMemory(),
		"s3":     s3store,
	}
}

func TestStore_PutGetOverwrite(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, _, err := s.Get(ctx, "state.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
			}

			opts := PutOptions{ContentType: "application/json", Metadata: map[string]string{"state-version": "1"}}
			if err := s.Put(ctx, "state.json", strings.NewReader(`{"v":1}`), opts); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := s.Put(ctx, "state.json", bytes.NewReader([]byte(`{"v":2}`)), opts); err != nil {
				t.Fatalf("Put overwrite: %v", err)
			}

			data, info, err := ReadAll(ctx, s, "state.json")
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(data) != `{"v":2}` {
				t.Errorf("body = %s, want overwritten content", data)
			}
			if info.ContentType != "application/json" {
				t.Errorf("ContentType = %q", info.ContentType)
			}
		})
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"rpt_2/parsed.json", "rpt_1/q.xlsx", "rpt_1/parsed.json", "state.json"} {
				if err := s.Put(ctx, k, strings.NewReader("x"), PutOptions{}); err != nil {
					t.Fatalf("Put(%s): %v", k, err)
				}
			}

			infos, err := s.List(ctx, "rpt_1/")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(infos) != 2 || infos[0].Key != "rpt_1/parsed.json" || infos[1].Key != "rpt_1/q.xlsx" {
				t.Errorf("List = %+v", infos)
			}

			if err := s.Delete(ctx, "state.json"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, _, err := s.Get(ctx, "state.json"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestS3Mock_Unavailable(t *testing.T) {
	s, rt := NewS3MockForTests()
	rt.SetUnavailable(true)

	err := s.Put(context.Background(), "state.json", strings.NewReader("{}"), PutOptions{})
	if err == nil {
		t.Fatal("Put succeeded against an unavailable endpoint")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("503 mapped to ErrNotFound")
	}
}

func TestNewS3_RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), S3Config{}); err == nil {
		t.Error("NewS3 without bucket succeeded")
	}
	s, err := NewS3(context.Background(), S3Config{
		Bucket: "qa-reports", Endpoint: "https://storage.example.test", AccessKeyID: "k", SecretAccessKey: "s", PathStyle: true,
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	if s.Driver() != DriverS3 {
		t.Errorf("Driver = %v, want s3", s.Driver())
	}
}
