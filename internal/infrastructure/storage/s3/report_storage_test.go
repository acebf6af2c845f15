package s3

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObjectAPI struct {
	put      *s3.PutObjectInput
	body     []byte
	listIn   *s3.ListObjectsV2Input
	contents []types.Object
	err      error
}

func (f *fakeObjectAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.put = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.listIn = in
	return &s3.ListObjectsV2Output{Contents: f.contents}, nil
}

func newTestStorage(t *testing.T, api objectAPI, cfg Config) *ReportStorage {
	t.Helper()
	if err := normalizeConfig(&cfg); err != nil {
		t.Fatalf("normalize config: %v", err)
	}
	return newReportStorage(api, cfg)
}

func TestPutObjectReturnsPresignedURL(t *testing.T) {
	api := &fakeObjectAPI{}
	storage := newTestStorage(t, api, Config{Bucket: "soc-reports"})

	var gotTTL time.Duration
	storage.presign = func(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
		gotTTL = ttl
		return "https://signed/" + bucket + "/" + key, nil
	}

	url, err := storage.PutObject(context.Background(), "exports/2024/01/03/r.csv", "text/csv", []byte("a,b\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if url != "https://signed/soc-reports/exports/2024/01/03/r.csv" {
		t.Errorf("unexpected url %s", url)
	}
	if gotTTL != 15*time.Minute {
		t.Errorf("expected default ttl 15m, got %v", gotTTL)
	}
	if string(api.body) != "a,b\n" {
		t.Errorf("unexpected body %q", api.body)
	}
	if aws.ToString(api.put.ContentDisposition) != `attachment; filename="r.csv"` {
		t.Errorf("unexpected content disposition %s", aws.ToString(api.put.ContentDisposition))
	}
}

func TestPutObjectErrors(t *testing.T) {
	storage := newTestStorage(t, &fakeObjectAPI{err: errors.New("denied")}, Config{Bucket: "b", URLMode: URLModePublic})

	if _, err := storage.PutObject(context.Background(), " ", "text/csv", nil); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := storage.PutObject(context.Background(), "k.csv", "text/csv", nil); err == nil {
		t.Error("expected error from client")
	}
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "aws default",
			cfg:  Config{Bucket: "b"},
			want: "https://b.s3.amazonaws.com/exports/a%20b.csv",
		},
		{
			name: "path style",
			cfg:  Config{Bucket: "b", Endpoint: "http://minio:9000/", UsePathStyle: true},
			want: "http://minio:9000/b/exports/a%20b.csv",
		},
		{
			name: "virtual host",
			cfg:  Config{Bucket: "b", Endpoint: "https://storage.example.com"},
			want: "https://b.storage.example.com/exports/a%20b.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.URLMode = URLModePublic
			storage := newTestStorage(t, &fakeObjectAPI{}, tt.cfg)
			if got := storage.publicURL("exports/a b.csv"); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestListObjectsSortsNewestFirst(t *testing.T) {
	older := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	api := &fakeObjectAPI{contents: []types.Object{
		{Key: aws.String("exports/old.csv"), LastModified: aws.Time(older), Size: aws.Int64(10)},
		{Key: aws.String("exports/"), LastModified: aws.Time(newer)},
		{Key: aws.String("exports/new.csv"), LastModified: aws.Time(newer), Size: aws.Int64(20)},
	}}
	storage := newTestStorage(t, api, Config{Bucket: "b", URLMode: URLModePublic})

	objects, err := storage.ListObjects(context.Background(), "exports/", 500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if aws.ToInt32(api.listIn.MaxKeys) != maxListLimit {
		t.Errorf("expected limit clamped to %d, got %d", maxListLimit, aws.ToInt32(api.listIn.MaxKeys))
	}
	if len(objects) != 2 {
		t.Fatalf("expected 2 objects (folder marker skipped), got %d", len(objects))
	}
	if objects[0].Key != "exports/new.csv" || objects[0].SizeBytes != 20 {
		t.Errorf("unexpected first object %+v", objects[0])
	}
	if objects[1].URL != "https://b.s3.amazonaws.com/exports/old.csv" {
		t.Errorf("unexpected url %s", objects[1].URL)
	}
}

func TestListObjectsRequiresPrefix(t *testing.T) {
	storage := newTestStorage(t, &fakeObjectAPI{}, Config{Bucket: "b"})
	if _, err := storage.ListObjects(context.Background(), "", 10); err == nil {
		t.Error("expected error for empty prefix")
	}
}

func TestNormalizeConfigRejectsUnknownMode(t *testing.T) {
	cfg := Config{Bucket: "b", URLMode: "signed-cookie"}
	if err := normalizeConfig(&cfg); err == nil {
		t.Error("expected error for unsupported url mode")
	}
}
