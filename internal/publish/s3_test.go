package publish

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/checksum"
)

type fakeObject struct {
	body        string
	contentType string
	sum         string
}

// fakeS3 serves path-style HEAD and PUT object requests.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	puts    int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodHead:
		obj, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("X-Amz-Meta-Sha256", obj.sum)
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = fakeObject{
			body:        string(body),
			contentType: r.Header.Get("Content-Type"),
			sum:         r.Header.Get("X-Amz-Meta-Sha256"),
		}
		f.puts++
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestNewS3_RequiresConfig(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	if _, err := NewS3(S3Options{Region: "us-east-1"}); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("no bucket: %v", err)
	}
	if _, err := NewS3(S3Options{Bucket: "b", Region: "us-east-1"}); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("no credentials: %v", err)
	}
}

func TestS3_PublishUploadsChangedFiles(t *testing.T) {
	fake := &fakeS3{objects: map[string]fakeObject{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	pub, err := NewS3(S3Options{
		Bucket:          "site",
		Region:          "us-east-1",
		Prefix:          "/www/",
		Endpoint:        srv.URL,
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		Logger:          slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	store := tempStore(t, map[string]string{"index.html": "<h1>hi</h1>", "css/theme.css": "body{}"})
	ctx := context.Background()

	res, err := pub.Publish(ctx, Request{Store: store})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if res.Files != 2 || res.Skipped || res.DeployURL != "https://site.s3.us-east-1.amazonaws.com/www/" {
		t.Errorf("result = %+v", res)
	}
	idx, ok := fake.objects["site/www/index.html"]
	if !ok {
		t.Fatalf("objects = %v", fake.objects)
	}
	if idx.body != "<h1>hi</h1>" || !strings.HasPrefix(idx.contentType, "text/html") || idx.sum != checksum.Sum([]byte("<h1>hi</h1>")) {
		t.Errorf("index object = %+v", idx)
	}
	if ct := fake.objects["site/www/css/theme.css"].contentType; !strings.HasPrefix(ct, "text/css") {
		t.Errorf("css content type = %q", ct)
	}

	// Only the edited file is uploaded again.
	_ = store.Write("index.html", []byte("<h1>hello</h1>"))
	res, err = pub.Publish(ctx, Request{Store: store})
	if err != nil {
		t.Fatalf("second Publish: %v", err)
	}
	if res.Files != 1 || fake.puts != 3 {
		t.Errorf("second publish uploaded %d (puts %d), want 1 (3)", res.Files, fake.puts)
	}

	res, _ = pub.Publish(ctx, Request{Store: store})
	if !res.Skipped {
		t.Errorf("expected skip, got %+v", res)
	}
}
