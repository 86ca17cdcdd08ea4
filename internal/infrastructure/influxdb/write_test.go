package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/nerrad567/powerlog-ingest/internal/infrastructure/config"
	"github.com/nerrad567/powerlog-ingest/internal/ingest"
	"github.com/nerrad567/powerlog-ingest/internal/tsv"
)

func testSample(value float64) tsv.Sample {
	return tsv.Sample{
		Timestamp: time.Date(2026, 2, 8, 19, 10, 0, 0, time.UTC),
		Value:     value,
		Campaign:  "camp1",
		FileName:  "export.tsv",
		Channel: tsv.ChannelDescriptor{
			ColumnIndex:        1,
			ChannelID:          "M02000800_U1",
			DeviceSerial:       "02000800",
			DeviceMasterSerial: "02000800",
			DeviceType:         tsv.DeviceMaster,
			DeviceSubtype:      tsv.SubtypeTri,
			ChannelNumber:      1,
			ChannelLabel:       "U1",
			ChannelName:        "Ph 1",
			Unit:               "V",
		},
	}
}

func TestSamplePoint(t *testing.T) {
	s := testSample(244.26)
	line := write.PointToLineProtocol(samplePoint("campaign", &s), time.Second)

	if !strings.HasPrefix(line, "campaign,") {
		t.Errorf("line = %q, want measurement campaign", line)
	}
	for _, want := range []string{
		"campaign=camp1",
		"channel_id=M02000800_U1",
		"channel_subtype=tri",
		"channel_type=master",
		"file_name=export.tsv",
		"M02000800_U1_V=244.26",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line = %q, missing %q", line, want)
		}
	}
	if !strings.HasSuffix(strings.TrimSpace(line), " 1770577800") {
		t.Errorf("line = %q, want second precision timestamp 1770577800", line)
	}
	if strings.Count(line, "=tri") != 1 {
		t.Errorf("line = %q, subtype must be tagged exactly once", line)
	}
}

func TestSamplePoint_NoSubtypeForSlave(t *testing.T) {
	s := testSample(1)
	s.Channel.DeviceType = tsv.DeviceSlave
	s.Channel.DeviceSubtype = ""

	line := write.PointToLineProtocol(samplePoint("campaign", &s), time.Second)
	if strings.Contains(line, "channel_subtype") {
		t.Errorf("line = %q, slave must not carry channel_subtype", line)
	}
}

func TestSummaryPoints(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	run := ingest.NewRunReport("/data", start)
	run.Add(&ingest.FileReport{
		FilePath: "/data/site_a/camp1/02001171/export.tsv",
		Bucket:   "site_a",
		Campaign: "camp1",
		Status:   ingest.FileSuccess,
		Rows:     10,
		Points:   20,
	})
	run.Finish(start.Add(2 * time.Second))

	runLine := write.PointToLineProtocol(runPoint(run, run.FinishedAt), time.Second)
	for _, want := range []string{"tsv_parser_run,status=success", "nb_files_total=1i", "nb_points_total=20i"} {
		if !strings.Contains(runLine, want) {
			t.Errorf("run line = %q, missing %q", runLine, want)
		}
	}

	fileLine := write.PointToLineProtocol(filePoint(run.Files[0], run.FinishedAt), time.Second)
	for _, want := range []string{"tsv_parser_file,", "bucket=site_a", "file_name=export.tsv", "nb_rows=10i"} {
		if !strings.Contains(fileLine, want) {
			t.Errorf("file line = %q, missing %q", fileLine, want)
		}
	}
}

func TestRetentionRules(t *testing.T) {
	if rules := retentionRules(0); rules != nil {
		t.Errorf("retentionRules(0) = %v, want nil", rules)
	}
	rules := retentionRules(30)
	if len(rules) != 1 || rules[0].EverySeconds != 30*secondsPerDay {
		t.Errorf("retentionRules(30) = %v", rules)
	}
}

func TestTokenByDescription(t *testing.T) {
	desc := TokenDescription("site_a")
	other := TokenDescription("site_b")
	token := "secret"

	auths := &[]domain.Authorization{
		{AuthorizationUpdateRequest: domain.AuthorizationUpdateRequest{Description: &other}, Token: new(string)},
		{AuthorizationUpdateRequest: domain.AuthorizationUpdateRequest{Description: &desc}, Token: &token},
	}

	if got := tokenByDescription(auths, desc); got != token {
		t.Errorf("tokenByDescription() = %q, want %q", got, token)
	}
	if got := tokenByDescription(auths, TokenDescription("missing")); got != "" {
		t.Errorf("tokenByDescription() = %q, want empty", got)
	}
	if got := tokenByDescription(nil, desc); got != "" {
		t.Errorf("tokenByDescription(nil) = %q, want empty", got)
	}
}

func TestBucketPermissions(t *testing.T) {
	org, bucket := "org1", "bucket1"
	perms := *bucketPermissions(&org, &bucket)

	if len(perms) != 2 {
		t.Fatalf("len(perms) = %d, want 2", len(perms))
	}
	if perms[0].Action != domain.PermissionActionRead || perms[1].Action != domain.PermissionActionWrite {
		t.Errorf("actions = %v, %v", perms[0].Action, perms[1].Action)
	}
	for _, p := range perms {
		if p.Resource.Type != domain.ResourceTypeBuckets || *p.Resource.Id != bucket || *p.Resource.OrgID != org {
			t.Errorf("resource = %+v", p.Resource)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(errors.New("bucket 'x' not found")) {
		t.Error("isNotFound() = false for not found message")
	}
	if isNotFound(errors.New("unauthorized")) || isNotFound(nil) {
		t.Error("isNotFound() = true for unrelated error")
	}
}

// fakeServer answers pings and records write bodies.
type fakeServer struct {
	mu      sync.Mutex
	bodies  []string
	queries []string
	status  int
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping", "/health":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.bodies = append(f.bodies, string(body))
		f.queries = append(f.queries, r.URL.RawQuery)
		status := f.status
		f.mu.Unlock()
		if status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"code":"invalid","message":"rejected"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func connectFake(t *testing.T, f *fakeServer) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := Connect(context.Background(), config.InfluxDBConfig{
		Enabled: true,
		URL:     srv.URL,
		Token:   "test-token",
		Org:     "org1",
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestWriteSamples_Chunked(t *testing.T) {
	f := &fakeServer{}
	c := connectFake(t, f)

	samples := make([]tsv.Sample, writeChunkSize+1)
	for i := range samples {
		samples[i] = testSample(float64(i))
	}

	if err := c.WriteSamples(context.Background(), "site_a", "campaign", samples); err != nil {
		t.Fatalf("WriteSamples() error = %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) != 2 {
		t.Fatalf("write requests = %d, want 2", len(f.bodies))
	}
	if !strings.Contains(f.queries[0], "bucket=site_a") || !strings.Contains(f.queries[0], "precision=s") {
		t.Errorf("query = %q", f.queries[0])
	}
	if lines := strings.Count(strings.TrimSpace(f.bodies[1]), "\n") + 1; lines != 1 {
		t.Errorf("second chunk lines = %d, want 1", lines)
	}
}

func TestWriteSamples_Rejected(t *testing.T) {
	f := &fakeServer{status: http.StatusBadRequest}
	c := connectFake(t, f)

	err := c.WriteSamples(context.Background(), "site_a", "campaign", []tsv.Sample{testSample(1)})
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("WriteSamples() error = %v, want ErrWriteFailed", err)
	}
}

func TestWriteSamples_Closed(t *testing.T) {
	c := connectFake(t, &fakeServer{})
	_ = c.Close()

	err := c.WriteSamples(context.Background(), "site_a", "campaign", nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("WriteSamples() error = %v, want ErrNotConnected", err)
	}
}
