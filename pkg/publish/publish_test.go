package publish

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/diag"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/engine"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/taxonomy"
)

func runScenario(t *testing.T) *engine.Result {
	t.Helper()
	cfg := config.Default(config.VariantIIR)
	cfg.Totals.Process = "Total"
	cfg.Simulations = 300
	cfg.Seed = 3
	k := func(p string) inventory.Key { return inventory.Key{Process: p, Compound: "CO2"} }
	u := func(p string) inventory.UncertaintyRecord {
		return inventory.UncertaintyRecord{
			Key: k(p),
			AD:  inventory.ParamInput{Dist: "normal", Sym: inventory.Num(5)},
			EF:  inventory.ParamInput{Dist: "normal", Sym: inventory.Num(20)},
		}
	}
	in := engine.Input{
		Taxonomy: taxonomy.Input{Process: taxonomy.Spec{Edges: []taxonomy.Edge{
			{Child: "2A", Parent: "2", Depth: 2},
			{Child: "2B", Parent: "2", Depth: 2},
			{Child: "2", Parent: "Total", Depth: 1},
		}}},
		Records: inventory.Records{
			EmissionsBY:   []inventory.EmissionRecord{{Key: k("2A"), Value: inventory.Num(4)}, {Key: k("2B"), Value: inventory.Num(6)}},
			EmissionsRY:   []inventory.EmissionRecord{{Key: k("2A"), Value: inventory.Num(5)}, {Key: k("2B"), Value: inventory.Num(5)}},
			UncertaintyRY: []inventory.UncertaintyRecord{u("2A"), u("2B")},
		},
	}
	res, err := engine.Run(context.Background(), cfg, in, diag.Discard())
	require.NoError(t, err)
	return res
}

func checkPublished(t *testing.T, store Store, res *engine.Result) {
	t.Helper()
	ctx := context.Background()
	m, err := Publish(ctx, store, res)
	require.NoError(t, err)
	assert.Equal(t, store.Driver(), m.Driver)
	require.Len(t, m.Objects, 2)

	rc, err := store.Get(ctx, Prefix(res.RunID)+"result.json")
	require.NoError(t, err)
	defer rc.Close()
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(rc).Decode(&decoded))
	assert.Equal(t, res.RunID, decoded["run_id"])

	rc2, err := store.Get(ctx, Prefix(res.RunID)+"rows.csv")
	require.NoError(t, err)
	defer rc2.Close()
	recs, err := csv.NewReader(rc2).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, csvHeader, recs[0])
	assert.Len(t, recs, 1+3*len(res.Rows))

	infos, err := store.List(ctx, Prefix(res.RunID))
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, Prefix(res.RunID)+"result.json", infos[0].Key)
	assert.Equal(t, Prefix(res.RunID)+"rows.csv", infos[1].Key)

	_, err = Publish(ctx, store, res)
	assert.ErrorIs(t, err, ErrExists)
}

func TestPublishMemory(t *testing.T) {
	checkPublished(t, NewMemory(), runScenario(t))
}

func TestPublishFilesystem(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	checkPublished(t, store, runScenario(t))

	_, err = store.Get(context.Background(), "runs/missing/result.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystemRejectsBadKeys(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	for _, key := range []string{"", "../escape", "/abs"} {
		_, err := store.Put(context.Background(), key, strings.NewReader("x"), "")
		assert.Error(t, err, key)
	}
}

func TestPublishS3(t *testing.T) {
	rt := &fakeS3{objects: make(map[string]fakeObject)}
	store, err := NewS3(context.Background(), S3Config{
		Bucket:          "euq-runs",
		Region:          "us-east-1",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
		HTTPClient:      &http.Client{Transport: rt},
	})
	require.NoError(t, err)
	res := runScenario(t)
	checkPublished(t, store, res)

	rt.mu.Lock()
	defer rt.mu.Unlock()
	assert.Equal(t, "application/json", rt.objects[Prefix(res.RunID)+"result.json"].contentType)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.Publish{})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, config.Publish{Driver: "memory"})
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, s.Driver())

	s, err = Open(ctx, config.Publish{Driver: "fs", Root: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, s.Driver())

	_, err = Open(ctx, config.Publish{Driver: "s3"})
	assert.Error(t, err)
	_, err = Open(ctx, config.Publish{Driver: "gcs"})
	assert.Error(t, err)
}

type fakeObject struct {
	body        []byte
	contentType string
}

// fakeS3 answers the path-style Head/Get/Put/ListObjectsV2 calls the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	reply := func(code int, body []byte, h http.Header) *http.Response {
		return &http.Response{StatusCode: code, Body: io.NopCloser(bytes.NewReader(body)), Header: h, Request: req}
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>", k, len(f.objects[k].body))
		}
		b.WriteString("</ListBucketResult>")
		return reply(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}}), nil
	}
	obj, ok := f.objects[key]
	headers := func() http.Header {
		return http.Header{
			"Content-Length": {fmt.Sprint(len(obj.body))},
			"Content-Type":   {obj.contentType},
			"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
			"Etag":           {`"etag"`},
		}
	}
	switch req.Method {
	case http.MethodHead:
		if !ok {
			return reply(http.StatusNotFound, nil, http.Header{}), nil
		}
		return reply(http.StatusOK, nil, headers()), nil
	case http.MethodGet:
		if !ok {
			return reply(http.StatusNotFound, nil, http.Header{}), nil
		}
		return reply(http.StatusOK, obj.body, headers()), nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type")}
		return reply(http.StatusOK, nil, http.Header{"Etag": {`"etag"`}}), nil
	}
	return reply(http.StatusNotImplemented, nil, http.Header{}), nil
}

// decodeChunked strips aws-chunked framing: <hex>[;ext]\r\n<data>\r\n ... 0\r\n.
func decodeChunked(b []byte) ([]byte, bool) {
	var out []byte
	for {
		i := bytes.Index(b, []byte("\r\n"))
		if i < 0 {
			return nil, false
		}
		head := string(b[:i])
		if j := strings.IndexByte(head, ';'); j >= 0 {
			head = head[:j]
		}
		var n int
		if _, err := fmt.Sscanf(head, "%x", &n); err != nil {
			return nil, false
		}
		b = b[i+2:]
		if n == 0 {
			return out, true
		}
		if len(b) < n+2 {
			return nil, false
		}
		out = append(out, b[:n]...)
		b = b[n+2:]
	}
}
