package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intake-gateway/intake-gateway/internal/audit"
	"github.com/intake-gateway/intake-gateway/internal/config"
	"github.com/intake-gateway/intake-gateway/internal/storage"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeStore struct {
	mu       sync.Mutex
	stored   []*storage.Object
	data     [][]byte
	lookups  []string
	link     string
	storeErr error
	metaErr  error
	metaName string
	// block makes Store wait for ctx to end
	block bool
}

func (f *fakeStore) Store(ctx context.Context, obj *storage.Object) (*storage.Reference, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	body, _ := io.ReadAll(obj.Body)
	f.stored = append(f.stored, obj)
	f.data = append(f.data, body)
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	return &storage.Reference{ID: "FILE1", Name: obj.Name, Link: f.link, MimeType: obj.ContentType, Size: obj.Size}, nil
}

func (f *fakeStore) GetMetadata(_ context.Context, id string) (*storage.Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups = append(f.lookups, id)
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	return &storage.Reference{ID: id, Name: f.metaName, MimeType: "application/pdf", Size: 42}, nil
}

func (f *fakeStore) Probe(context.Context) error { return nil }

type fakeLog struct {
	mu    sync.Mutex
	rows  []*audit.Row
	err   error
	block bool
}

func (f *fakeLog) Append(ctx context.Context, row *audit.Row) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeLog) Close() error { return nil }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Intake.Timezone = "Europe/Sofia"
	cfg.Intake.VerifyReferences = true
	cfg.Intake.Validation.Mode = "permissive"
	cfg.Upstream.Timeout = 5 * time.Second
	return cfg
}

func newTestService(t *testing.T, cfg *config.Config) (*Service, *fakeStore, *fakeLog) {
	t.Helper()
	store := &fakeStore{link: "https://drive.google.com/file/d/FILE1/view?usp=drivesdk", metaName: "notes.pdf"}
	log := &fakeLog{}
	svc, err := NewService(cfg, store, log)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 8, 30, 0, 0, time.UTC) }
	return svc, store, log
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/task", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, fields map[string]string, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename=%q`, filename)}
		if contentType != "" {
			h["Content-Type"] = []string{contentType}
		}
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// ---------------------------------------------------------------------------
// ExtractFileID / CanonicalLink
// ---------------------------------------------------------------------------

func TestExtractFileID(t *testing.T) {
	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{"https://store.example/file/d/ABC123/view", "ABC123", true},
		{"https://store.example/open?id=XYZ9", "XYZ9", true},
		{"https://store.example/uc?export=download&id=a_b-c", "a_b-c", true},
		{"https://store.example/file/d/FIRST/view?id=SECOND", "FIRST", true},
		{"https://store.example/FILE/D/ABC/view", "", false},
		{"https://store.example/folders/abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, ok := ExtractFileID(tt.ref)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalLink(t *testing.T) {
	assert.Equal(t, "https://drive.google.com/file/d/ABC/view", CanonicalLink("https://drive.google.com/", "ABC"))
	assert.Equal(t, "http://files.local/file/d/ABC/view", CanonicalLink("http://files.local", "ABC"))
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

func TestNewDefaults(t *testing.T) {
	assert.Equal(t, builtinDefaults, NewDefaults(nil))

	d := NewDefaults(&config.DefaultsConfig{TaskID: "MANUAL", FileStatus: "stored"})
	assert.Equal(t, "MANUAL", d.TaskID)
	assert.Equal(t, "stored", d.FileStatus)
	assert.Equal(t, "Costa", d.CommandedBy)
	assert.Equal(t, "application/octet-stream", d.ContentType)
}

// ---------------------------------------------------------------------------
// Normalize
// ---------------------------------------------------------------------------

func TestNormalize_JSONScalars(t *testing.T) {
	sub, err := Normalize(jsonRequest(`{"task_id": 42, "content": true, "status": null, "commanded_by": "  ", "extra": [1,2]}`), 1<<20)
	require.NoError(t, err)

	assert.Equal(t, Value{Set: true, V: "42"}, sub.TaskID)
	assert.Equal(t, Value{Set: true, V: "true"}, sub.Content)
	assert.False(t, sub.Status.Set, "null counts as absent")
	assert.False(t, sub.CommandedBy.Set, "blank counts as absent")
	assert.Contains(t, sub.Raw, "extra")
	assert.Nil(t, sub.File)
}

func TestNormalize_MalformedJSONIsEmpty(t *testing.T) {
	for _, body := range []string{`{not json`, `[1,2,3]`, ``, `null`} {
		sub, err := Normalize(jsonRequest(body), 1<<20)
		require.NoError(t, err, body)
		assert.Empty(t, sub.Raw, body)
		assert.False(t, sub.TaskID.Set, body)
	}
}

func TestNormalize_ReferenceKeys(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"drive_link": "https://x/file/d/A/view"}`, "https://x/file/d/A/view"},
		{`{"reference": "https://x/open?id=B"}`, "https://x/open?id=B"},
		{`{"link": "https://x/open?id=C"}`, "https://x/open?id=C"},
		{`{"link": "https://x/open?id=C", "drive_link": "https://x/file/d/D/view"}`, "https://x/file/d/D/view"},
		{`{"drive_link": " ", "reference": "https://x/open?id=E"}`, "https://x/open?id=E"},
	}
	for _, tt := range tests {
		sub, err := Normalize(jsonRequest(tt.body), 1<<20)
		require.NoError(t, err)
		assert.Equal(t, tt.want, sub.Reference.V, tt.body)
	}
}

func TestNormalize_Multipart(t *testing.T) {
	req := multipartRequest(t, map[string]string{"task_id": "T1", "content": ""}, "report.pdf", "application/pdf", []byte("%PDF-1.7"))

	sub, err := Normalize(req, 1<<20)
	require.NoError(t, err)

	require.NotNil(t, sub.File)
	assert.Equal(t, "report.pdf", sub.File.Name)
	assert.Equal(t, "application/pdf", sub.File.ContentType)
	assert.Equal(t, []byte("%PDF-1.7"), sub.File.Data)
	assert.Equal(t, "T1", sub.TaskID.V)
	assert.False(t, sub.Content.Set)
	assert.Equal(t, "T1", sub.Raw["task_id"])
}

func TestNormalize_URLEncodedForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("drive_link=https%3A%2F%2Fx%2Fopen%3Fid%3DZ&task_id=T9"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	sub, err := Normalize(req, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "https://x/open?id=Z", sub.Reference.V)
	assert.Equal(t, "T9", sub.TaskID.V)
}

func TestNormalize_BrokenMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("garbage"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=nope")

	_, err := Normalize(req, 1<<20)
	var ie *Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindBadRequest, ie.Kind)
	assert.Equal(t, "failed to parse multipart form", ie.Reason)
}

// ---------------------------------------------------------------------------
// SubmitTask
// ---------------------------------------------------------------------------

func TestSubmitTask_DefaultsEcho(t *testing.T) {
	svc, _, log := newTestService(t, testConfig())

	sub, err := Normalize(jsonRequest(`{}`), 1<<20)
	require.NoError(t, err)

	res, err := svc.SubmitTask(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, "AUTO", res.Received["task_id"])
	assert.Equal(t, "Costa", res.Received["commanded_by"])
	assert.Equal(t, "Pepi", res.Received["executed_by"])
	assert.Equal(t, "Task", res.Received["action_type"])

	require.Len(t, log.rows, 1)
	row := log.rows[0]
	assert.Equal(t, "Task AUTO", row.Content)
	assert.Equal(t, "success", row.Status)
	assert.Equal(t, "2026-01-02 10:30:00 EET", row.Timestamp)
}

func TestSubmitTask_EchoesReceivedFields(t *testing.T) {
	svc, _, log := newTestService(t, testConfig())

	sub, err := Normalize(jsonRequest(`{"task_id":"T7","content":"Ship it","priority":3}`), 1<<20)
	require.NoError(t, err)

	res, err := svc.SubmitTask(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, "T7", res.Received["task_id"])
	assert.Equal(t, "Ship it", res.Received["content"])
	assert.EqualValues(t, "3", fmt.Sprint(res.Received["priority"]))
	require.Len(t, log.rows, 1)
	assert.Equal(t, "Ship it", log.rows[0].Content)
}

func TestSubmitTask_ContentLoggedVerbatim(t *testing.T) {
	svc, _, log := newTestService(t, testConfig())

	sub, err := Normalize(jsonRequest(`{"task_id":" T7 ","content":"  line one\n  "}`), 1<<20)
	require.NoError(t, err)
	_, err = svc.SubmitTask(context.Background(), sub)
	require.NoError(t, err)

	require.Len(t, log.rows, 1)
	assert.Equal(t, "  line one\n  ", log.rows[0].Content)
	assert.Equal(t, " T7 ", log.rows[0].TaskID)
}

func TestNormalize_BlankFieldsAbsent(t *testing.T) {
	sub, err := Normalize(jsonRequest(`{"task_id":"   ","status":"\t\n"}`), 1<<20)
	require.NoError(t, err)
	assert.False(t, sub.TaskID.Set)
	assert.False(t, sub.Status.Set)
}

func TestSubmitTask_TwiceAppendsTwice(t *testing.T) {
	svc, _, log := newTestService(t, testConfig())

	for i := 0; i < 2; i++ {
		sub, err := Normalize(jsonRequest(`{"task_id":"DUP"}`), 1<<20)
		require.NoError(t, err)
		_, err = svc.SubmitTask(context.Background(), sub)
		require.NoError(t, err)
	}
	assert.Len(t, log.rows, 2)
}

func TestSubmitTask_AppendFailure(t *testing.T) {
	svc, _, log := newTestService(t, testConfig())
	log.err = errors.New("quota exceeded")

	sub, err := Normalize(jsonRequest(`{"task_id":"T1"}`), 1<<20)
	require.NoError(t, err)

	_, err = svc.SubmitTask(context.Background(), sub)
	var ie *Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindUpstreamLog, ie.Kind)
	assert.Equal(t, CodeSheetsLogFailed, ie.Code)
	assert.Contains(t, ie.Reason, "sheets_log_failed: quota exceeded")
	assert.ErrorIs(t, err, log.err)
}

func TestSubmitTask_StrictPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Intake.Validation = config.ValidationConfig{Mode: "strict", MaxFieldLength: 4, MaxContentLength: 100}
	svc, _, log := newTestService(t, cfg)

	sub, err := Normalize(jsonRequest(`{"task_id":"TOO-LONG"}`), 1<<20)
	require.NoError(t, err)

	_, err = svc.SubmitTask(context.Background(), sub)
	var ie *Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindBadRequest, ie.Kind)
	assert.Contains(t, ie.Reason, "task_id")
	assert.Empty(t, log.rows)
}

// ---------------------------------------------------------------------------
// SubmitFile
// ---------------------------------------------------------------------------

func TestSubmitFile_NoInput(t *testing.T) {
	svc, store, log := newTestService(t, testConfig())

	_, err := svc.SubmitFile(context.Background(), &Submission{Raw: map[string]any{}})
	var ie *Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindBadRequest, ie.Kind)
	assert.Equal(t, "no file or drive_link provided", ie.Reason)
	assert.Empty(t, store.stored)
	assert.Empty(t, log.rows)
}

func TestSubmitFile_UploadUsesStoreLink(t *testing.T) {
	svc, store, log := newTestService(t, testConfig())

	req := multipartRequest(t, map[string]string{"task_id": "T1", "action_type": "Content"}, "report.pdf", "application/pdf", []byte("%PDF"))
	sub, err := Normalize(req, 1<<20)
	require.NoError(t, err)

	res, err := svc.SubmitFile(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, store.link, res.Link)
	assert.Equal(t, "report.pdf", res.Filename)
	assert.Equal(t, "FILE1", res.FileID)
	assert.NotEmpty(t, res.Reference.Checksum)

	require.Len(t, store.stored, 1)
	assert.Equal(t, "application/pdf", store.stored[0].ContentType)
	assert.Equal(t, []byte("%PDF"), store.data[0])

	require.Len(t, log.rows, 1)
	row := log.rows[0]
	assert.Equal(t, store.link, row.Content)
	assert.Equal(t, "uploaded", row.Status)
	assert.Equal(t, "Content", row.ActionType)
	assert.Equal(t, "T1", row.TaskID)
}

func TestSubmitFile_UploadDefaults(t *testing.T) {
	svc, store, _ := newTestService(t, testConfig())

	sub := &Submission{File: &File{Data: []byte("x")}, Raw: map[string]any{}}
	_, err := svc.SubmitFile(context.Background(), sub)
	require.NoError(t, err)

	require.Len(t, store.stored, 1)
	assert.Equal(t, "upload.bin", store.stored[0].Name)
	assert.Equal(t, "application/octet-stream", store.stored[0].ContentType)
}

func TestSubmitFile_FileWinsOverReference(t *testing.T) {
	svc, store, _ := newTestService(t, testConfig())

	sub := &Submission{
		File:      &File{Name: "a.txt", Data: []byte("a")},
		Reference: Value{Set: true, V: "https://x/file/d/REF/view"},
		Raw:       map[string]any{},
	}
	res, err := svc.SubmitFile(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, "FILE1", res.FileID)
	assert.Empty(t, store.lookups)
}

func TestSubmitFile_StoreErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"denied", fmt.Errorf("upload: %w", storage.ErrAccessDenied), CodeDriveAccessDenied},
		{"not found", fmt.Errorf("upload: %w", storage.ErrNotFound), CodeDriveAccessDenied},
		{"other", errors.New("connection reset"), CodeDriveUploadFailed},
		{"timeout", context.DeadlineExceeded, CodeDriveUploadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, log := newTestService(t, testConfig())
			store.storeErr = tt.err

			_, err := svc.SubmitFile(context.Background(), &Submission{File: &File{Data: []byte("x")}, Raw: map[string]any{}})
			var ie *Error
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, KindUpstreamBlob, ie.Kind)
			assert.Equal(t, tt.wantCode, ie.Code)
			assert.Empty(t, log.rows)
		})
	}
}

func TestService_UpstreamTimeout(t *testing.T) {
	tests := []struct {
		name     string
		blockLog bool
		wantKind Kind
		wantCode string
	}{
		{"store", false, KindUpstreamBlob, CodeDriveUploadFailed},
		{"append", true, KindUpstreamLog, CodeSheetsLogFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Upstream.Timeout = 50 * time.Millisecond
			svc, store, log := newTestService(t, cfg)
			store.block = !tt.blockLog
			log.block = tt.blockLog

			start := time.Now()
			_, err := svc.SubmitFile(context.Background(), &Submission{File: &File{Name: "slow.bin", Data: []byte("x")}, Raw: map[string]any{}})
			elapsed := time.Since(start)

			var ie *Error
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.wantKind, ie.Kind)
			assert.Equal(t, tt.wantCode, ie.Code)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
			assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
			assert.Less(t, elapsed, 2*time.Second)
		})
	}
}

func TestSubmitTask_AppendTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Upstream.Timeout = 50 * time.Millisecond
	svc, _, log := newTestService(t, cfg)
	log.block = true

	start := time.Now()
	_, err := svc.SubmitTask(context.Background(), &Submission{Raw: map[string]any{}})

	var ie *Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindUpstreamLog, ie.Kind)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestSubmitFile_AppendFailureCarriesReference(t *testing.T) {
	svc, store, log := newTestService(t, testConfig())
	log.err = errors.New("sheet locked")

	_, err := svc.SubmitFile(context.Background(), &Submission{File: &File{Name: "r.pdf", Data: []byte("x")}, Raw: map[string]any{}})
	var ie *Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindUpstreamLog, ie.Kind)
	require.NotNil(t, ie.Reference)
	assert.Equal(t, store.link, ie.Reference.Link)
	assert.Equal(t, "r.pdf", ie.Filename)
}

func TestSubmitFile_ReferenceVerified(t *testing.T) {
	svc, store, log := newTestService(t, testConfig())

	sub, err := Normalize(jsonRequest(`{"drive_link":"https://store.example/open?id=XYZ9"}`), 1<<20)
	require.NoError(t, err)

	res, err := svc.SubmitFile(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, "https://drive.google.com/file/d/XYZ9/view", res.Link)
	assert.Equal(t, "notes.pdf", res.Filename)
	assert.Equal(t, "XYZ9", res.FileID)
	assert.Equal(t, []string{"XYZ9"}, store.lookups)
	assert.Empty(t, store.stored)
	require.Len(t, log.rows, 1)
	assert.Equal(t, res.Link, log.rows[0].Content)
}

func TestSubmitFile_ReferenceUnverified(t *testing.T) {
	cfg := testConfig()
	cfg.Intake.VerifyReferences = false
	cfg.Storage.LinkBase = "https://files.example"
	svc, store, _ := newTestService(t, cfg)

	res, err := svc.SubmitFile(context.Background(), &Submission{
		Reference: Value{Set: true, V: "https://store.example/file/d/ABC123/view"},
		Raw:       map[string]any{},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/file/d/ABC123/view", res.Link)
	assert.Equal(t, "ABC123", res.Filename)
	assert.Empty(t, store.lookups)
}

func TestSubmitFile_InvalidReference(t *testing.T) {
	svc, store, log := newTestService(t, testConfig())

	_, err := svc.SubmitFile(context.Background(), &Submission{
		Reference: Value{Set: true, V: "https://store.example/folders/abc"},
		Raw:       map[string]any{},
	})
	var ie *Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindBadRequest, ie.Kind)
	assert.Equal(t, CodeInvalidReference, ie.Code)
	assert.Empty(t, store.lookups)
	assert.Empty(t, log.rows)
}

func TestSubmitFile_ReferenceLookupDenied(t *testing.T) {
	svc, store, log := newTestService(t, testConfig())
	store.metaErr = fmt.Errorf("lookup: %w", storage.ErrAccessDenied)

	_, err := svc.SubmitFile(context.Background(), &Submission{
		Reference: Value{Set: true, V: "https://store.example/file/d/ABC123/view"},
		Raw:       map[string]any{},
	})
	var ie *Error
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, CodeDriveAccessDenied, ie.Code)
	assert.Empty(t, log.rows)
}

// ---------------------------------------------------------------------------
// Error
// ---------------------------------------------------------------------------

func TestAsError(t *testing.T) {
	plain := errors.New("boom")
	ie := AsError(plain)
	assert.Equal(t, KindUnexpected, ie.Kind)
	assert.Equal(t, CodeInternal, ie.Code)
	assert.ErrorIs(t, ie, plain)

	orig := badRequest(CodeBadRequest, "nope", nil)
	assert.Same(t, orig, AsError(fmt.Errorf("wrapped: %w", orig)))
	assert.Equal(t, "bad_request: nope", orig.Error())
}

func TestError_UpstreamMessageNotRepeated(t *testing.T) {
	blob := blobError(CodeDriveUploadFailed, context.DeadlineExceeded)
	assert.Equal(t, "drive_upload_failed: context deadline exceeded", blob.Error())
	assert.ErrorIs(t, blob, context.DeadlineExceeded)

	logged := logError(errors.New("sheet locked"), nil, "")
	assert.Equal(t, "sheets_log_failed: sheet locked", logged.Error())

	wrapped := badRequest(CodeBadRequest, "failed to read request body", io.ErrUnexpectedEOF)
	assert.Equal(t, "bad_request: failed to read request body: unexpected EOF", wrapped.Error())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "bad_request", KindBadRequest.String())
	assert.Equal(t, "upstream_log", KindUpstreamLog.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
