package documents_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/documind/internal/documents"
	"github.com/fyrsmithlabs/documind/internal/store"
	"github.com/fyrsmithlabs/documind/internal/vectorstore"
)

type fakeStore struct {
	docs        map[uuid.UUID]*store.Document
	statusLog   []string
	failOnState string
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[uuid.UUID]*store.Document)}
}

func (f *fakeStore) CreateDocument(_ context.Context, id, userID uuid.UUID, filename, filePath string, fileSize int64, mimeType string) (*store.Document, error) {
	doc := &store.Document{
		ID: id, UserID: userID, Filename: filename,
		FilePath: filePath, FileSize: fileSize, Status: documents.StatusPending,
	}
	if mimeType != "" {
		doc.MimeType = &mimeType
	}
	f.docs[id] = doc
	return doc, nil
}

func (f *fakeStore) GetDocument(_ context.Context, id, userID uuid.UUID) (*store.Document, error) {
	doc, ok := f.docs[id]
	if !ok || doc.UserID != userID {
		return nil, store.ErrNotFound
	}
	return doc, nil
}

func (f *fakeStore) ListDocuments(_ context.Context, userID uuid.UUID) ([]*store.Document, error) {
	var out []*store.Document
	for _, doc := range f.docs {
		if doc.UserID == userID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateDocumentStatus(_ context.Context, id uuid.UUID, status, errorMessage string, chunkCount int, allowedFrom []string) error {
	if status == f.failOnState {
		return errors.New("status update failed")
	}
	doc, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	if !slices.Contains(allowedFrom, doc.Status) {
		return store.ErrInvalidTransition
	}
	doc.Status = status
	doc.ChunkCount = chunkCount
	if errorMessage != "" {
		doc.ErrorMessage = &errorMessage
	}
	f.statusLog = append(f.statusLog, status)
	return nil
}

func (f *fakeStore) SetDocumentCollection(_ context.Context, id uuid.UUID, collection string) error {
	if doc, ok := f.docs[id]; ok {
		doc.CollectionName = &collection
	}
	return nil
}

func (f *fakeStore) SetDocumentTaskID(_ context.Context, id uuid.UUID, taskID string) error {
	if doc, ok := f.docs[id]; ok {
		doc.TaskID = &taskID
	}
	return nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, id, userID uuid.UUID) error {
	doc, ok := f.docs[id]
	if !ok || doc.UserID != userID {
		return store.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

type fakeParser struct {
	text string
	err  error
}

func (f *fakeParser) ExtractText(string) (string, error) {
	return f.text, f.err
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type fakeIndex struct {
	upserted      []vectorstore.Point
	deleteFilters []map[string]string
	upsertErr     error
}

func (f *fakeIndex) EnsureCollection(_ context.Context, userID string) (string, error) {
	return vectorstore.CollectionName(userID), nil
}

func (f *fakeIndex) Upsert(_ context.Context, _ string, points []vectorstore.Point) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, points...)
	return nil
}

func (f *fakeIndex) DeleteByFilter(_ context.Context, _ string, filter map[string]string) error {
	f.deleteFilters = append(f.deleteFilters, filter)
	return nil
}

type fakeDispatcher struct {
	jobs int
	err  error
}

func (f *fakeDispatcher) Enqueue(_ context.Context, _, _ uuid.UUID, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.jobs++
	return "task-1", nil
}

func newService(t *testing.T, st *fakeStore, parser *fakeParser, embedder *fakeEmbedder, index *fakeIndex, dispatcher *fakeDispatcher, async bool) *documents.Service {
	t.Helper()
	processor := documents.NewProcessor(st, parser, embedder, index,
		documents.ProcessorConfig{ChunkSize: 50, ChunkOverlap: 10}, zap.NewNop())

	var d documents.Dispatcher
	if dispatcher != nil {
		d = dispatcher
	}
	svc, err := documents.NewService(st, processor, index, d, documents.ServiceConfig{
		Dir:               t.TempDir(),
		MaxFileSize:       1024,
		AllowedExtensions: []string{".pdf", ".txt", ".docx", ".md", ".csv"},
		Async:             async,
	}, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestService_Upload_RejectsExtension(t *testing.T) {
	svc := newService(t, newFakeStore(), &fakeParser{}, &fakeEmbedder{}, &fakeIndex{}, nil, false)

	_, err := svc.Upload(context.Background(), uuid.New(), "malware.exe", "", 10, strings.NewReader("x"))
	assert.ErrorIs(t, err, documents.ErrValidation)
}

func TestService_Upload_RejectsOversize(t *testing.T) {
	svc := newService(t, newFakeStore(), &fakeParser{}, &fakeEmbedder{}, &fakeIndex{}, nil, false)

	_, err := svc.Upload(context.Background(), uuid.New(), "big.txt", "", 1<<20, strings.NewReader("x"))
	assert.ErrorIs(t, err, documents.ErrValidation)
}

func TestService_Upload_RejectsOversizeBody(t *testing.T) {
	svc := newService(t, newFakeStore(), &fakeParser{}, &fakeEmbedder{}, &fakeIndex{}, nil, false)

	// Declared size fits but the body does not.
	body := strings.NewReader(strings.Repeat("a", 2048))
	_, err := svc.Upload(context.Background(), uuid.New(), "sneaky.txt", "", 100, body)
	assert.ErrorIs(t, err, documents.ErrValidation)
}

func TestService_Upload_Sync(t *testing.T) {
	st := newFakeStore()
	index := &fakeIndex{}
	parser := &fakeParser{text: "First sentence here. Second sentence follows. Third one closes it out."}
	svc := newService(t, st, parser, &fakeEmbedder{}, index, nil, false)

	userID := uuid.New()
	doc, err := svc.Upload(context.Background(), userID, "notes.txt", "", 70, strings.NewReader(parser.text))
	require.NoError(t, err)

	assert.Equal(t, documents.StatusCompleted, doc.Status)
	assert.Greater(t, doc.ChunkCount, 0)
	assert.Equal(t, []string{documents.StatusProcessing, documents.StatusCompleted}, st.statusLog)

	require.NotEmpty(t, index.upserted)
	payload := index.upserted[0].Payload
	assert.Equal(t, "document", payload["type"])
	assert.Equal(t, userID.String(), payload["user_id"])
	assert.Equal(t, doc.ID.String(), payload["document_id"])
	assert.Equal(t, "notes.txt", payload["filename"])
	assert.Equal(t, 0, payload["chunk_index"])
	assert.NotEmpty(t, payload["text"])
}

func TestService_Upload_ParseFailureMarksFailed(t *testing.T) {
	st := newFakeStore()
	parser := &fakeParser{err: errors.New("corrupt file")}
	svc := newService(t, st, parser, &fakeEmbedder{}, &fakeIndex{}, nil, false)

	_, err := svc.Upload(context.Background(), uuid.New(), "bad.pdf", "", 10, strings.NewReader("x"))
	require.Error(t, err)

	require.Len(t, st.docs, 1)
	for _, doc := range st.docs {
		assert.Equal(t, documents.StatusFailed, doc.Status)
		require.NotNil(t, doc.ErrorMessage)
		assert.Contains(t, *doc.ErrorMessage, "corrupt file")
	}
}

func TestService_Upload_EmbedFailureMarksFailed(t *testing.T) {
	st := newFakeStore()
	parser := &fakeParser{text: "some extracted text"}
	svc := newService(t, st, parser, &fakeEmbedder{err: errors.New("api down")}, &fakeIndex{}, nil, false)

	_, err := svc.Upload(context.Background(), uuid.New(), "doc.txt", "", 10, strings.NewReader("x"))
	require.Error(t, err)

	for _, doc := range st.docs {
		assert.Equal(t, documents.StatusFailed, doc.Status)
	}
}

func TestService_Upload_Async(t *testing.T) {
	st := newFakeStore()
	dispatcher := &fakeDispatcher{}
	svc := newService(t, st, &fakeParser{}, &fakeEmbedder{}, &fakeIndex{}, dispatcher, true)

	doc, err := svc.Upload(context.Background(), uuid.New(), "notes.md", "", 10, strings.NewReader("# hi"))
	require.NoError(t, err)

	assert.Equal(t, documents.StatusPending, doc.Status)
	require.NotNil(t, doc.TaskID)
	assert.Equal(t, "task-1", *doc.TaskID)
	assert.Equal(t, 1, dispatcher.jobs)
}

func TestService_Upload_EnqueueFailureMarksFailed(t *testing.T) {
	st := newFakeStore()
	dispatcher := &fakeDispatcher{err: errors.New("broker down")}
	svc := newService(t, st, &fakeParser{}, &fakeEmbedder{}, &fakeIndex{}, dispatcher, true)

	_, err := svc.Upload(context.Background(), uuid.New(), "notes.md", "", 10, strings.NewReader("# hi"))
	require.Error(t, err)

	for _, doc := range st.docs {
		assert.Equal(t, documents.StatusFailed, doc.Status)
	}
}

func TestService_Delete(t *testing.T) {
	st := newFakeStore()
	index := &fakeIndex{}
	parser := &fakeParser{text: "deletable content in one chunk"}
	svc := newService(t, st, parser, &fakeEmbedder{}, index, nil, false)

	userID := uuid.New()
	doc, err := svc.Upload(context.Background(), userID, "gone.txt", "", 30, strings.NewReader(parser.text))
	require.NoError(t, err)

	err = svc.Delete(context.Background(), doc.ID, userID)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), doc.ID, userID)
	assert.ErrorIs(t, err, documents.ErrNotFound)

	require.Len(t, index.deleteFilters, 1)
	assert.Equal(t, doc.ID.String(), index.deleteFilters[0]["document_id"])

	_, statErr := os.Stat(doc.FilePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestService_Delete_WrongUser(t *testing.T) {
	st := newFakeStore()
	parser := &fakeParser{text: "content"}
	svc := newService(t, st, parser, &fakeEmbedder{}, &fakeIndex{}, nil, false)

	owner := uuid.New()
	doc, err := svc.Upload(context.Background(), owner, "mine.txt", "", 7, strings.NewReader("content"))
	require.NoError(t, err)

	err = svc.Delete(context.Background(), doc.ID, uuid.New())
	assert.ErrorIs(t, err, documents.ErrNotFound)
}

func TestService_Upload_SavesUnderUserDir(t *testing.T) {
	st := newFakeStore()
	parser := &fakeParser{text: "file content"}
	svc := newService(t, st, parser, &fakeEmbedder{}, &fakeIndex{}, nil, false)

	userID := uuid.New()
	doc, err := svc.Upload(context.Background(), userID, "a.txt", "", 12, strings.NewReader("file content"))
	require.NoError(t, err)

	assert.Equal(t, userID.String(), filepath.Base(filepath.Dir(doc.FilePath)))
	assert.True(t, strings.HasSuffix(doc.FilePath, ".txt"))
}

func TestService_Upload_RecordsMimeType(t *testing.T) {
	st := newFakeStore()
	parser := &fakeParser{text: "typed content"}
	svc := newService(t, st, parser, &fakeEmbedder{}, &fakeIndex{}, nil, false)

	doc, err := svc.Upload(context.Background(), uuid.New(), "typed.txt", "text/plain", 13, strings.NewReader("typed content"))
	require.NoError(t, err)

	require.NotNil(t, doc.MimeType)
	assert.Equal(t, "text/plain", *doc.MimeType)
}

func TestService_Upload_FilePermissions(t *testing.T) {
	st := newFakeStore()
	parser := &fakeParser{text: "private content"}
	svc := newService(t, st, parser, &fakeEmbedder{}, &fakeIndex{}, nil, false)

	doc, err := svc.Upload(context.Background(), uuid.New(), "private.txt", "", 15, strings.NewReader("private content"))
	require.NoError(t, err)

	info, err := os.Stat(doc.FilePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(doc.FilePath))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), dirInfo.Mode().Perm())
}

func TestProcessor_ReplayLeavesTerminalState(t *testing.T) {
	st := newFakeStore()
	index := &fakeIndex{}
	parser := &fakeParser{text: "replayed content"}
	processor := documents.NewProcessor(st, parser, &fakeEmbedder{}, index,
		documents.ProcessorConfig{ChunkSize: 50, ChunkOverlap: 10}, zap.NewNop())

	userID := uuid.New()
	docID := uuid.New()
	_, err := st.CreateDocument(context.Background(), docID, userID, "dup.txt", "/tmp/dup.txt", 16, "")
	require.NoError(t, err)

	require.NoError(t, processor.Process(context.Background(), docID, userID, "/tmp/dup.txt", "dup.txt"))
	require.Equal(t, documents.StatusCompleted, st.docs[docID].Status)
	indexed := len(index.upserted)

	// A redelivered queue job must not move a completed document back to
	// processing or write its chunks twice.
	err = processor.Process(context.Background(), docID, userID, "/tmp/dup.txt", "dup.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
	assert.Equal(t, documents.StatusCompleted, st.docs[docID].Status)
	assert.Len(t, index.upserted, indexed)
}

func TestTransitionsTo(t *testing.T) {
	assert.ElementsMatch(t, []string{documents.StatusPending}, documents.TransitionsTo(documents.StatusProcessing))
	assert.ElementsMatch(t, []string{documents.StatusProcessing}, documents.TransitionsTo(documents.StatusCompleted))
	assert.ElementsMatch(t, []string{documents.StatusPending, documents.StatusProcessing}, documents.TransitionsTo(documents.StatusFailed))
	assert.Empty(t, documents.TransitionsTo(documents.StatusPending))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{documents.StatusPending, documents.StatusProcessing, true},
		{documents.StatusPending, documents.StatusFailed, true},
		{documents.StatusProcessing, documents.StatusCompleted, true},
		{documents.StatusProcessing, documents.StatusFailed, true},
		{documents.StatusCompleted, documents.StatusProcessing, false},
		{documents.StatusFailed, documents.StatusProcessing, false},
		{documents.StatusPending, documents.StatusCompleted, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, documents.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}
