package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourview/yourview/internal/apperr"
	"github.com/yourview/yourview/internal/checksum"
	"github.com/yourview/yourview/internal/ledger"
	"github.com/yourview/yourview/internal/models"
	"github.com/yourview/yourview/internal/storage"
	"github.com/yourview/yourview/internal/testutil"
)

var (
	jpegData = []byte{0xFF, 0xD8, 0xFF, 0xE0, 'j', 'f', 'i', 'f'}
	pngData  = []byte("\x89PNG\r\n\x1a\nimage")
)

type fakeModerator struct {
	err   error
	calls int
}

func (f *fakeModerator) Check(_ context.Context, _, _ string, _ []byte) error {
	f.calls++
	return f.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) PublishUploadEvent(kind, key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind+":"+key)
}

func newService(t *testing.T, opts ...Option) (*Service, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(env.Store, env.Ledger, append([]Option{WithLogger(quiet)}, opts...)...)
	svc.newID = func() string { return "0123456789abcdef" }
	return svc, env
}

func TestUpload_StoresAndRecords(t *testing.T) {
	n := &recordingNotifier{}
	mod := &fakeModerator{}
	svc, env := newService(t, WithModerator(mod), WithNotifier(n))

	rec, err := svc.Upload(context.Background(), `C:\photos\window.jpg`, "", jpegData)
	require.NoError(t, err)
	assert.Equal(t, "YourWindow/0123456789abcdef.jpg", rec.Key)
	assert.Equal(t, "image/jpeg", rec.ContentType)
	assert.Equal(t, int64(len(jpegData)), rec.Size)
	assert.Equal(t, checksum.Sum(jpegData), rec.ETag)
	assert.Equal(t, "/media/YourWindow/0123456789abcdef.jpg", rec.URL)
	assert.Equal(t, ModerationPassed, rec.Moderation)
	assert.Equal(t, 1, mod.calls)

	stored, err := env.Store.Read(rec.Key)
	require.NoError(t, err)
	assert.Equal(t, jpegData, stored)

	row, err := env.Ledger.Get(context.Background(), rec.Key)
	require.NoError(t, err)
	assert.Equal(t, "window.jpg", row.OriginalFilename)

	assert.Equal(t, []string{"created:" + rec.Key}, n.events)
}

// orderCheckingLedger records whether the object already existed when its
// ledger row was written.
type orderCheckingLedger struct {
	ledger.Store
	store          storage.Provider
	existedAtWrite bool
}

func (l *orderCheckingLedger) Record(ctx context.Context, u models.Upload) error {
	if _, err := l.store.Read(u.Key); err == nil {
		l.existedAtWrite = true
	}
	return l.Store.Record(ctx, u)
}

type failingStore struct {
	storage.Provider
}

func (failingStore) Write(string, []byte) error { return errors.New("disk full") }

func TestUpload_RecordsBeforeWriting(t *testing.T) {
	env := testutil.NewEnv(t)
	l := &orderCheckingLedger{Store: env.Ledger, store: env.Store}
	svc := NewService(env.Store, l, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	rec, err := svc.Upload(context.Background(), "view.png", "", pngData)
	require.NoError(t, err)
	assert.False(t, l.existedAtWrite, "ledger row must exist before the file")

	_, err = env.Store.Read(rec.Key)
	assert.NoError(t, err)
}

func TestUpload_StoreFailureRollsBackLedger(t *testing.T) {
	env := testutil.NewEnv(t)
	n := &recordingNotifier{}
	svc := NewService(failingStore{env.Store}, env.Ledger,
		WithNotifier(n), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	svc.newID = func() string { return "0123456789abcdef" }

	_, err := svc.Upload(context.Background(), "view.png", "", pngData)
	require.Error(t, err)

	_, err = env.Ledger.Get(context.Background(), "YourWindow/0123456789abcdef.png")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, n.events)
}

func TestUpload_PNGWithoutModeration(t *testing.T) {
	svc, _ := newService(t)
	rec, err := svc.Upload(context.Background(), "view.png", "/uploads/2024", pngData)
	require.NoError(t, err)
	assert.Equal(t, "uploads/2024/0123456789abcdef.png", rec.Key)
	assert.Equal(t, ModerationSkipped, rec.Moderation)
}

func TestUpload_ConfiguredDefaultFolder(t *testing.T) {
	svc, _ := newService(t, WithDefaultFolder("gallery"))

	rec, err := svc.Upload(context.Background(), "view.png", "  ", pngData)
	require.NoError(t, err)
	assert.Equal(t, "gallery/0123456789abcdef.png", rec.Key)

	rec, err = svc.Upload(context.Background(), "view.png", "/", pngData)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef.png", rec.Key)
}

func TestUpload_Rejections(t *testing.T) {
	svc, env := newService(t, WithMaxSize(16))

	_, err := svc.Upload(context.Background(), "a.jpg", "", nil)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, err = svc.Upload(context.Background(), "a.jpg", "", append(jpegData, make([]byte, 16)...))
	assert.True(t, errors.Is(err, apperr.ErrTooLarge))

	_, err = svc.Upload(context.Background(), "a.gif", "", []byte("GIF89a...."))
	assert.True(t, errors.Is(err, apperr.ErrUnsupportedMedia))

	_, err = svc.Upload(context.Background(), "a.jpg", "../escape", jpegData)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	objects, _ := env.Store.List("")
	assert.Empty(t, objects)
}

func TestUpload_ModerationRejectsBeforeStoring(t *testing.T) {
	mod := &fakeModerator{err: apperr.ErrRejected}
	svc, env := newService(t, WithModerator(mod))

	_, err := svc.Upload(context.Background(), "a.png", "", pngData)
	assert.True(t, errors.Is(err, apperr.ErrRejected))

	objects, _ := env.Store.List("")
	assert.Empty(t, objects)
	_, total, _ := env.Ledger.List(context.Background(), 10, 0)
	assert.Zero(t, total)
}

func TestUpload_DefaultIDIsUUIDHex(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := NewService(env.Store, env.Ledger)
	id := svc.newID()
	assert.Len(t, id, 32)
	assert.False(t, strings.Contains(id, "-"))
}

func TestList(t *testing.T) {
	svc, _ := newService(t)
	svc.newID = sequence("a", "b")
	_, _ = svc.Upload(context.Background(), "", "", pngData)
	_, _ = svc.Upload(context.Background(), "", "", jpegData)

	items, total, err := svc.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)
}

func sequence(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func TestCleanFolder(t *testing.T) {
	tests := []struct {
		in, want string
		err      bool
	}{
		{"", "YourWindow/", false},
		{"  ", "YourWindow/", false},
		{"uploads", "uploads/", false},
		{"/uploads/", "uploads/", false},
		{"a/b", "a/b/", false},
		{"/", "", false},
		{"../x", "", true},
		{"a/./b", "", true},
		{`a\b`, "", true},
	}
	for _, tt := range tests {
		got, err := CleanFolder(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("CleanFolder(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CleanFolder(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
