package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/finalProject2025/TP-sub000/internal/services/collab/storage"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenIsReentrant(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "collab.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if err := second.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := second.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
}

func TestNilStoreIsNotConfigured(t *testing.T) {
	t.Parallel()

	var store *Store
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
	if _, err := store.GetPost(context.Background(), "post-1"); err == nil {
		t.Fatal("expected not configured error")
	}
}

func TestCanceledContextIsRejected(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.GetPost(ctx, "post-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestPutAndGetUser(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	putUser(t, store, "user-1", "Ana")
	if err := store.PutUser(ctx, storage.UserRecord{
		ID: "user-1", DisplayName: "Ana B.", CreatedAt: testNow.Add(time.Hour), UpdatedAt: testNow.Add(time.Hour),
	}); err != nil {
		t.Fatalf("update user: %v", err)
	}

	got, err := store.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.DisplayName != "Ana B." {
		t.Fatalf("display name = %q, want updated", got.DisplayName)
	}
	if !got.CreatedAt.Equal(testNow) {
		t.Fatalf("created_at = %v, want first write %v", got.CreatedAt, testNow)
	}
	if _, err := store.GetUser(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing user err = %v, want ErrNotFound", err)
	}
}

func TestCreateAndGetPost(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	post := newPost("post-1", "owner-1", testNow)
	post.PostalCode = "0011:aabb"
	post.Description = "Needs two people"
	if err := store.CreatePost(context.Background(), post); err != nil {
		t.Fatalf("create post: %v", err)
	}

	got, err := store.GetPost(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Title != post.Title || got.PostalCode != "0011:aabb" || got.Kind != storage.PostKindRequest {
		t.Fatalf("unexpected post: %+v", got)
	}
	if !got.AutoCloseAt.Equal(testNow.Add(72 * time.Hour)) {
		t.Fatalf("auto_close_at = %v", got.AutoCloseAt)
	}
	if err := store.CreatePost(context.Background(), post); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("duplicate create err = %v, want ErrConflict", err)
	}
	if _, err := store.GetPost(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing post err = %v, want ErrNotFound", err)
	}
}

func TestListPostsPaginatesNewestFirst(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		createPost(t, store, newPost(fmt.Sprintf("post-%d", i), "owner-1", testNow.Add(time.Duration(i)*time.Minute)))
	}
	closed := newPost("post-closed", "owner-1", testNow.Add(time.Hour))
	closed.Status = storage.PostStatusClosed
	createPost(t, store, closed)

	query := storage.PostQuery{Statuses: []storage.PostStatus{storage.PostStatusActive}, PageSize: 2}
	var ids []string
	for page := 0; page < 5; page++ {
		result, err := store.ListPosts(ctx, query)
		if err != nil {
			t.Fatalf("list posts: %v", err)
		}
		for _, post := range result.Posts {
			ids = append(ids, post.ID)
		}
		if result.NextPageToken == "" {
			break
		}
		query.PageToken = result.NextPageToken
	}
	want := []string{"post-4", "post-3", "post-2", "post-1", "post-0"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
}

func TestListPostsRejectsUnknownPageToken(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	createPost(t, store, newPost("post-1", "owner-1", testNow))

	_, err := store.ListPosts(context.Background(), storage.PostQuery{PageSize: 2, PageToken: "post-gone"})
	if !errors.Is(err, storage.ErrInvalidPageToken) {
		t.Fatalf("err = %v, want ErrInvalidPageToken", err)
	}
}

func TestListPostsAppliesConditionAndOwner(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	garden := newPost("post-garden", "owner-1", testNow)
	garden.Category = "garden"
	createPost(t, store, garden)
	createPost(t, store, newPost("post-moving", "owner-1", testNow.Add(time.Minute)))
	createPost(t, store, newPost("post-other", "owner-2", testNow.Add(2*time.Minute)))

	result, err := store.ListPosts(ctx, storage.PostQuery{
		Condition: "p.category = ?",
		Params:    []any{"garden"},
		PageSize:  10,
	})
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(result.Posts) != 1 || result.Posts[0].ID != "post-garden" {
		t.Fatalf("posts = %+v, want garden only", result.Posts)
	}

	result, err = store.ListPosts(ctx, storage.PostQuery{OwnerUserID: "owner-2", PageSize: 10})
	if err != nil {
		t.Fatalf("list posts by owner: %v", err)
	}
	if len(result.Posts) != 1 || result.Posts[0].ID != "post-other" {
		t.Fatalf("posts = %+v, want owner-2 post", result.Posts)
	}
}

func TestTransitionPostStatus(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	createPost(t, store, newPost("post-1", "owner-1", testNow))

	active := []storage.PostStatus{storage.PostStatusActive}
	if err := store.TransitionPostStatus(ctx, "post-1", active, storage.PostStatusClosed, testNow); err != nil {
		t.Fatalf("close post: %v", err)
	}
	err := store.TransitionPostStatus(ctx, "post-1", active, storage.PostStatusClosed, testNow)
	if !errors.Is(err, storage.ErrPreconditionFailed) {
		t.Fatalf("second close err = %v, want ErrPreconditionFailed", err)
	}
	err = store.TransitionPostStatus(ctx, "missing", active, storage.PostStatusClosed, testNow)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing post err = %v, want ErrNotFound", err)
	}
}

func TestExpireActivePostsIsIdempotent(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	createPost(t, store, newPost("post-due", "owner-1", testNow))
	createPost(t, store, newPost("post-fresh", "owner-1", testNow.Add(48*time.Hour)))
	inProgress := newPost("post-busy", "owner-1", testNow)
	inProgress.Status = storage.PostStatusInProgress
	createPost(t, store, inProgress)

	sweepAt := testNow.Add(96 * time.Hour)
	changed, err := store.ExpireActivePosts(ctx, sweepAt)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if changed != 1 {
		t.Fatalf("changed = %d, want 1", changed)
	}
	changed, err = store.ExpireActivePosts(ctx, sweepAt)
	if err != nil {
		t.Fatalf("expire again: %v", err)
	}
	if changed != 0 {
		t.Fatalf("second sweep changed = %d, want 0", changed)
	}

	assertPostStatus(t, store, "post-due", storage.PostStatusAutoClosed)
	assertPostStatus(t, store, "post-fresh", storage.PostStatusActive)
	assertPostStatus(t, store, "post-busy", storage.PostStatusInProgress)
}

func TestConcurrentSweepsChangeEachPostOnce(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	for i := 0; i < 10; i++ {
		createPost(t, store, newPost(fmt.Sprintf("post-%d", i), "owner-1", testNow))
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int64
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := store.ExpireActivePosts(context.Background(), testNow.Add(96*time.Hour))
			if err != nil {
				t.Errorf("expire: %v", err)
				return
			}
			mu.Lock()
			total += changed
			mu.Unlock()
		}()
	}
	wg.Wait()
	if total != 10 {
		t.Fatalf("total changed = %d, want 10", total)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collab.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func newPost(id string, owner string, createdAt time.Time) storage.PostRecord {
	return storage.PostRecord{
		ID:          id,
		OwnerUserID: owner,
		Kind:        storage.PostKindRequest,
		Category:    "moving",
		Title:       "Help carrying a sofa",
		Status:      storage.PostStatusActive,
		AutoCloseAt: createdAt.Add(72 * time.Hour),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func createPost(t *testing.T, store *Store, post storage.PostRecord) {
	t.Helper()
	if err := store.CreatePost(context.Background(), post); err != nil {
		t.Fatalf("create post %s: %v", post.ID, err)
	}
}

func putUser(t *testing.T, store *Store, id string, name string) {
	t.Helper()
	if err := store.PutUser(context.Background(), storage.UserRecord{
		ID: id, DisplayName: name, CreatedAt: testNow, UpdatedAt: testNow,
	}); err != nil {
		t.Fatalf("put user %s: %v", id, err)
	}
}

func assertPostStatus(t *testing.T, store *Store, postID string, want storage.PostStatus) {
	t.Helper()
	post, err := store.GetPost(context.Background(), postID)
	if err != nil {
		t.Fatalf("get post %s: %v", postID, err)
	}
	if post.Status != want {
		t.Fatalf("post %s status = %s, want %s", postID, post.Status, want)
	}
}
