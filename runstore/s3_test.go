package runstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory S3Client. When pageSize is set, listings are split
// into pages to exercise continuation-token handling.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
	putErr   error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(params.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	start := 0
	if token := aws.ToString(params.ContinuationToken); token != "" {
		start, _ = strconv.Atoi(token)
	}
	end := len(keys)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	out := &s3.ListObjectsV2Output{}
	for _, key := range keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func TestS3Store_SaveAndLoad(t *testing.T) {
	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "experiments")
	ctx := context.Background()
	snap := testSnapshot(t, "deepar")

	err := store.Save(ctx, snap)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"modelconf/snapshot/" + snap.ID + ".json",
		"modelconf/variant/deepar/" + snap.ID,
	}, fake.keys())

	loaded, err := store.Load(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, loaded.ID)
	assert.Equal(t, "deepar", loaded.Variant)
	assert.NoError(t, loaded.Verify())
}

func TestS3Store_LoadNotFound(t *testing.T) {
	store := NewS3StoreWithClient(newFakeS3(), "experiments")

	_, err := store.Load(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Store_LoadInvalidID(t *testing.T) {
	store := NewS3StoreWithClient(newFakeS3(), "experiments")

	_, err := store.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestS3Store_SaveError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	store := NewS3StoreWithClient(fake, "experiments")

	err := store.Save(context.Background(), testSnapshot(t, "deepar"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 put failed")
}

func TestS3Store_Delete(t *testing.T) {
	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "experiments")
	ctx := context.Background()
	snap := testSnapshot(t, "deepar")
	require.NoError(t, store.Save(ctx, snap))

	err := store.Delete(ctx, snap.ID)
	require.NoError(t, err)
	assert.Empty(t, fake.keys())

	_, err = store.Load(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Store_DeleteNotFound(t *testing.T) {
	store := NewS3StoreWithClient(newFakeS3(), "experiments")

	err := store.Delete(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Store_List(t *testing.T) {
	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "experiments")
	ctx := context.Background()

	first := testSnapshot(t, "deepar")
	second := testSnapshot(t, "deepar")
	third := testSnapshot(t, "timegrad")
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))
	require.NoError(t, store.Save(ctx, third))

	ids, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID, third.ID}, ids)
	assert.True(t, sort.StringsAreSorted(ids))

	ids, err = store.List(ctx, ListOptions{Variant: "deepar"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	ids, err = store.List(ctx, ListOptions{Variant: "tempflow"})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestS3Store_ListPaginatesThroughPages(t *testing.T) {
	fake := newFakeS3()
	fake.pageSize = 2
	store := NewS3StoreWithClient(fake, "experiments")
	ctx := context.Background()

	var want []string
	for range 5 {
		snap := testSnapshot(t, "deepar")
		require.NoError(t, store.Save(ctx, snap))
		want = append(want, snap.ID)
	}

	ids, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, want, ids)
}

func TestS3Store_CustomPrefix(t *testing.T) {
	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "experiments", WithS3Prefix("runs"))
	ctx := context.Background()
	snap := testSnapshot(t, "deepar")
	require.NoError(t, store.Save(ctx, snap))

	assert.Equal(t, []string{
		"runs/snapshot/" + snap.ID + ".json",
		"runs/variant/deepar/" + snap.ID,
	}, fake.keys())
}

func TestS3Store_Backend(t *testing.T) {
	assert.Equal(t, "s3", NewS3StoreWithClient(newFakeS3(), "experiments").Backend())
}
