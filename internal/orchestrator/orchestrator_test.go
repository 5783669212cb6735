package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/atref/atref/internal/adapters"
	"github.com/atref/atref/internal/cache"
	"github.com/atref/atref/internal/canonical"
	"github.com/atref/atref/internal/httpclient"
	"github.com/atref/atref/internal/httpclient/mocks"
	"github.com/atref/atref/internal/identity"
	"github.com/atref/atref/internal/resolver"
)

const (
	testService = "https://resolver.example"
	aliceHandle = "alice.example"
	aliceDID    = "did:plc:ewvi7nxzyoun6zhxrhs64oiz"
)

func lookupURL(handle string) string {
	return testService + "/xrpc/com.atproto.identity.resolveHandle?handle=" + handle
}

func didResponse(did string) *httpclient.Response {
	return &httpclient.Response{StatusCode: http.StatusOK, Body: []byte(`{"did":"` + did + `"}`)}
}

type fixture struct {
	orch   *Orchestrator
	client *mocks.MockClient
	cache  *cache.Cache
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	client := mocks.NewMockClient(ctrl)
	res := resolver.New(client,
		resolver.WithServiceURL(testService),
		resolver.WithBaseDelay(time.Millisecond),
	)
	c := cache.New()
	return &fixture{
		orch:   New(cfg, adapters.NewDefaultRegistry(), c, res),
		client: client,
		cache:  c,
	}
}

func TestResolveInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		lookup string
		want   canonical.Record
	}{
		{
			name:   "fragment with feed shortcut",
			input:  "alice.example/feed/cozy",
			lookup: aliceHandle,
			want: canonical.Record{
				Handle:      aliceHandle,
				DID:         aliceDID,
				Collection:  canonical.CollectionFeed,
				RecordKey:   "cozy",
				URI:         "at://" + aliceDID + "/" + canonical.CollectionFeed + "/cozy",
				DisplayPath: "/profile/alice.example/feed/cozy",
			},
		},
		{
			name:   "bluesky post link",
			input:  "https://bsky.app/profile/alice.example/post/3k2yihcrp6f2c",
			lookup: aliceHandle,
			want: canonical.Record{
				Handle:      aliceHandle,
				DID:         aliceDID,
				Collection:  canonical.CollectionPost,
				RecordKey:   "3k2yihcrp6f2c",
				URI:         "at://" + aliceDID + "/" + canonical.CollectionPost + "/3k2yihcrp6f2c",
				DisplayPath: "/profile/alice.example/post/3k2yihcrp6f2c",
				SourceURL:   "https://bsky.app/profile/alice.example/post/3k2yihcrp6f2c",
			},
		},
		{
			name:   "link without scheme",
			input:  "bsky.app/profile/alice.example",
			lookup: aliceHandle,
			want: canonical.Record{
				Handle:      aliceHandle,
				DID:         aliceDID,
				URI:         "at://" + aliceDID,
				DisplayPath: "/profile/alice.example",
				SourceURL:   "bsky.app/profile/alice.example",
			},
		},
		{
			name:   "handle named like a served host",
			input:  "bsky.app",
			lookup: "bsky.app",
			want: canonical.Record{
				Handle:      "bsky.app",
				DID:         aliceDID,
				URI:         "at://" + aliceDID,
				DisplayPath: "/profile/bsky.app",
			},
		},
		{
			name:   "handle named like a mirror host",
			input:  "deer.social",
			lookup: "deer.social",
			want: canonical.Record{
				Handle:      "deer.social",
				DID:         aliceDID,
				URI:         "at://" + aliceDID,
				DisplayPath: "/profile/deer.social",
			},
		},
		{
			name:   "fragment whose handle is a served host",
			input:  "bsky.app/post/3k2yihcrp6f2c",
			lookup: "bsky.app",
			want: canonical.Record{
				Handle:      "bsky.app",
				DID:         aliceDID,
				Collection:  canonical.CollectionPost,
				RecordKey:   "3k2yihcrp6f2c",
				URI:         "at://" + aliceDID + "/" + canonical.CollectionPost + "/3k2yihcrp6f2c",
				DisplayPath: "/profile/bsky.app/post/3k2yihcrp6f2c",
			},
		},
		{
			name:   "unknown host with profile path",
			input:  "https://social.example/profile/alice.example",
			lookup: aliceHandle,
			want: canonical.Record{
				Handle:      aliceHandle,
				DID:         aliceDID,
				URI:         "at://" + aliceDID,
				DisplayPath: "/profile/alice.example",
				SourceURL:   "https://social.example/profile/alice.example",
			},
		},
		{
			name:  "plc DID has no reverse lookup",
			input: "at://" + aliceDID + "/app.bsky.feed.post/3k2yihcrp6f2c",
			want: canonical.Record{
				DID:         aliceDID,
				Collection:  canonical.CollectionPost,
				RecordKey:   "3k2yihcrp6f2c",
				URI:         "at://" + aliceDID + "/app.bsky.feed.post/3k2yihcrp6f2c",
				DisplayPath: "/profile/" + aliceDID + "/post/3k2yihcrp6f2c",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, DefaultConfig())
			if tt.lookup != "" {
				f.client.EXPECT().Get(gomock.Any(), lookupURL(tt.lookup)).Return(didResponse(aliceDID), nil).Times(1)
			}

			rec, err := f.orch.ResolveInput(context.Background(), tt.input)

			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, tt.want, *rec)
		})
	}
}

func TestResolveInput_UsesCache(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	f.client.EXPECT().Get(gomock.Any(), lookupURL(aliceHandle)).Return(didResponse(aliceDID), nil).Times(1)

	first, err := f.orch.ResolveInput(ctx, aliceHandle)
	require.NoError(t, err)
	second, err := f.orch.ResolveInput(ctx, "at://"+aliceHandle)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// the reverse direction is served by the same entry
	rec, err := f.orch.ResolveInput(ctx, aliceDID)
	require.NoError(t, err)
	assert.Equal(t, aliceHandle, rec.Handle)
	assert.Equal(t, "/profile/alice.example", rec.DisplayPath)

	assert.Equal(t, cache.Stats{Hits: 2, Misses: 1, Size: 1}, f.orch.CacheStats())

	f.orch.ClearCache(ctx)
	assert.Equal(t, cache.Stats{}, f.orch.CacheStats())
}

func TestResolveInput_WebDIDReverseLookup(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultConfig())

	f.client.EXPECT().Get(gomock.Any(), "https://alice.example/.well-known/did.json").Return(&httpclient.Response{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"id":"did:web:alice.example","alsoKnownAs":["at://alice.example"]}`),
	}, nil).Times(1)

	rec, err := f.orch.ResolveInput(context.Background(), "did:web:alice.example")

	require.NoError(t, err)
	assert.Equal(t, aliceHandle, rec.Handle)
	assert.Equal(t, "at://did:web:alice.example", rec.URI)

	did, ok := f.cache.GetByHandle(context.Background(), aliceHandle)
	require.True(t, ok)
	assert.Equal(t, "did:web:alice.example", did)
}

func TestResolveInput_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		check func(t *testing.T, err error)
	}{
		{
			name:  "empty input",
			input: "   ",
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, identity.IsValidation(err))
			},
		},
		{
			name:  "link without identifier",
			input: "https://bsky.app/settings",
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.ErrorIs(t, err, identity.ErrNoDestination)
				assert.True(t, errdefs.IsNotFound(err))
			},
		},
		{
			name:  "unknown link",
			input: "https://example.com/about",
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.ErrorIs(t, err, identity.ErrNoDestination)
			},
		},
		{
			name:  "malformed handle",
			input: "at://not_a_handle",
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, identity.IsValidation(err))
			},
		},
		{
			name:  "post without record key",
			input: "alice.example/post",
			check: func(t *testing.T, err error) {
				t.Helper()
				var verr *identity.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Contains(t, verr.Reason, "requires a record key")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, DefaultConfig())

			rec, err := f.orch.ResolveInput(context.Background(), tt.input)

			require.Error(t, err)
			assert.Nil(t, rec)
			tt.check(t, err)
		})
	}
}

func TestResolveInput_DegradePolicy(t *testing.T) {
	t.Parallel()

	notFound := &httpclient.Response{StatusCode: http.StatusNotFound, Body: []byte(`{}`)}

	t.Run("degrade returns partial record", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, DefaultConfig())
		f.client.EXPECT().Get(gomock.Any(), lookupURL(aliceHandle)).Return(notFound, nil).Times(1)

		rec, err := f.orch.ResolveInput(context.Background(), aliceHandle)

		require.NoError(t, err)
		assert.Equal(t, aliceHandle, rec.Handle)
		assert.Empty(t, rec.DID)
		assert.Equal(t, "at://alice.example", rec.URI)
		assert.Zero(t, f.orch.CacheStats().Size)
	})

	t.Run("strict surfaces the error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, Config{Degrade: false})
		f.client.EXPECT().Get(gomock.Any(), lookupURL(aliceHandle)).Return(notFound, nil).Times(1)

		rec, err := f.orch.ResolveInput(context.Background(), aliceHandle)

		var nf *identity.HandleNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Nil(t, rec)
	})

	t.Run("canceled context is never degraded", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, DefaultConfig())
		ctx, cancel := context.WithCancel(context.Background())
		f.client.EXPECT().Get(gomock.Any(), lookupURL(aliceHandle)).DoAndReturn(
			func(context.Context, string) (*httpclient.Response, error) {
				cancel()
				return nil, context.Canceled
			})

		_, err := f.orch.ResolveInput(ctx, aliceHandle)

		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestResolveAll(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{Degrade: true, Concurrency: 2})

	f.client.EXPECT().Get(gomock.Any(), lookupURL(aliceHandle)).Return(didResponse(aliceDID), nil).MinTimes(1)

	inputs := []string{
		"alice.example/post/3k2yihcrp6f2c",
		"https://example.com/nothing",
		"at://" + aliceHandle,
	}
	results, err := f.orch.ResolveAll(context.Background(), inputs)

	require.NoError(t, err)
	require.Len(t, results, len(inputs))
	for i, r := range results {
		assert.Equal(t, inputs[i], r.Input)
	}
	require.NoError(t, results[0].Err)
	assert.Equal(t, aliceDID, results[0].Record.DID)
	assert.ErrorIs(t, results[1].Err, identity.ErrNoDestination)
	assert.Nil(t, results[1].Record)
	require.NoError(t, results[2].Err)
	assert.Equal(t, "at://"+aliceDID, results[2].Record.URI)
}

func TestResolveAll_CanceledContext(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orch.ResolveAll(ctx, []string{aliceHandle})
	require.ErrorIs(t, err, context.Canceled)
}
