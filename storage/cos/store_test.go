//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package cos

import (
	"bytes"
	"context"
	"hash/crc64"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cos "github.com/tencentyun/cos-go-sdk-v5"

	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/state"
	"trpc.group/trpc-go/trpc-agent-graph/storage"
	"trpc.group/trpc-go/trpc-agent-graph/storage/storagetest"
)

// mockTransport serves the COS object API from memory.
type mockTransport struct {
	mu        sync.Mutex
	objects   map[string][]byte
	forbidden string
}

func newMockTransport() *mockTransport {
	return &mockTransport{objects: make(map[string][]byte)}
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	name := strings.TrimPrefix(req.URL.Path, "/")
	if m.forbidden != "" && strings.HasPrefix(name, m.forbidden) {
		return response(http.StatusForbidden, nil, `<Error><Code>AccessDenied</Code></Error>`), nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch req.Method {
	case http.MethodPut:
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		m.objects[name] = data
		header := make(http.Header)
		header.Set("x-cos-hash-crc64ecma", strconv.FormatUint(crc64.Checksum(data, crc64.MakeTable(crc64.ECMA)), 10))
		header.Set("ETag", `"etag"`)
		return response(http.StatusOK, header, ""), nil
	case http.MethodGet, http.MethodHead:
		data, ok := m.objects[name]
		if !ok {
			return response(http.StatusNotFound, nil, `<Error><Code>NoSuchKey</Code></Error>`), nil
		}
		header := make(http.Header)
		header.Set("Content-Type", contentType)
		if req.Method == http.MethodHead {
			return response(http.StatusOK, header, ""), nil
		}
		return &http.Response{StatusCode: http.StatusOK, Header: header, Body: io.NopCloser(bytes.NewReader(data))}, nil
	case http.MethodDelete:
		delete(m.objects, name)
		return response(http.StatusNoContent, nil, ""), nil
	}
	return response(http.StatusMethodNotAllowed, nil, ""), nil
}

func (m *mockTransport) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for name := range m.objects {
		out = append(out, name)
	}
	return out
}

func response(status int, header http.Header, body string) *http.Response {
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{StatusCode: status, Header: header, Body: io.NopCloser(strings.NewReader(body))}
}

func newMockStore(t *testing.T, opts ...Option) (*Store, *mockTransport) {
	t.Helper()
	transport := newMockTransport()
	u, err := url.Parse("https://test-bucket-1250000000.cos.ap-guangzhou.myqcloud.com")
	require.NoError(t, err)
	c := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{Transport: transport})
	s, err := NewStore("", append([]Option{WithClient(c)}, opts...)...)
	require.NoError(t, err)
	return s, transport
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, _ := newMockStore(t)
		return s
	})
}

func TestObjectNames(t *testing.T) {
	ctx := context.Background()
	s, transport := newMockStore(t, WithPrefix("/custom/"))
	st := state.New("acme", "t1")
	st.AppendMessages(model.NewUserMessage("hi"))
	require.NoError(t, storage.NewStateRepository(s).Save(ctx, st))
	assert.Equal(t, []string{"custom/state/acme/t1"}, transport.names())

	bare, transport := newMockStore(t, WithPrefix(""))
	require.NoError(t, bare.Put(ctx, storage.ConfigKey("acme"), []byte(`{}`)))
	assert.Equal(t, []string{"config/acme"}, transport.names())
}

func TestBackendErrors(t *testing.T) {
	ctx := context.Background()
	s, transport := newMockStore(t)
	transport.forbidden = "agentgraph/state/"
	key := storage.StateKey("acme", "t1")

	_, err := s.Exists(ctx, key)
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
	_, err = s.Get(ctx, key)
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
	assert.Error(t, s.Put(ctx, key, []byte("x")))
	assert.Error(t, s.Delete(ctx, key))
	assert.ErrorIs(t, s.Put(ctx, key, nil), storage.ErrNilValue)
	assert.NoError(t, s.Close())
}

func TestNewStoreValidatesURL(t *testing.T) {
	_, err := NewStore("not a url")
	assert.Error(t, err)

	s, err := NewStore("https://bucket-1250000000.cos.ap-guangzhou.myqcloud.com",
		WithSecretID("id"), WithSecretKey("key"), WithTimeout(0))
	require.NoError(t, err)
	assert.NotNil(t, s)

	s, err = NewStore("https://bucket-1250000000.cos.ap-guangzhou.myqcloud.com",
		WithHTTPClient(&http.Client{}))
	require.NoError(t, err)
	assert.NotNil(t, s)
}
