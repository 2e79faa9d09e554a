package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacesweep/internal/domain"
)

type recordedCall struct {
	method string
	path   string
	query  string
	auth   string
	body   []byte
}

type fakeServer struct {
	mu      sync.Mutex
	calls   []recordedCall
	replies map[string]string
	status  int
}

func newFakeServer(t *testing.T, replies map[string]string) (*fakeServer, *HTTPClient) {
	t.Helper()
	server := &fakeServer{replies: replies, status: http.StatusOK}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		server.mu.Lock()
		server.calls = append(server.calls, recordedCall{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
			body:   body,
		})
		status := server.status
		reply, ok := server.replies[r.Method+" "+r.URL.Path]
		server.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(ts.Close)

	client, err := NewHTTPClient(ts.URL+"/", WithToken("secret"), WithRateLimit(1000, 10))
	require.NoError(t, err)
	return server, client
}

func (server *fakeServer) lastCall() recordedCall {
	server.mu.Lock()
	defer server.mu.Unlock()
	return server.calls[len(server.calls)-1]
}

func TestNewHTTPClientRejectsRelativeURL(t *testing.T) {
	_, err := NewHTTPClient("localhost:6185")
	assert.Error(t, err)
}

func TestStartScanPostsWithToken(t *testing.T) {
	server, client := newFakeServer(t, map[string]string{
		"POST /api/space/scan": `{"status":"ok","message":"","data":null}`,
	})

	require.NoError(t, client.StartScan(context.Background()))
	call := server.lastCall()
	assert.Equal(t, http.MethodPost, call.method)
	assert.Equal(t, "/api/space/scan", call.path)
	assert.Equal(t, "Bearer secret", call.auth)
}

func TestScanProgressMapsStatus(t *testing.T) {
	_, client := newFakeServer(t, map[string]string{
		"GET /api/space/scan/progress": `{"status":"ok","data":{"status":"scanning","progress":42.5}}`,
	})

	progress, err := client.ScanProgress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, progress.Status)
	assert.InDelta(t, 42.5, progress.Progress, 0.001)
}

func TestEnvelopeErrorStatus(t *testing.T) {
	_, client := newFakeServer(t, map[string]string{
		"GET /api/space/scan/progress": `{"status":"error","message":"scanner offline"}`,
	})

	_, err := client.ScanProgress(context.Background())
	require.ErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "scanner offline")
}

func TestHTTPStatusError(t *testing.T) {
	server, client := newFakeServer(t, map[string]string{
		"GET /api/space/scan/progress": `{}`,
	})
	server.status = http.StatusBadGateway

	_, err := client.ScanProgress(context.Background())
	assert.ErrorIs(t, err, ErrHTTPStatus)
}

func TestScanResultNullData(t *testing.T) {
	_, client := newFakeServer(t, map[string]string{
		"GET /api/space/scan/result": `{"status":"ok","data":null}`,
	})

	_, err := client.ScanResult(context.Background())
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestScanResultDecodesDetail(t *testing.T) {
	_, client := newFakeServer(t, map[string]string{
		"GET /api/space/scan/result": `{"status":"ok","data":{
			"categories":[
				{"resource_type":"chat_images","can_cleanup":true,"risk_level":"safe","supports_time_filter":true,
				 "total_size":300,"file_count":3,
				 "chat_resources":[
					{"chat_key":"a","total_size":100,"file_count":1,"files":[{"size":100,"modified_time":1700000000.5}]},
					{"chat_key":"b","total_size":200,"file_count":2,"files":null},
					{"chat_key":"c","total_size":0,"file_count":0,"files":[]}
				 ]},
				{"resource_type":"logs","can_cleanup":true,"risk_level":"safe","total_size":10,"file_count":1,"chat_resources":null}
			],
			"disk_info":{"total_space":1000,"free_space":400,"used_space":600,"data_dir_size":310},
			"summary":{"total_files":4,"total_size":310,"duration_seconds":1.5,"end_time":1700000100}
		}}`,
	})

	result, err := client.ScanResult(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Categories, 2)

	images := result.Categories[0]
	assert.Equal(t, domain.ResourceChatImages, images.ResourceType)
	assert.Equal(t, domain.RiskSafe, images.RiskLevel)
	require.Len(t, images.ChatResources, 3)
	assert.True(t, images.ChatResources[0].HasFileDetails())
	assert.Equal(t, time.Unix(1700000000, 500_000_000), images.ChatResources[0].Files[0].ModifiedTime)
	assert.False(t, images.ChatResources[1].HasFileDetails())
	assert.True(t, images.ChatResources[2].HasFileDetails())
	assert.Empty(t, images.ChatResources[2].Files)

	assert.Nil(t, result.Categories[1].ChatResources)
	assert.Equal(t, int64(310), result.DiskInfo.DataDirSize)
	assert.Equal(t, time.Unix(1700000100, 0), result.Summary.EndTime)
}

func TestStartCleanupSendsRequest(t *testing.T) {
	server, client := newFakeServer(t, map[string]string{
		"POST /api/space/cleanup": `{"status":"ok","data":{"task_id":"abc"}}`,
	})
	before := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	taskID, err := client.StartCleanup(context.Background(), domain.CleanupRequest{
		ResourceTypes: []domain.ResourceType{domain.ResourceChatImages, domain.ResourceLogs},
		ChatKeys:      []string{"a"},
		BeforeDate:    &before,
		DryRun:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", taskID)

	var wire cleanupStartRequest
	require.NoError(t, json.Unmarshal(server.lastCall().body, &wire))
	assert.Equal(t, "2025-01-01T00:00:00Z", wire.BeforeDate)

	decoded, err := decodeCleanupRequest(wire)
	require.NoError(t, err)
	assert.Equal(t, []domain.ResourceType{domain.ResourceChatImages, domain.ResourceLogs}, decoded.ResourceTypes)
	assert.Equal(t, []string{"a"}, decoded.ChatKeys)
	assert.True(t, decoded.BeforeDate.Equal(before))
	assert.True(t, decoded.DryRun)
}

func TestStartCleanupWithoutTaskID(t *testing.T) {
	_, client := newFakeServer(t, map[string]string{
		"POST /api/space/cleanup": `{"status":"ok","data":{}}`,
	})

	_, err := client.StartCleanup(context.Background(), domain.CleanupRequest{
		ResourceTypes: []domain.ResourceType{domain.ResourceLogs},
	})
	assert.ErrorIs(t, err, ErrAPI)
}

func TestCleanupProgressPassesTaskID(t *testing.T) {
	server, client := newFakeServer(t, map[string]string{
		"GET /api/space/cleanup/progress": `{"status":"ok","data":{"status":"completed","progress":100,
			"processed_files":5,"total_files":5,"freed_space":2048,"message":"done"}}`,
	})

	progress, err := client.CleanupProgress(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "task_id=abc", server.lastCall().query)
	assert.Equal(t, "abc", progress.TaskID)
	assert.Equal(t, domain.StatusCompleted, progress.Status)
	assert.Equal(t, int64(2048), progress.FreedSpace)
}

func decodeCleanupRequest(wire cleanupStartRequest) (domain.CleanupRequest, error) {
	req := domain.CleanupRequest{ChatKeys: wire.ChatKeys, DryRun: wire.DryRun}
	for _, resourceType := range wire.ResourceTypes {
		req.ResourceTypes = append(req.ResourceTypes, domain.ResourceType(resourceType))
	}
	if wire.BeforeDate != "" {
		parsed, err := time.Parse(time.RFC3339, wire.BeforeDate)
		if err != nil {
			return req, err
		}
		req.BeforeDate = &parsed
	}
	return req, nil
}
