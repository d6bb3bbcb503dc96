package smartsheet

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSheetBody = `{
	"id": 4583173393803140,
	"name": "Project Plan",
	"totalRowCount": 2,
	"createdAt": "2025-03-01T09:00:00Z",
	"modifiedAt": "2025-06-15T18:30:00Z",
	"columns": [
		{"id": 7960873114331012, "title": "Task", "type": "TEXT_NUMBER", "primary": true, "index": 0},
		{"id": 642523719853956, "title": "Done", "type": "CHECKBOX", "index": 1}
	],
	"rows": [
		{"id": 6572427401553796, "rowNumber": 1, "cells": [
			{"columnId": 7960873114331012, "value": "Kickoff", "displayValue": "Kickoff"},
			{"columnId": 642523719853956, "value": true}
		]},
		{"id": 1068827867132804, "rowNumber": 2, "cells": [
			{"columnId": 7960873114331012, "value": "Design review", "displayValue": "Design review"}
		]}
	]
}`

const testWorkspaceBody = `{
	"id": 7116448184769412,
	"name": "Engineering",
	"permalink": "https://app.smartsheet.com/workspaces/abc",
	"sheets": [
		{"id": 4583173393803140, "name": "Project Plan", "modifiedAt": "2025-06-15T18:30:00Z"},
		{"id": 2331373580117892, "name": "Backlog", "modifiedAt": "2025-06-10T08:00:00Z"}
	]
}`

// newTestClient points a client at the given handler with an instant retry
// timer so failures don't slow the suite down.
func newTestClient(t *testing.T, maxAttempts int, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	retry := DefaultPolicy(maxAttempts)
	retry.timer = newInstantTimer()

	client, err := New(Config{
		Token:             "test-token",
		BaseURL:           srv.URL,
		Timeout:           5 * time.Second,
		Retry:             retry,
		RequestsPerMinute: 100000,
	})
	require.NoError(t, err)
	return client, srv
}

func TestGetSheet(t *testing.T) {
	var gotAuth atomic.Value
	client, _ := newTestClient(t, 3, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		assert.Equal(t, "/sheets/4583173393803140", r.URL.Path)
		fmt.Fprint(w, testSheetBody)
	}))

	doc, err := client.GetSheet(context.Background(), 4583173393803140)
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-token", gotAuth.Load())
	assert.Equal(t, int64(4583173393803140), doc.Metadata.ID)
	assert.Equal(t, "Project Plan", doc.Metadata.Name)
	assert.Equal(t, 2, doc.Metadata.TotalRowCount)
	assert.True(t, doc.Metadata.LastSync.IsZero(), "LastSync must be left for the sync manager")

	require.Len(t, doc.Columns, 2)
	assert.Equal(t, "Task", doc.Columns[0].Title)
	assert.True(t, doc.Columns[0].Primary)

	require.Len(t, doc.Rows, 2)
	assert.Len(t, doc.Rows[0].Cells, 2)
	// Cell absent from the payload stays absent from the map.
	assert.Len(t, doc.Rows[1].Cells, 1)
	cell := doc.Rows[0].Cells[7960873114331012]
	require.NotNil(t, cell.DisplayValue)
	assert.Equal(t, "Kickoff", *cell.DisplayValue)
}

func TestGetWorkspace(t *testing.T) {
	client, _ := newTestClient(t, 3, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/workspaces/7116448184769412", r.URL.Path)
		assert.Equal(t, "sheets", r.URL.Query().Get("include"))
		fmt.Fprint(w, testWorkspaceBody)
	}))

	ws, err := client.GetWorkspace(context.Background(), 7116448184769412)
	require.NoError(t, err)

	assert.Equal(t, "Engineering", ws.Name)
	require.Len(t, ws.Sheets, 2)
	assert.Equal(t, []int64{4583173393803140, 2331373580117892}, ws.SheetIDs())
}

func TestGetSheetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, 3, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, testSheetBody)
	}))

	doc, err := client.GetSheet(context.Background(), 4583173393803140)
	require.NoError(t, err, "two failures within a three-attempt budget must succeed")
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "Project Plan", doc.Metadata.Name)
}

func TestGetSheetExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, 3, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.GetSheet(context.Background(), 4583173393803140)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, int32(3), calls.Load(), "should stop after MaxAttempts")
}

func TestGetSheetAuthFailureDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, 5, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.GetSheet(context.Background(), 4583173393803140)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, int32(1), calls.Load(), "auth failures are permanent")
}

func TestGetSheetNotFoundDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, 5, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetSheet(context.Background(), 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetSheetMalformedBodyIsProtocolError(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, 5, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"id": "not-a-number"}`)
	}))

	_, err := client.GetSheet(context.Background(), 4583173393803140)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Equal(t, int32(1), calls.Load(), "malformed responses are permanent")
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}
