package scores

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/colorgrid/internal/game"
)

func TestReporter_PostsEntry(t *testing.T) {
	var got ReportEntry
	var path, contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	n := 2
	entry := ReportEntry{
		RoomCode:    "ROOM01",
		Nickname:    "alice",
		Role:        game.RoleClueMaker,
		Points:      8,
		GuessNumber: &n,
		TargetCell:  "d12",
	}
	NewReporter(server.URL).Report(context.Background(), entry)

	assert.Equal(t, "/color-game/scores", path)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, entry, got)
}

func TestReporter_SwallowsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	// Must not panic or block; the failure is logged and dropped.
	NewReporter(server.URL).Report(context.Background(), ReportEntry{RoomCode: "ROOM01", Nickname: "alice"})
}

func TestReporter_DisabledWithoutBaseURL(t *testing.T) {
	// No server anywhere; an empty base URL means Report is a no-op rather
	// than a connection error.
	NewReporter("").Report(context.Background(), ReportEntry{RoomCode: "ROOM01", Nickname: "alice"})
}
