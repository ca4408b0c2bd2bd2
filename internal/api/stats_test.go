package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seantiz/simcbot/internal/model"
)

func TestGetStatsEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var stats statsResponse
	getJSON(t, ts.URL+"/v1/stats", http.StatusOK, &stats)

	if stats.Total != 0 {
		t.Errorf("total = %d, want 0", stats.Total)
	}
	if stats.Pending != 0 || stats.Executing {
		t.Errorf("pending = %d, executing = %v, want idle queue", stats.Pending, stats.Executing)
	}
}

func TestGetStatsWithHistory(t *testing.T) {
	srv, fw := newTestServer(t)
	ctx := context.Background()

	now := time.Now().UTC()
	records := []struct {
		mode   model.Mode
		status string
		ms     int
	}{
		{model.ModeDPS, model.StatusCompleted, 1000},
		{model.ModeDPS, model.StatusFailed, 3000},
		{model.ModeScaling, model.StatusCompleted, 2000},
	}
	for _, r := range records {
		ms := r.ms
		rec := &model.JobRecord{
			ID:         model.NewID(),
			Mode:       r.mode,
			Delivery:   model.DeliveryDirectMessage,
			Status:     r.status,
			DurationMS: &ms,
			CreatedAt:  now,
		}
		if err := srv.store.RecordJob(ctx, rec); err != nil {
			t.Fatalf("RecordJob: %v", err)
		}
	}

	for range 2 {
		if _, err := fw.Enqueue(&model.Job{ID: model.NewID(), Mode: model.ModeDPS, CreatedAt: now}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	fw.start()

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var stats statsResponse
	getJSON(t, ts.URL+"/v1/stats", http.StatusOK, &stats)

	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if stats.ByStatus[model.StatusCompleted] != 2 || stats.ByStatus[model.StatusFailed] != 1 {
		t.Errorf("by_status = %v", stats.ByStatus)
	}
	if stats.ByMode[string(model.ModeDPS)] != 2 || stats.ByMode[string(model.ModeScaling)] != 1 {
		t.Errorf("by_mode = %v", stats.ByMode)
	}
	if stats.AvgDurationMS != 2000 {
		t.Errorf("avg_duration_ms = %v, want 2000", stats.AvgDurationMS)
	}
	if stats.Pending != 1 || !stats.Executing {
		t.Errorf("pending = %d, executing = %v, want 1 and true", stats.Pending, stats.Executing)
	}
}
