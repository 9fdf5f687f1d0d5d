package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/guessucla/campusguess/internal/campusguess"
)

type fakeImages struct{}

func (fakeImages) URL(_ context.Context, key string) (string, error) {
	return "https://bucket.example.com/" + key + "?sig=abc", nil
}

func TestLocationCount(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/locations/count", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp LocationCountResponse
	decode(t, w, &resp)
	if resp.Count != len(demoLocations) {
		t.Fatalf("count %d, want %d", resp.Count, len(demoLocations))
	}
}

func TestLocationsByIndicesKeepOrder(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/locations?indices=3,0,5", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var locs []LocationResponse
	decode(t, w, &locs)

	want := []string{demoLocations[3].Name, demoLocations[0].Name, demoLocations[5].Name}
	if len(locs) != len(want) {
		t.Fatalf("got %d locations, want %d", len(locs), len(want))
	}
	for i, name := range want {
		if locs[i].Name != name {
			t.Errorf("locs[%d] = %q, want %q", i, locs[i].Name, name)
		}
	}
	if locs[0].Coordinates != demoLocations[3].Coord.String() {
		t.Errorf("coordinates %q, want %q", locs[0].Coordinates, demoLocations[3].Coord.String())
	}
}

func TestLocationsByIndicesErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		query string
		want  int
	}{
		{"indices=1,x", http.StatusBadRequest},
		{"indices=-1", http.StatusBadRequest},
		{"indices=99", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/locations?"+tt.query, nil, "")
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestLocationInteractions(t *testing.T) {
	env := newTestEnv(t)
	locs, err := env.store.AllLocations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	base := "/api/locations/" + locs[0].ID

	env.do(t, http.MethodPost, base+"/view", nil, "")
	env.do(t, http.MethodPost, base+"/like", nil, "")
	env.do(t, http.MethodPost, base+"/like?liked=false", nil, "")
	w := env.do(t, http.MethodPost, base+"/comments", CommentRequest{Comment: "  best steps on campus "}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("comment: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var loc LocationResponse
	decode(t, w, &loc)
	if loc.Views != 1 || loc.Likes != 1 || loc.Dislikes != 1 {
		t.Errorf("counters = %d/%d/%d, want 1/1/1", loc.Views, loc.Likes, loc.Dislikes)
	}
	if len(loc.Comments) != 1 || loc.Comments[0] != "best steps on campus" {
		t.Errorf("comments = %q", loc.Comments)
	}

	if w := env.do(t, http.MethodPost, base+"/like?liked=maybe", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad liked: expected 400, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, base+"/comments", CommentRequest{Comment: "   "}, ""); w.Code != http.StatusBadRequest {
		t.Errorf("blank comment: expected 400, got %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/api/locations/missing/view", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown location: expected 404, got %d", w.Code)
	}
}

func TestLocationImage(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Images = fakeImages{} })
	ctx := context.Background()

	withImage, err := env.store.UpsertLocation(ctx, campusguess.Location{
		Name:     "Kerckhoff Hall",
		Coord:    campusguess.Coord{Lat: 34.0705, Lon: -118.4432},
		ImageKey: "locations/kerckhoff-hall.jpg",
	})
	if err != nil {
		t.Fatal(err)
	}
	w := env.do(t, http.MethodGet, "/api/locations/"+withImage.ID+"/image", nil, "")
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "https://bucket.example.com/locations/kerckhoff-hall.jpg?sig=abc" {
		t.Errorf("redirect to %q", got)
	}

	locs, _ := env.store.AllLocations(ctx)
	w = env.do(t, http.MethodGet, "/api/locations/"+locs[0].ID+"/image", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("no image key: expected 404, got %d", w.Code)
	}
}

func TestLocationImageWithoutStorage(t *testing.T) {
	env := newTestEnv(t)
	locs, _ := env.store.AllLocations(context.Background())
	w := env.do(t, http.MethodGet, "/api/locations/"+locs[0].ID+"/image", nil, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
