package engine

import (
	"testing"

	"github.com/anonto42/loopline/backend/internal/models"
)

func TestRenderSingleActor(t *testing.T) {
	title, message := Render(models.KindLike, RenderContext{ActorName: "alice", TargetLabel: "post"})
	if title != "New like" {
		t.Errorf("title = %q, want %q", title, "New like")
	}
	if message != "alice liked your post" {
		t.Errorf("message = %q, want %q", message, "alice liked your post")
	}
}

func TestRenderAggregatedActors(t *testing.T) {
	cases := []struct {
		others int
		want   string
	}{
		{0, "alice started following you"},
		{1, "alice and 1 other started following you"},
		{4, "alice and 4 others started following you"},
	}
	for _, tc := range cases {
		_, message := Render(models.KindFollow, RenderContext{ActorName: "alice", Others: tc.others})
		if message != tc.want {
			t.Errorf("others=%d: message = %q, want %q", tc.others, message, tc.want)
		}
	}
}

func TestRenderDefaultTargetLabel(t *testing.T) {
	_, message := Render(models.KindComment, RenderContext{ActorName: "bob"})
	if message != "bob commented on your post" {
		t.Errorf("message = %q, want default post label", message)
	}
}

func TestRenderSystemFromPayload(t *testing.T) {
	title, message := Render(models.KindSystem, RenderContext{
		Payload: map[string]string{"title": "Maintenance", "message": "Back at noon"},
	})
	if title != "Maintenance" || message != "Back at noon" {
		t.Errorf("got (%q, %q), want payload text", title, message)
	}

	title, _ = Render(models.KindSystem, RenderContext{})
	if title != "System notification" {
		t.Errorf("empty payload title = %q, want fallback", title)
	}
}
