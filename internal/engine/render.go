package engine

import (
	"strconv"
	"strings"
	"text/template"

	"github.com/anonto42/loopline/backend/internal/models"
)

// RenderContext parameterizes the per-kind templates.
type RenderContext struct {
	ActorName   string
	Others      int // distinct actors beyond the first
	TargetLabel string
	Payload     map[string]string
}

type kindTemplates struct {
	title   string
	message *template.Template
}

// actorsPhrase renders "{name}", "{name} and 1 other" or
// "{name} and N others" for aggregated notifications.
func actorsPhrase(rc RenderContext) string {
	switch {
	case rc.Others == 1:
		return rc.ActorName + " and 1 other"
	case rc.Others > 1:
		return rc.ActorName + " and " + strconv.Itoa(rc.Others) + " others"
	default:
		return rc.ActorName
	}
}

func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).
		Funcs(template.FuncMap{"actors": actorsPhrase}).
		Parse(text))
}

// Templates are fixed and compiled at startup; event payloads never feed
// template source, only template data.
var messageTemplates = map[models.Kind]kindTemplates{
	models.KindFollow: {
		title:   "New follower",
		message: mustTemplate("follow", `{{actors .}} started following you`),
	},
	models.KindLike: {
		title:   "New like",
		message: mustTemplate("like", `{{actors .}} liked your {{.TargetLabel}}`),
	},
	models.KindComment: {
		title:   "New comment",
		message: mustTemplate("comment", `{{.ActorName}} commented on your {{.TargetLabel}}`),
	},
	models.KindReply: {
		title:   "New reply",
		message: mustTemplate("reply", `{{.ActorName}} replied to your {{.TargetLabel}}`),
	},
	models.KindMention: {
		title:   "You were mentioned",
		message: mustTemplate("mention", `{{.ActorName}} mentioned you in a {{.TargetLabel}}`),
	},
	models.KindMessage: {
		title:   "New message",
		message: mustTemplate("message", `{{.ActorName}} sent you a message`),
	},
	models.KindShare: {
		title:   "Your post was shared",
		message: mustTemplate("share", `{{.ActorName}} shared your {{.TargetLabel}}`),
	},
}

// Render produces the title and message for a notification. System
// notifications take their text straight from the event payload; every
// other kind goes through its fixed template.
func Render(kind models.Kind, rc RenderContext) (title, message string) {
	if kind == models.KindSystem {
		title = rc.Payload["title"]
		if title == "" {
			title = "System notification"
		}
		return title, rc.Payload["message"]
	}

	kt, ok := messageTemplates[kind]
	if !ok {
		return "Notification", ""
	}
	if rc.TargetLabel == "" {
		rc.TargetLabel = "post"
	}

	var sb strings.Builder
	if err := kt.message.Execute(&sb, rc); err != nil {
		return kt.title, ""
	}
	return kt.title, sb.String()
}
