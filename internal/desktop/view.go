package desktop

import (
	"time"

	"github.com/samber/lo"

	"github.com/myrison/agent-peek/internal/session"
)

// SessionView is a session as the frontend renders it.
type SessionView struct {
	Index               int       `json:"index"`
	ID                  string    `json:"id"`
	Status              string    `json:"status"`
	Project             string    `json:"project"`
	Cwd                 string    `json:"cwd"`
	Terminal            string    `json:"terminal"`
	ToolName            string    `json:"toolName,omitempty"`
	Activity            string    `json:"activity,omitempty"`
	NotificationMessage string    `json:"notificationMessage,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// PanelState is the payload of the panel:render event.
type PanelState struct {
	Sessions []SessionView `json:"sessions"`
	Selected int           `json:"selected"`
}

func toViews(sessions []session.AgentSession) []SessionView {
	return lo.Map(sessions, func(s session.AgentSession, i int) SessionView {
		return SessionView{
			Index:               i + 1,
			ID:                  s.ID,
			Status:              string(s.Status),
			Project:             s.ProjectName(),
			Cwd:                 s.Cwd,
			Terminal:            s.Terminal,
			ToolName:            s.ToolName,
			Activity:            s.Activity,
			NotificationMessage: s.NotificationMessage,
			UpdatedAt:           s.UpdatedAt,
		}
	})
}
