package relay

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/livedevhub/collab-relay/pkg/transport"
)

type userLeft struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
}

// HandleClose is the transport close callback. It runs the full disconnect
// cleanup: deregister, drop every group subscription, then tell the
// survivors of each room the connection belonged to. The departing
// connection receives nothing.
func (r *Relay) HandleClose(connID uuid.UUID, err error) {
	// Close callbacks run outside the per-message guard, so a fault during
	// cleanup must not escape and take the process down.
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.panics.Inc()
			r.logger.Error("Recovered from panic during disconnect cleanup",
				slog.String("connID", connID.String()),
				slog.Any("panic", rec),
			)
		}
	}()

	report, derr := r.state.DeregisterConnection(connID)
	if derr != nil {
		r.logger.Error("Failed to deregister connection", slog.String("connID", connID.String()), slog.Any("error", derr))
		return
	}
	r.groups.DropConnection(connID)

	if report.LegacyMember != nil {
		r.logger.Info("User left room",
			slog.String("roomID", report.LegacyRoomID),
			slog.String("username", report.LegacyMember.Username),
		)
		r.broadcast(report.LegacyRoomID, connID, "user-left", userLeft{
			SocketID: report.LegacyMember.SocketID,
			Username: report.LegacyMember.Username,
		})
	}

	if report.Departed != nil {
		group := transport.ProjectGroup(report.ProjectID)
		r.logger.Info("User left project room",
			slog.String("projectID", report.ProjectID),
			slog.String("username", report.Departed.Username),
		)
		r.broadcast(group, connID, "user-left", *report.Departed)
		r.broadcast(group, connID, "project-users", report.ProjectUsers)
	}

	r.updateRoomGauges()
}
