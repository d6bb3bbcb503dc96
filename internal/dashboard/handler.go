package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/sheetsync/ssync/internal/syncer"
)

// Handler turns sync results into dashboard broadcasts. Wire its
// OnSyncResult into the daemon's OnResult callback.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates a handler publishing to the given server.
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{server: server, logger: logger}
}

// OnSyncResult broadcasts one message per attempted sheet followed by a
// run summary.
func (h *Handler) OnSyncResult(res *syncer.Result) {
	for _, sr := range res.Sheets {
		h.send(MessageTypeSheetSynced, SheetSyncedData{
			SheetID:   sr.ID,
			Name:      sr.Name,
			RowCount:  sr.RowCount,
			Unchanged: sr.Unchanged,
			Error:     sr.Err,
		})
	}

	h.send(MessageTypeSyncComplete, SyncCompleteData{
		Operation: string(res.Operation),
		Succeeded: len(res.Succeeded),
		Skipped:   len(res.Skipped),
		Failed:    len(res.Failed),
		Pruned:    len(res.Pruned),
		Duration:  res.Duration,
	})
}

// PublishStatus broadcasts aggregate mirror statistics, typically sent
// after each sync run completes.
func (h *Handler) PublishStatus(rep *syncer.StatusReport) {
	data := StatsData{
		SheetCount:  len(rep.Sheets),
		TotalSizeMB: rep.TotalSizeMB,
		TotalSyncs:  rep.TotalSyncs,
	}
	if rep.LastSync != nil {
		data.LastSyncAt = rep.LastSync.Timestamp
	}
	h.send(MessageTypeStats, data)
}

func (h *Handler) send(typ MessageType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: raw})
}
