package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"segbridge/service"
)

var progressUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The service binds loopback; cross-origin browser pages are the only
	// expected remote callers and CORS already allows them on the REST side.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamRunProgress pushes an active run's progress lines over a websocket.
// Each text message is one line. The socket closes when the run leaves the
// active set; pollers that prefer plain HTTP use GET progress instead.
func StreamRunProgress(c *gin.Context) {
	id, paramOK := runIDFromParam(c)
	if !paramOK {
		return
	}

	conn, err := progressUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var from uint64
	for {
		lines, next, _, active := service.GlobalServices.Run.Progress(id, from)
		from = next
		for _, line := range lines {
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		}
		if !active {
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
				time.Now().Add(10*time.Second)); err != nil {
				log.Printf("run: progress stream close failed for run %d: %v", id, err)
			}
			return
		}

		select {
		case <-ticker.C:
		case <-c.Request.Context().Done():
			return
		}
	}
}
