package events

import (
	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

type EventsController struct {
	Hub *Hub
	Log *zap.Logger
}

func NewEventsController(hub *Hub, log *zap.Logger) *EventsController {
	return &EventsController{Hub: hub, Log: log}
}

// StreamCases pushes case events as JSON text frames until the client
// goes away. ?case_id= narrows the stream to one case.
func (h *EventsController) StreamCases(c *websocket.Conn) {
	events, unsubscribe := h.Hub.Subscribe(c.Query("case_id"))
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(e); err != nil {
				h.Log.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
