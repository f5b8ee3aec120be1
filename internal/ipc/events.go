package ipc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/Dadams2/AeroSpace/internal/util"
)

// Event represents one line of the server's event stream.
type Event struct {
	Kind    string
	Payload string
}

// Subscribe connects to the server event socket and streams events until
// context cancellation. Cancelling the context closes the connection, so
// a torn-down subscription never delivers another event.
func Subscribe(ctx context.Context, logger *util.Logger) (<-chan Event, error) {
	socket := EventSocketPath()
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("connect event socket: %w", err)
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	events := make(chan Event)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			line := scanner.Text()
			parts := strings.SplitN(line, ">>", 2)
			ev := Event{Kind: parts[0]}
			if len(parts) == 2 {
				ev.Payload = parts[1]
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			logger.Warnf("event stream error: %v", err)
		}
	}()
	return events, nil
}
