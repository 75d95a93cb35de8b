// Package bus implements the message-bus adapter: it decodes inbound
// robot commands and republishes robot positions over NATS. Connection
// handling retries on failed connect with unlimited reconnects; since
// the wire contract is plain request/reply pub/sub rather than a work
// queue, it uses core NATS rather than JetStream.
package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/connectedhumber/arena-locator/internal/arena"
	"github.com/connectedhumber/arena-locator/internal/core"
	"github.com/connectedhumber/arena-locator/internal/observability"
	"github.com/connectedhumber/arena-locator/internal/robot"
	"github.com/connectedhumber/arena-locator/pkg/dto"
)

const locationSubject = "pixelbot/location"

// Adapter subscribes to the arena command subject and publishes the
// once-per-second location tick. It implements core.Publisher.
type Adapter struct {
	nc      *nats.Conn
	core    *core.Core
	log     *slog.Logger
	subject string
}

// New connects to natsURL and subscribes to subject. Connect failures
// are retried by the client itself (RetryOnFailedConnect); this call
// still blocks on the first dial.
func New(natsURL, subject string, c *core.Core, log *slog.Logger) (*Adapter, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	a := &Adapter{nc: nc, core: c, log: log, subject: subject}

	if _, err := nc.Subscribe(subject, a.handleCommand); err != nil {
		nc.Close()
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return a, nil
}

// Close drains and closes the NATS connection.
func (a *Adapter) Close() {
	a.nc.Drain()
}

// handleCommand decodes one inbound message. Unknown commands, missing
// required fields, and unknown bot ids are silently ignored — never
// logged as errors, since a stale or malformed command from a
// disconnected tuning client is routine, not exceptional.
func (a *Adapter) handleCommand(msg *nats.Msg) {
	var cmd dto.Command
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		return
	}
	observability.BusCommandsReceived.WithLabelValues(cmd.Cmd).Inc()

	switch cmd.Cmd {
	case "loc":
		a.handleLoc(cmd)
	case "setColor":
		a.handleSetColor(cmd)
	case "enableCrosshairs":
		a.handleEnableCrosshairs(cmd)
	case "getAllRobots":
		a.handleGetAllRobots(cmd)
	}
}

func (a *Adapter) handleLoc(cmd dto.Command) {
	robots := a.core.GetRobots()
	pos, ok := robots[cmd.BotID]
	if !ok {
		return
	}
	a.publish(fmt.Sprintf("pixelbot/%d", cmd.BotID), dto.LocReply{
		Loc: [3]int{pos.XMM, pos.YMM, pos.Heading},
	})
}

func (a *Adapter) handleSetColor(cmd dto.Command) {
	if cmd.Color == nil {
		return
	}
	a.core.SetBotColor(cmd.BotID, robot.Color{
		R: uint8(cmd.Color[0]),
		G: uint8(cmd.Color[1]),
		B: uint8(cmd.Color[2]),
	})
}

func (a *Adapter) handleEnableCrosshairs(cmd dto.Command) {
	switch cmd.State {
	case "on":
		a.core.EnableCrosshairDisplay(true)
	case "off":
		a.core.EnableCrosshairDisplay(false)
	}
}

func (a *Adapter) handleGetAllRobots(cmd dto.Command) {
	if cmd.ReplyTo == "" {
		return
	}
	a.publish("pixelbot/"+cmd.ReplyTo, dto.AllRobotsReply{Robots: robotsToWire(a.core.GetRobots())})
}

// PublishLocations implements core.Publisher: the once-per-second
// pixelbot/location broadcast.
func (a *Adapter) PublishLocations(robots map[int]arena.RobotPosition) {
	a.publish(locationSubject, dto.AllRobotsReply{Robots: robotsToWire(robots)})
}

func (a *Adapter) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		a.log.Error("marshal bus payload", "subject", subject, "error", err)
		return
	}
	if err := a.nc.Publish(subject, data); err != nil {
		a.log.Debug("bus publish failed", "subject", subject, "error", err)
		return
	}
	observability.BusMessagesPublished.WithLabelValues(subject).Inc()
}

func robotsToWire(robots map[int]arena.RobotPosition) map[string][3]int {
	out := make(map[string][3]int, len(robots))
	for id, pos := range robots {
		out[strconv.Itoa(id)] = [3]int{pos.XMM, pos.YMM, pos.Heading}
	}
	return out
}
