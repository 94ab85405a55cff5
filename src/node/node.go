package node

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/strandnet/strand/src/config"
	"github.com/strandnet/strand/src/graph"
	"github.com/strandnet/strand/src/net"
)

// Node ties the event graph to the network: it consumes inbound protocol
// messages, inserts remote events, answers sync requests from the broadcast
// bookkeeping, fans freshly committed events back out to peers, and runs the
// rotation scheduler.
type Node struct {
	state

	conf   *config.Config
	logger *logrus.Entry

	graph *graph.Graph

	trans net.Transport
	netCh <-chan net.RPC

	commitCh <-chan *graph.Event

	rotator *Rotator

	shutdownCh chan struct{}

	start time.Time

	// counters are read by GetStats from other goroutines
	eventsReceived int64
	eventsSent     int64
	syncRequests   int64
}

// NewNode is a factory method that returns a Node instance.
func NewNode(conf *config.Config, g *graph.Graph, trans net.Transport) *Node {
	logger := conf.Logger().WithField("this_node", trans.LocalAddr())

	return &Node{
		conf:       conf,
		logger:     logger,
		graph:      g,
		trans:      trans,
		netCh:      trans.Consumer(),
		commitCh:   g.Subscribe(64),
		rotator:    NewRotator(g, logger),
		shutdownCh: make(chan struct{}),
		start:      time.Now(),
	}
}

// Init starts the transport and announces our protocol version to peers.
func (n *Node) Init() error {
	n.trans.Listen()

	n.trans.Broadcast(&net.VersionMessage{
		From:            n.trans.LocalAddr(),
		ProtocolVersion: net.ProtocolVersion,
	})

	n.setState(Gossiping)

	return nil
}

// RunAsync calls Run in a new goroutine.
func (n *Node) RunAsync() {
	go n.Run()
}

// Run invokes the main loop of the node. It returns when Shutdown is called.
func (n *Node) Run() {
	go n.rotator.Run()

	heartbeat := time.NewTicker(n.conf.HeartbeatTimeout)
	defer heartbeat.Stop()

	for {
		select {
		case rpc := <-n.netCh:
			n.handleRPC(rpc)
		case event := <-n.commitCh:
			n.broadcastEvent(event)
		case <-heartbeat.C:
			n.reportTips()
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) handleRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.VersionMessage:
		n.handleVersion(cmd)
	case *net.EventMessage:
		n.handleEvent(cmd)
	case *net.FetchEventsMessage:
		n.handleFetchEvents(cmd)
	case *net.SendEventMessage:
		n.handleSendEvent(cmd)
	default:
		n.logger.WithField("command", rpc.Command).Error("Unexpected command")
	}
}

func (n *Node) handleVersion(cmd *net.VersionMessage) {
	if cmd.ProtocolVersion != net.ProtocolVersion {
		n.logger.WithFields(logrus.Fields{
			"peer":    cmd.From,
			"version": cmd.ProtocolVersion,
		}).Warn("Protocol version mismatch; ignoring peer")
		return
	}
	n.logger.WithField("peer", cmd.From).Debug("Handshake")
}

func (n *Node) handleEvent(cmd *net.EventMessage) {
	event := new(graph.Event)
	if err := event.Unmarshal(cmd.Raw); err != nil {
		n.logger.WithField("peer", cmd.From).WithError(err).Warn("Malformed event payload")
		return
	}

	// Cheap pre-filter before any store lookups.
	if err := event.ValidateNew(n.graph.GenesisTimestamp(), n.graph.Rotation()); err != nil {
		n.logger.WithField("peer", cmd.From).WithError(err).Warn("Rejected event")
		return
	}

	if _, err := n.graph.Insert([]*graph.Event{event}); err != nil {
		if graph.IsAnyEventError(err) {
			n.logger.WithField("peer", cmd.From).WithError(err).Warn("Rejected event")
		} else {
			n.logger.WithError(err).Error("Inserting remote event")
		}
		return
	}

	atomic.AddInt64(&n.eventsReceived, 1)
}

func (n *Node) handleFetchEvents(cmd *net.FetchEventsMessage) {
	atomic.AddInt64(&n.syncRequests, 1)

	missing, err := n.graph.EventsMissingFrom(cmd.UnrefTips, n.conf.SyncLimit)
	if err != nil {
		n.logger.WithError(err).Error("Computing missing events")
		return
	}

	for _, event := range missing {
		if err := n.sendEvent(cmd.From, event); err != nil {
			n.logger.WithField("peer", cmd.From).WithError(err).Debug("Sending event")
			return
		}
	}
}

func (n *Node) handleSendEvent(cmd *net.SendEventMessage) {
	// Only honor the request if the bookkeeping says this event has not
	// already gone out.
	if !n.graph.NeedsBroadcast(cmd.ID) {
		n.logger.WithField("event", cmd.ID.String()).Debug("Already broadcasted; not resending")
		return
	}

	event, err := n.graph.Get(cmd.ID)
	if err != nil {
		n.logger.WithField("event", cmd.ID.String()).WithError(err).Debug("Requested event not found")
		return
	}

	if err := n.sendEvent(cmd.From, event); err != nil {
		n.logger.WithField("peer", cmd.From).WithError(err).Debug("Sending event")
		return
	}
	n.graph.MarkBroadcasted(cmd.ID)
}

func (n *Node) sendEvent(target string, event *graph.Event) error {
	raw, err := event.Marshal()
	if err != nil {
		return err
	}

	err = n.trans.Send(target, &net.EventMessage{
		From: n.trans.LocalAddr(),
		Raw:  raw,
	})
	if err != nil {
		return err
	}

	atomic.AddInt64(&n.eventsSent, 1)
	return nil
}

// broadcastEvent pushes a freshly committed event to every peer, once.
func (n *Node) broadcastEvent(event *graph.Event) {
	id := event.ID()
	if !n.graph.NeedsBroadcast(id) {
		return
	}

	raw, err := event.Marshal()
	if err != nil {
		n.logger.WithError(err).Error("Marshalling committed event")
		return
	}

	n.trans.Broadcast(&net.EventMessage{
		From: n.trans.LocalAddr(),
		Raw:  raw,
	})
	n.graph.MarkBroadcasted(id)
	atomic.AddInt64(&n.eventsSent, 1)
}

// reportTips broadcasts our unreferenced tips so peers can push us whatever
// we are missing.
func (n *Node) reportTips() {
	n.trans.Broadcast(&net.FetchEventsMessage{
		From:      n.trans.LocalAddr(),
		UnrefTips: n.graph.Tips(),
	})
}

// SubmitEvent creates an event on top of the current tips with the given
// content and commits it. The commit notification takes care of propagating
// it to peers.
func (n *Node) SubmitEvent(content []byte) (*graph.Event, error) {
	event := graph.NewEvent(n.graph, content)
	if _, err := n.graph.Insert([]*graph.Event{event}); err != nil {
		return nil, err
	}
	return event, nil
}

// GetEvent returns a committed event by ID.
func (n *Node) GetEvent(id graph.EventID) (*graph.Event, error) {
	return n.graph.Get(id)
}

// Tips returns the current unreferenced-tip index.
func (n *Node) Tips() map[uint64][]graph.EventID {
	return n.graph.Tips()
}

// Genesis returns the current genesis event.
func (n *Node) Genesis() *graph.Event {
	return n.graph.Genesis()
}

// Shutdown stops the node's background loops and closes the transport.
func (n *Node) Shutdown() {
	if n.getState() == Shutdown {
		return
	}

	n.logger.Debug("Shutdown")
	n.setState(Shutdown)

	close(n.shutdownCh)
	n.rotator.Shutdown()
	n.trans.Close()
}

// GetStats returns diagnostic and operational counters.
func (n *Node) GetStats() map[string]string {
	stats := n.graph.Stats()

	stats["state"] = n.getState().String()
	stats["moniker"] = n.conf.Moniker
	stats["uptime"] = time.Since(n.start).String()
	stats["peers"] = strconv.Itoa(len(n.trans.Peers()))
	stats["events_received"] = strconv.FormatInt(atomic.LoadInt64(&n.eventsReceived), 10)
	stats["events_sent"] = strconv.FormatInt(atomic.LoadInt64(&n.eventsSent), 10)
	stats["sync_requests"] = strconv.FormatInt(atomic.LoadInt64(&n.syncRequests), 10)

	return stats
}
