package strand

import (
	"fmt"

	"github.com/strandnet/strand/src/config"
	"github.com/strandnet/strand/src/graph"
	"github.com/strandnet/strand/src/net"
	"github.com/strandnet/strand/src/node"
	"github.com/strandnet/strand/src/peers"
	"github.com/strandnet/strand/src/service"
)

// Strand is a sandbox holding all the major components of a node. It is used
// to instantiate, initialize, and run these components together.
type Strand struct {
	Config    *config.Config
	Tree      graph.Tree
	Graph     *graph.Graph
	Transport net.Transport
	Node      *node.Node
	Service   *service.Service
}

// NewStrand instantiates a new Strand with a config object.
func NewStrand(conf *config.Config) *Strand {
	engine := &Strand{
		Config: conf,
	}

	return engine
}

func (s *Strand) initTree() error {
	if !s.Config.Store {
		s.Tree = graph.NewInmemTree()

		s.Config.Logger().Debug("Created new in-mem tree")

		return nil
	}

	s.Config.Logger().WithField("path", s.Config.DatabaseDir).Debug("Opening badger tree")

	tree, err := graph.NewBadgerTree(s.Config.TreeName, s.Config.DatabaseDir)
	if err != nil {
		return fmt.Errorf("failed to open badger tree: %v", err)
	}

	s.Tree = tree

	return nil
}

func (s *Strand) initGraph() error {
	g, err := graph.NewGraph(
		s.Tree,
		s.Config.GenesisTimestamp,
		s.Config.Rotation(),
		s.Config.CacheSize,
		s.Config.Logger(),
	)

	if err != nil {
		return fmt.Errorf("failed to initialize graph: %v", err)
	}

	s.Graph = g

	return nil
}

func (s *Strand) initTransport() error {
	transport, err := net.NewTCPTransport(
		s.Config.BindAddr,
		s.Config.TCPTimeout,
		s.Config.Logger(),
	)

	if err != nil {
		return err
	}

	// Peers come from the config and from [datadir]/peers.json, without
	// duplicates and minus ourselves.
	stored, err := peers.NewJSONPeerSet(s.Config.DataDir).Peers()
	if err != nil {
		return fmt.Errorf("failed to read peers.json: %v", err)
	}

	fromDisk := make([]string, 0, len(stored))
	for _, peer := range stored {
		fromDisk = append(fromDisk, peer.NetAddr)
	}

	for _, addr := range peers.Merge(transport.LocalAddr(), s.Config.Peers, fromDisk) {
		transport.AddPeer(addr)
	}

	s.Transport = transport

	return nil
}

func (s *Strand) initNode() error {
	s.Node = node.NewNode(s.Config, s.Graph, s.Transport)

	if err := s.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %v", err)
	}

	return nil
}

func (s *Strand) initService() error {
	if !s.Config.NoService {
		s.Service = service.NewService(s.Config.ServiceAddr, s.Node, s.Config.Logger())
	}
	return nil
}

// Init initializes the components of a Strand node in the right order.
func (s *Strand) Init() error {
	if err := s.initTree(); err != nil {
		return err
	}

	if err := s.initGraph(); err != nil {
		return err
	}

	if err := s.initTransport(); err != nil {
		return err
	}

	if err := s.initNode(); err != nil {
		return err
	}

	if err := s.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the optional HTTP service in the background and runs the node's
// main loop. It is a blocking call.
func (s *Strand) Run() {
	if s.Service != nil {
		go s.Service.Serve()
	}

	s.Node.Run()
}
