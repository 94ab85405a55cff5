package service

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/strandnet/strand/src/graph"
	"github.com/strandnet/strand/src/node"
)

// Service exposes the node's API over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	logger      *logrus.Entry
}

// NewService instantiates a Service and registers its handlers.
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of the
// http package. It is possible that another server in the same process is
// simultaneously using the DefaultServerMux. In which case, the handlers will
// be accessible from both servers.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering API handlers")
	http.HandleFunc("/stats", s.makeHandler(s.GetStats))
	http.HandleFunc("/tips", s.makeHandler(s.GetTips))
	http.HandleFunc("/genesis", s.makeHandler(s.GetGenesis))
	http.HandleFunc("/event/", s.makeHandler(s.GetEvent))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary to
// call Serve when another server has already been started with the
// DefaultServerMux and the same address:port combination.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving API")

	// Use the DefaultServerMux
	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats returns the node's diagnostic counters.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetTips returns the unreferenced-tip index, keyed by layer.
func (s *Service) GetTips(w http.ResponseWriter, r *http.Request) {
	tips := s.node.Tips()

	res := make(map[uint64][]string, len(tips))
	for layer, ids := range tips {
		hexes := make([]string, len(ids))
		for i, id := range ids {
			hexes[i] = id.String()
		}
		res[layer] = hexes
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(res)
}

// GetGenesis returns the current genesis event.
func (s *Service) GetGenesis(w http.ResponseWriter, r *http.Request) {
	returnEvent(w, s.node.Genesis())
}

// GetEvent returns an event by hex ID.
func (s *Service) GetEvent(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Path[len("/event/"):]

	id, err := graph.ParseEventID(param)
	if err != nil {
		s.logger.WithError(err).Errorf("Parsing event_id parameter %s", param)

		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	event, err := s.node.GetEvent(id)
	if err != nil {
		s.logger.WithError(err).Errorf("Retrieving event %s", param)

		http.Error(w, err.Error(), http.StatusNotFound)

		return
	}

	returnEvent(w, event)
}

type eventInfo struct {
	ID        string   `json:"id"`
	Timestamp uint64   `json:"timestamp"`
	Parents   []string `json:"parents"`
	Layer     uint64   `json:"layer"`
	Content   []byte   `json:"content"`
}

func returnEvent(w http.ResponseWriter, event *graph.Event) {
	parents := []string{}
	for _, p := range event.Header.ParentIDs() {
		parents = append(parents, p.String())
	}

	info := eventInfo{
		ID:        event.ID().String(),
		Timestamp: event.Header.Timestamp,
		Parents:   parents,
		Layer:     event.Header.Layer,
		Content:   event.Content,
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(info)
}
