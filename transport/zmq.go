// Package transport provides ZeroMQ-based batch exchange between
// avila-arrow nodes.
//
// A node binds a ROUTER socket for receiving and keeps one DEALER
// socket per peer for sending. Every message is two frames: a JSON
// envelope followed by an Arrow IPC payload.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/avila-org/avila-arrow/codec"
)

// Common errors for transport operations
var (
	ErrNodeNotRunning = errors.New("node is not running")
	ErrPeerNotFound   = errors.New("peer not found")
	ErrSendFailed     = errors.New("failed to send message")
	ErrBadMessage     = errors.New("malformed message")
)

// PeerInfo contains information about a known peer.
type PeerInfo struct {
	ID       string    `json:"id"`
	Address  string    `json:"address"`
	LastSeen time.Time `json:"last_seen"`
}

// Envelope is the first frame of every batch message.
type Envelope struct {
	Type      string    `json:"type"`
	From      string    `json:"from"`
	To        string    `json:"to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Nonce     string    `json:"nonce,omitempty"`
}

// BatchMessage pairs an envelope with its Arrow IPC payload.
type BatchMessage struct {
	Envelope Envelope
	Payload  []byte
}

// DecodeRecord decodes the payload into a record. The caller must
// Release it.
func (m *BatchMessage) DecodeRecord() (arrow.Record, error) {
	return codec.NewCodec().DecodeRecord(m.Payload)
}

// MessageHandler is a callback for processing received batch messages.
type MessageHandler func(msg *BatchMessage) error

// Node is a ZeroMQ-based batch exchange node.
type Node struct {
	nodeID  string
	host    string
	port    int
	address string

	ctx    context.Context
	cancel context.CancelFunc

	router  zmq4.Socket            // ROUTER socket for receiving
	dealers map[string]zmq4.Socket // DEALER sockets for sending (per peer)

	peers map[string]*PeerInfo
	mu    sync.RWMutex

	codec *codec.Codec

	handler MessageHandler
	msgChan chan *BatchMessage

	// Replay protection
	replayCache     map[string]time.Time
	replayCacheMu   sync.Mutex
	replayTolerance time.Duration

	running bool
	wg      sync.WaitGroup
}

// NewNode creates a batch exchange node.
func NewNode(nodeID string, host string, port int) *Node {
	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		nodeID:          nodeID,
		host:            host,
		port:            port,
		address:         fmt.Sprintf("tcp://%s:%d", host, port),
		ctx:             ctx,
		cancel:          cancel,
		dealers:         make(map[string]zmq4.Socket),
		peers:           make(map[string]*PeerInfo),
		codec:           codec.NewCodec(),
		msgChan:         make(chan *BatchMessage, 1000),
		replayCache:     make(map[string]time.Time),
		replayTolerance: 60 * time.Second,
	}
}

// Start begins the node's network operations.
func (n *Node) Start() error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return errors.New("node already running")
	}

	n.router = zmq4.NewRouter(n.ctx, zmq4.WithID(zmq4.SocketIdentity(n.nodeID)))

	if err := n.router.Listen(n.address); err != nil {
		n.mu.Unlock()
		return fmt.Errorf("failed to bind router: %w", err)
	}

	n.running = true
	n.mu.Unlock()

	n.wg.Add(1)
	go n.receiverLoop()

	n.wg.Add(1)
	go n.messageProcessor()

	n.wg.Add(1)
	go n.replayCacheCleaner()

	return nil
}

// Stop shuts down the node.
func (n *Node) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	n.mu.Unlock()

	n.cancel()

	if n.router != nil {
		if err := n.router.Close(); err != nil {
			_ = err // shutdown, errors expected
		}
	}

	for _, dealer := range n.dealers {
		if err := dealer.Close(); err != nil {
			_ = err
		}
	}

	n.wg.Wait()

	close(n.msgChan)
}

// RegisterPeer adds a peer to the known peers list.
func (n *Node) RegisterPeer(peerID, address string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.peers[peerID] = &PeerInfo{
		ID:       peerID,
		Address:  address,
		LastSeen: time.Now(),
	}
}

// UnregisterPeer removes a peer and closes its dealer socket.
func (n *Node) UnregisterPeer(peerID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.peers, peerID)

	if dealer, ok := n.dealers[peerID]; ok {
		if err := dealer.Close(); err != nil {
			_ = err
		}
		delete(n.dealers, peerID)
	}
}

// SetHandler sets the message handler callback.
func (n *Node) SetHandler(handler MessageHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handler = handler
}

// SendRecord encodes the record and sends it directly to a peer.
func (n *Node) SendRecord(peerID string, rec arrow.Record) error {
	payload, err := n.codec.EncodeRecord(rec)
	if err != nil {
		return err
	}
	return n.SendPayload(peerID, payload)
}

// SendPayload sends a pre-encoded IPC payload directly to a peer.
func (n *Node) SendPayload(peerID string, payload []byte) error {
	n.mu.RLock()
	if !n.running {
		n.mu.RUnlock()
		return ErrNodeNotRunning
	}

	peer, ok := n.peers[peerID]
	if !ok {
		n.mu.RUnlock()
		return ErrPeerNotFound
	}
	n.mu.RUnlock()

	dealer, err := n.getOrCreateDealer(peerID, peer.Address)
	if err != nil {
		return err
	}

	env := Envelope{
		Type:      "batch",
		From:      n.nodeID,
		To:        peerID,
		Timestamp: time.Now(),
		Nonce:     fmt.Sprintf("%d-%s", time.Now().UnixNano(), n.nodeID),
	}

	header, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	msg := zmq4.NewMsgFrom(header, payload)
	if err := dealer.Send(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	return nil
}

// BroadcastRecord sends a record to all registered peers except those
// excluded.
func (n *Node) BroadcastRecord(rec arrow.Record, exclude []string) error {
	payload, err := n.codec.EncodeRecord(rec)
	if err != nil {
		return err
	}

	n.mu.RLock()
	if !n.running {
		n.mu.RUnlock()
		return ErrNodeNotRunning
	}

	peerIDs := make([]string, 0, len(n.peers))
	for id := range n.peers {
		peerIDs = append(peerIDs, id)
	}
	n.mu.RUnlock()

	excludeSet := make(map[string]bool)
	for _, id := range exclude {
		excludeSet[id] = true
	}

	var lastErr error
	for _, peerID := range peerIDs {
		if excludeSet[peerID] {
			continue
		}
		if err := n.SendPayload(peerID, payload); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// GetPeers returns a copy of all registered peers.
func (n *Node) GetPeers() map[string]*PeerInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()

	peers := make(map[string]*PeerInfo)
	for id, peer := range n.peers {
		peers[id] = &PeerInfo{
			ID:       peer.ID,
			Address:  peer.Address,
			LastSeen: peer.LastSeen,
		}
	}
	return peers
}

// Messages returns the channel of received batch messages.
func (n *Node) Messages() <-chan *BatchMessage {
	return n.msgChan
}

// getOrCreateDealer returns the DEALER socket for a peer, dialing if
// needed.
func (n *Node) getOrCreateDealer(peerID, address string) (zmq4.Socket, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if dealer, ok := n.dealers[peerID]; ok {
		return dealer, nil
	}

	dealer := zmq4.NewDealer(n.ctx, zmq4.WithID(zmq4.SocketIdentity(n.nodeID)))

	if err := dealer.Dial(address); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	n.dealers[peerID] = dealer
	return dealer, nil
}

// receiverLoop continuously receives messages from the ROUTER socket.
func (n *Node) receiverLoop() {
	defer n.wg.Done()

	for {
		select {
		case <-n.ctx.Done():
			return
		default:
			msg, err := n.router.Recv()
			if err != nil {
				select {
				case <-n.ctx.Done():
					return
				default:
					continue
				}
			}

			batch, err := parseFrames(msg.Frames)
			if err != nil {
				continue
			}

			if !n.checkReplay(&batch.Envelope) {
				continue
			}

			n.mu.Lock()
			if peer, ok := n.peers[batch.Envelope.From]; ok {
				peer.LastSeen = time.Now()
			}
			n.mu.Unlock()

			select {
			case n.msgChan <- batch:
			default:
				// Channel full, drop message
			}
		}
	}
}

// parseFrames extracts the envelope and payload from a routed message.
// ROUTER sockets prepend the sender identity frame.
func parseFrames(frames [][]byte) (*BatchMessage, error) {
	var header, payload []byte
	switch len(frames) {
	case 2:
		header, payload = frames[0], frames[1]
	case 3:
		header, payload = frames[1], frames[2]
	default:
		return nil, fmt.Errorf("%w: %d frames", ErrBadMessage, len(frames))
	}

	var env Envelope
	if err := json.Unmarshal(header, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	return &BatchMessage{Envelope: env, Payload: payload}, nil
}

// messageProcessor runs the handler over received messages.
func (n *Node) messageProcessor() {
	defer n.wg.Done()

	for {
		select {
		case <-n.ctx.Done():
			return
		case msg, ok := <-n.msgChan:
			if !ok {
				return
			}

			n.mu.RLock()
			handler := n.handler
			n.mu.RUnlock()

			if handler != nil {
				_ = handler(msg)
			}
		}
	}
}

// checkReplay returns false for nonces already seen or messages older
// than the tolerance window.
func (n *Node) checkReplay(env *Envelope) bool {
	if env.Nonce == "" {
		return true
	}

	n.replayCacheMu.Lock()
	defer n.replayCacheMu.Unlock()

	if _, seen := n.replayCache[env.Nonce]; seen {
		return false
	}

	if time.Since(env.Timestamp) > n.replayTolerance {
		return false
	}

	n.replayCache[env.Nonce] = time.Now()
	return true
}

// replayCacheCleaner periodically drops expired nonces.
func (n *Node) replayCacheCleaner() {
	defer n.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.cleanReplayCache()
		}
	}
}

func (n *Node) cleanReplayCache() {
	n.replayCacheMu.Lock()
	defer n.replayCacheMu.Unlock()

	cutoff := time.Now().Add(-n.replayTolerance)
	for nonce, ts := range n.replayCache {
		if ts.Before(cutoff) {
			delete(n.replayCache, nonce)
		}
	}
}

// NodeStats contains node statistics.
type NodeStats struct {
	NodeID    string `json:"node_id"`
	Address   string `json:"address"`
	PeerCount int    `json:"peer_count"`
	IsRunning bool   `json:"is_running"`
	QueueSize int    `json:"queue_size"`
}

// GetStats returns current node statistics.
func (n *Node) GetStats() NodeStats {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return NodeStats{
		NodeID:    n.nodeID,
		Address:   n.address,
		PeerCount: len(n.peers),
		IsRunning: n.running,
		QueueSize: len(n.msgChan),
	}
}
