package websocket

import (
	"auction-settlement/internal/domain"
	"auction-settlement/pkg/logger"
	"encoding/json"
	"sync"
)

type ConnectionManager struct {
	connections map[string]map[string]domain.WebSocketConnection // listingID -> userID -> connection
	userConns   map[string][]domain.WebSocketConnection          // userID -> connections
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]domain.WebSocketConnection),
		userConns:   make(map[string][]domain.WebSocketConnection),
		log:         log,
	}
}

// RegisterConnection replaces any earlier watcher the user had on the listing.
func (cm *ConnectionManager) RegisterConnection(userID, listingID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[listingID] == nil {
		cm.connections[listingID] = make(map[string]domain.WebSocketConnection)
	}
	if previous, exists := cm.connections[listingID][userID]; exists && previous != conn {
		cm.removeUserConn(userID, listingID)
		if err := previous.Close(); err != nil {
			cm.log.Debug("Failed to close replaced connection", "user_id", userID, "error", err)
		}
	}
	cm.connections[listingID][userID] = conn
	cm.userConns[userID] = append(cm.userConns[userID], conn)

	cm.log.Info("Connection registered", "user_id", userID, "listing_id", listingID)
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(userID, listingID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if listingConns, exists := cm.connections[listingID]; exists {
		delete(listingConns, userID)
		if len(listingConns) == 0 {
			delete(cm.connections, listingID)
		}
	}
	cm.removeUserConn(userID, listingID)

	cm.log.Info("Connection unregistered", "user_id", userID, "listing_id", listingID)
	return nil
}

// CloseAndUnregisterConnections drops every watcher of a finished listing.
func (cm *ConnectionManager) CloseAndUnregisterConnections(listingID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	listingConns, exists := cm.connections[listingID]
	if !exists {
		return nil
	}
	for userID, conn := range listingConns {
		if err := conn.Close(); err != nil {
			cm.log.Error("Failed to close connection", "user_id", userID,
				"listing_id", listingID, "error", err)
		}
		cm.removeUserConn(userID, listingID)
	}
	delete(cm.connections, listingID)

	cm.log.Info("Connections closed for listing", "listing_id", listingID, "count", len(listingConns))
	return nil
}

// removeUserConn expects cm.mutex to be held.
func (cm *ConnectionManager) removeUserConn(userID, listingID string) {
	userConnections, exists := cm.userConns[userID]
	if !exists {
		return
	}
	var newConns []domain.WebSocketConnection
	for _, existingConn := range userConnections {
		if existingConn.ListingID() != listingID {
			newConns = append(newConns, existingConn)
		}
	}
	if len(newConns) == 0 {
		delete(cm.userConns, userID)
	} else {
		cm.userConns[userID] = newConns
	}
}

func (cm *ConnectionManager) GetConnectionsForListing(listingID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, conn := range cm.connections[listingID] {
		connections = append(connections, conn)
	}
	return connections
}

func (cm *ConnectionManager) GetConnectionsForUser(userID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	connections := cm.userConns[userID]
	return append([]domain.WebSocketConnection(nil), connections...)
}

func (cm *ConnectionManager) BroadcastToListing(listingID string, message interface{}) error {
	connections := cm.GetConnectionsForListing(listingID)
	if len(connections) == 0 {
		return nil
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	cm.log.Debug("Broadcasting to listing", "listing_id", listingID, "connections", len(connections))
	for _, conn := range connections {
		if err := conn.Send(json.RawMessage(payload)); err != nil {
			cm.log.Error("Failed to send message", "user_id", conn.UserID(),
				"listing_id", listingID, "error", err)
			// Continue to other connections
		}
	}
	return nil
}

func (cm *ConnectionManager) NotifyUser(userID string, message interface{}) error {
	connections := cm.GetConnectionsForUser(userID)
	if len(connections) == 0 {
		return nil
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(json.RawMessage(payload)); err != nil {
			cm.log.Error("Failed to send message", "user_id", userID, "error", err)
		}
	}
	return nil
}
