package id

import (
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Node IDs per binary so run ids never collide when server, worker and the
// cron run share a clock.
const (
	NodeServer int64 = 1
	NodeWorker int64 = 2
	NodeCLI    int64 = 3
)

var errNotInitialized = errors.New("id generator not initialized")

// Init initializes the Snowflake node with the given node ID.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New generates a new time-ordered run id. It panics if Init was never called.
func New() int64 {
	if node == nil {
		panic(errNotInitialized)
	}
	return node.Generate().Int64()
}
