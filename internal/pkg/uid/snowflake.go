package uid

import (
	"errors"
	"hash/fnv"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ErrNodeIdentityUnavailable indicates no hostname or machine id could be read.
var ErrNodeIdentityUnavailable = errors.New("uid: cannot determine node identity")

// Snowflake generates 63-bit time-ordered IDs.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake derives the node number from /etc/machine-id or the hostname.
func NewSnowflake() (*Snowflake, error) {
	src, err := nodeIdentity()
	if err != nil {
		return nil, err
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(src)) //nolint:errcheck // hash writes never fail

	return NewSnowflakeNode(int64(h.Sum32() % (1 << snowflake.NodeBits)))
}

// NewSnowflakeNode uses an explicit node number in [0, 1023].
func NewSnowflakeNode(node int64) (*Snowflake, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return &Snowflake{node: n}, nil
}

// Generate returns the next ID.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}

func nodeIdentity() (string, error) {
	if b, err := os.ReadFile("/etc/machine-id"); err == nil {
		if s := strings.TrimSpace(string(b)); s != "" {
			return s, nil
		}
	}

	if h, err := os.Hostname(); err == nil {
		if h = strings.TrimSpace(h); h != "" {
			return h, nil
		}
	}

	return "", ErrNodeIdentityUnavailable
}
