package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/alecthomas/units"
	"github.com/flukkyy/libcoap/pkg/math"
	"gopkg.in/yaml.v3"
)

var ErrInvalidSize = errors.New("invalid size")

// File is the YAML configuration of the client. Zero values keep defaults.
type File struct {
	MaxMessageSize     string        `yaml:"maxMessageSize"`
	BlockSize          string        `yaml:"blockSize"`
	AcknowledgeTimeout time.Duration `yaml:"acknowledgeTimeout"`
	MaxRetransmit      *uint32       `yaml:"maxRetransmit"`
	RandomFactor       *float64      `yaml:"randomFactor"`
	ObserveLifetime    time.Duration `yaml:"observeLifetime"`
	Proxy              string        `yaml:"proxy"`
	Accept             []string      `yaml:"accept"`
	ContentFormat      string        `yaml:"contentFormat"`
}

// Load reads the configuration file at path.
func Load(path string) (File, error) {
	var f File
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("cannot read config %v: %w", path, err)
	}
	if err = yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("cannot parse config %v: %w", path, err)
	}
	return f, nil
}

// ParseSize parses a byte size like "1024", "1KiB" or "64KB" and checks it
// fits into max bytes.
func ParseSize(s string, max units.Base2Bytes) (uint32, error) {
	var v units.Base2Bytes
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		v = units.Base2Bytes(n)
	} else {
		v, err = units.ParseBase2Bytes(s)
		if err != nil {
			return 0, fmt.Errorf("%w %q: %w", ErrInvalidSize, s, err)
		}
	}
	if v <= 0 || v > max {
		return 0, fmt.Errorf("%w %q: out of range (0, %v]", ErrInvalidSize, s, max)
	}
	return math.SafeCastTo[uint32](int64(v))
}
