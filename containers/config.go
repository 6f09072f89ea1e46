package containers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/notargets/DGAdapt/element"
	"github.com/notargets/DGAdapt/partitions"
)

// DefaultExchangeTimeout bounds the distributed rendezvous when the
// configuration leaves it unset
const DefaultExchangeTimeout = 30 * time.Second

// Config carries everything the containers need besides the tree and the
// equation
type Config struct {
	PolynomialDegree int `yaml:"polynomial_degree" validate:"min=1,max=32"`

	// BoundaryTags names the boundary condition per face direction
	// (2*axis+side). Directions without a tag get "default".
	BoundaryTags map[int]string `yaml:"boundary_tags" validate:"dive,required"`

	NumPartitions   int                          `yaml:"partitions" validate:"min=0"`
	Rank            int                          `yaml:"rank" validate:"min=0"`
	Strategy        partitions.PartitionStrategy `yaml:"strategy"`
	ExchangeTimeout time.Duration                `yaml:"exchange_timeout" validate:"min=0"`

	Logger    *slog.Logger         `yaml:"-" validate:"-"`
	Cache     *element.Cache       `yaml:"-" validate:"-"`
	Transport partitions.Transport `yaml:"-" validate:"-"`
}

// DefaultTag is the boundary tag of directions missing from BoundaryTags
const DefaultTag = "default"

var validate = validator.New()

// Distributed reports whether the leaf sequence is split across partitions
func (cfg *Config) Distributed() bool { return cfg.NumPartitions > 1 }

func (cfg *Config) check() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid containers config: %w", err)
	}
	if cfg.Distributed() {
		if cfg.Rank >= cfg.NumPartitions {
			return fmt.Errorf("invalid containers config: rank %d outside [0,%d)",
				cfg.Rank, cfg.NumPartitions)
		}
		if cfg.Transport == nil {
			return fmt.Errorf("invalid containers config: %d partitions need a transport",
				cfg.NumPartitions)
		}
	} else if cfg.Rank != 0 {
		return fmt.Errorf("invalid containers config: rank %d without partitioning", cfg.Rank)
	}
	return nil
}

func (cfg *Config) tag(face int) string {
	if tag, ok := cfg.BoundaryTags[face]; ok {
		return tag
	}
	return DefaultTag
}
