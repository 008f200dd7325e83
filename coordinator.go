package unitboot

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-unitboot/registry"
)

// RoleTransactionCoordinator is the strategy role for coordinator builders.
const RoleTransactionCoordinator = "transaction-coordinator"

// Built-in coordinator strategy names installed by the merge.
const (
	CoordinatorJDBC = "jdbc"
	CoordinatorJTA  = "jta"
)

// TransactionCoordinatorBuilder is the strategy coordinating transactional
// work.
type TransactionCoordinatorBuilder interface {
	IsJTA() bool
}

type jdbcCoordinator struct{}

func (jdbcCoordinator) IsJTA() bool { return false }

type jtaCoordinator struct{}

func (jtaCoordinator) IsJTA() bool { return true }

// builtinStrategies are registered on every bootstrap registry.
func builtinStrategies() []registry.StrategyRegistration {
	return []registry.StrategyRegistration{
		{Role: RoleTransactionCoordinator, Name: CoordinatorJDBC, New: func() (any, error) { return jdbcCoordinator{}, nil }},
		{Role: RoleTransactionCoordinator, Name: CoordinatorJTA, New: func() (any, error) { return jtaCoordinator{}, nil }},
	}
}

// ParseTransactionType interprets a configured transaction type value.
func ParseTransactionType(value any) (TransactionType, error) {
	switch v := value.(type) {
	case TransactionType:
		return ParseTransactionType(string(v))
	case string:
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case string(TransactionJTA):
			return TransactionJTA, nil
		case string(TransactionResourceLocal):
			return TransactionResourceLocal, nil
		}
	}
	return "", fmt.Errorf("unknown transaction type %v", value)
}
