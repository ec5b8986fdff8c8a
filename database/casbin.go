package database

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

// AdminRole may read the operational admin routes.
const AdminRole = "admin"

func Casbin(db *gorm.DB, modelPath string) (*casbin.Enforcer, error) {
	// Initialize casbin adapter
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize casbin adapter: %w", err)
	}

	// Load model configuration file and policy store adapter
	e, err := casbin.NewEnforcer(modelPath, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load casbin policy: %w", err)
	}

	// Add default policy
	if err := DefaultPolicy(e); err != nil {
		return nil, err
	}

	return e, nil
}

func DefaultPolicy(e casbin.IEnforcer) error {
	hasPolicy, err := e.HasPolicy(AdminRole, "/v1/admin*", "(GET)|(POST)|(PUT)|(DELETE)")
	if err != nil {
		return fmt.Errorf("failed to read casbin policy: %w", err)
	}
	if !hasPolicy {
		if _, err := e.AddPolicy(AdminRole, "/v1/admin*", "(GET)|(POST)|(PUT)|(DELETE)"); err != nil {
			return fmt.Errorf("failed to add casbin policy: %w", err)
		}
	}
	return nil
}
