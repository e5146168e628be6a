// Package memory provides in-process implementations of every service
// repository. It backs single-node development runs and the service and
// worker tests; production deployments use repository/postgres.
package memory

import (
	"sync"

	"github.com/ignite/notify-dispatch/internal/domain"
)

// Store holds settings, preferences, campaigns and logs behind one mutex.
// The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex

	settings    *domain.AdminEmailSettings
	preferences map[string]*domain.EmailPreference
	prefOrder   []string
	campaigns   map[string]*domain.Campaign
	logs        []*domain.EmailLog
	logByMsg    map[string]*domain.EmailLog
	counts      domain.StatusCounts

	// InsertLogErr, when set, is returned by InsertLog without writing.
	InsertLogErr error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		preferences: make(map[string]*domain.EmailPreference),
		campaigns:   make(map[string]*domain.Campaign),
		logByMsg:    make(map[string]*domain.EmailLog),
		counts:      make(domain.StatusCounts),
	}
}

func page(total, limit, offset int) (int, int) {
	if offset >= total {
		return total, total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return offset, end
}

func contains(set []domain.CampaignStatus, st domain.CampaignStatus) bool {
	for _, s := range set {
		if s == st {
			return true
		}
	}
	return false
}
